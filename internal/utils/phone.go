package utils

import "strings"

// NormalizePhone converts a Kenyan phone number to the canonical
// international form the gateway reports in callbacks: a bare 254-prefixed
// digit string. A single leading local-format zero is stripped.
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "254") {
		return phone
	}
	phone = strings.TrimPrefix(phone, "0")
	return "254" + phone
}
