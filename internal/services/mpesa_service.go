package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const tokenRefreshLeeway = 30 * time.Second

// MpesaConfig carries the Daraja API credentials and endpoints.
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// MpesaService talks to the Safaricom Daraja API: OAuth token issuance
// and STK push initiation. The access token is cached for its reported
// lifetime and refreshed under a write lock when it nears expiry.
type MpesaService struct {
	cfg        MpesaConfig
	httpClient *http.Client

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewMpesaService constructs an MpesaService.
func NewMpesaService(cfg MpesaConfig) *MpesaService {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MpesaService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken returns a cached Daraja access token, fetching a new one
// when the cache is empty or about to expire.
func (s *MpesaService) AccessToken() (string, error) {
	if token, ok := s.cachedToken(); ok {
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if token := s.currentTokenLocked(); token != "" {
		return token, nil
	}

	if s.cfg.ConsumerKey == "" || s.cfg.ConsumerSecret == "" {
		return "", errors.New("CONSUMER_KEY and CONSUMER_SECRET are not configured")
	}

	req, err := http.NewRequest(http.MethodGet, s.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(s.cfg.ConsumerKey + ":" + s.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp mpesaTokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	s.token = tokenResp.AccessToken
	// Daraja reports expires_in as a string of seconds.
	if secs, err := strconv.Atoi(tokenResp.ExpiresIn); err == nil && secs > 0 {
		s.tokenExpiry = time.Now().Add(time.Duration(secs) * time.Second)
	} else {
		s.tokenExpiry = time.Now().Add(5 * time.Minute)
	}

	return s.token, nil
}

func (s *MpesaService) cachedToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token := s.currentTokenLocked()
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *MpesaService) currentTokenLocked() string {
	if s.token == "" {
		return ""
	}
	if time.Now().Add(tokenRefreshLeeway).After(s.tokenExpiry) {
		return ""
	}
	return s.token
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the Daraja acknowledgement of an initiation request.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush sends a push-payment initiation for the given canonical phone
// number and amount. The account reference ties the gateway's logs back
// to our user.
func (s *MpesaService) STKPush(phone string, amount int64, accountRef string) (*STKPushResponse, error) {
	token, err := s.AccessToken()
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(s.cfg.ShortCode + s.cfg.Passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: s.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            s.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       s.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   "Purchase from store",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stk push payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create stk push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute stk push request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stk push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stk push failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var pushResp STKPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return nil, fmt.Errorf("unmarshal stk push response: %w", err)
	}

	return &pushResp, nil
}
