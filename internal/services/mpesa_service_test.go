package services

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenIsCached(t *testing.T) {
	var tokenCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "cached-token",
			"expires_in":   "3599",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewMpesaService(MpesaConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
	})

	for i := 0; i < 3; i++ {
		token, err := svc.AccessToken()
		require.NoError(t, err)
		assert.Equal(t, "cached-token", token)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls), "token must be fetched once and cached")
}

func TestAccessTokenRefreshesNearExpiry(t *testing.T) {
	var tokenCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		// Lifetime shorter than the refresh leeway, so every call refetches.
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "short-lived",
			"expires_in":   "5",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewMpesaService(MpesaConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
	})

	for i := 0; i < 2; i++ {
		_, err := svc.AccessToken()
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestAccessTokenRequiresCredentials(t *testing.T) {
	svc := NewMpesaService(MpesaConfig{BaseURL: "http://localhost:0"})

	_, err := svc.AccessToken()
	require.Error(t, err)
}

func TestSTKPushBuildsDarajaRequest(t *testing.T) {
	var captured stkPushRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "push-token",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer push-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(STKPushResponse{
			MerchantRequestID: "merchant-7",
			CheckoutRequestID: "checkout-7",
			ResponseCode:      "0",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewMpesaService(MpesaConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://store.example.com/api/payments/mpesa/callback",
	})

	resp, err := svc.STKPush("254712345678", 900, "order_abc")
	require.NoError(t, err)
	assert.Equal(t, "checkout-7", resp.CheckoutRequestID)

	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
	assert.Equal(t, int64(900), captured.Amount)
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, "174379", captured.PartyB)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "https://store.example.com/api/payments/mpesa/callback", captured.CallBackURL)
	assert.Equal(t, "order_abc", captured.AccountReference)

	expectedPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + captured.Timestamp))
	assert.Equal(t, expectedPassword, captured.Password)
	assert.Len(t, captured.Timestamp, 14)
}

func TestSTKPushSurfacesGatewayRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "push-token",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"errorMessage": "Invalid PhoneNumber"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewMpesaService(MpesaConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
	})

	_, err := svc.STKPush("123", 100, "order_abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
