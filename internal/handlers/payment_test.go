package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Williamonyango/Scented-muse-Backend/internal/database"
	"github.com/Williamonyango/Scented-muse-Backend/internal/services"
)

func newCallbackApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	mpesa := services.NewMpesaService(services.MpesaConfig{BaseURL: "http://localhost:0"})
	sessions := services.NewMemorySessionStore(time.Minute)
	payments := services.NewPaymentService(db, sessions, mpesa, nil, 200)

	app := fiber.New()
	handler := NewPaymentHandler(payments)
	app.Post("/api/payments/mpesa/callback", handler.MpesaCallback)
	return app
}

func postCallback(t *testing.T, app *fiber.App, body []byte) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

// The gateway retries on any non-200 response, so the callback endpoint
// must acknowledge every delivery regardless of what it contains.
func TestCallbackEndpointAlwaysAcknowledges(t *testing.T) {
	app := newCallbackApp(t)

	bodies := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{}`),
		[]byte(`{"Body":{"stkCallback":{"ResultCode":1032,"ResultDesc":"Request canceled by user"}}}`),
		[]byte(`{"Body":{"stkCallback":{"ResultCode":0,"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":500},
			{"Name":"MpesaReceiptNumber","Value":"QKUNKNOWN"},
			{"Name":"PhoneNumber","Value":254712345678}
		]}}}}`),
	}

	for _, body := range bodies {
		resp := postCallback(t, app, body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestCallbackEndpointReportsCorrelationMiss(t *testing.T) {
	app := newCallbackApp(t)

	resp := postCallback(t, app, []byte(`{"Body":{"stkCallback":{"ResultCode":0,"CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":500},
		{"Name":"MpesaReceiptNumber","Value":"QKMISS"},
		{"Name":"PhoneNumber","Value":254799999999}
	]}}}}`))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, false, payload["success"])
	assert.NotContains(t, payload, "order_id")
}
