package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// TelegramService sends best-effort admin notifications. A missing bot
// token disables it silently.
type TelegramService struct {
	botToken    string
	adminChatID string
	httpClient  *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	return nil
}

// PaymentSuccessNotification describes a completed M-Pesa payment.
type PaymentSuccessNotification struct {
	OrderID string
	Amount  int64
	Phone   string
	Receipt string
}

// NotifyPaymentSuccess tells the admin chat about a completed payment.
func (s *TelegramService) NotifyPaymentSuccess(n PaymentSuccessNotification) error {
	if s.botToken == "" || s.adminChatID == "" {
		return nil
	}

	text := fmt.Sprintf(
		"✅ <b>M-Pesa payment received</b>\nOrder: %s\nAmount: KES %d\nPhone: %s\nReceipt: %s",
		n.OrderID, n.Amount, n.Phone, n.Receipt,
	)

	return s.SendMessage(s.adminChatID, text)
}
