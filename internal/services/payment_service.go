package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
	"github.com/Williamonyango/Scented-muse-Backend/internal/utils"
)

// ErrInvalidInitiation marks a malformed initiation request. No session is
// written and nothing is sent to the gateway.
var ErrInvalidInitiation = errors.New("phone, amount and products are required")

// GatewayError wraps a failure to obtain credentials from or deliver the
// initiation request to the payment gateway. The pending session is left
// in place: the gateway may still call back for a request that partially
// went through, and the caller must not assume a charge occurred.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string { return "payment gateway error: " + e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// PaymentService drives the STK push lifecycle: initiation, callback
// correlation, order materialization and reward coupon issuance.
type PaymentService struct {
	db              *gorm.DB
	sessions        SessionStore
	mpesa           *MpesaService
	telegram        *TelegramService
	rewardThreshold int64
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, sessions SessionStore, mpesa *MpesaService, telegram *TelegramService, rewardThreshold int64) *PaymentService {
	return &PaymentService{
		db:              db,
		sessions:        sessions,
		mpesa:           mpesa,
		telegram:        telegram,
		rewardThreshold: rewardThreshold,
	}
}

// InitiateParams is a validated initiation request.
type InitiateParams struct {
	Phone      string
	Amount     int64
	Products   []models.PendingLineItem
	CouponCode string
}

// InitiateResult is returned to the initiating client.
type InitiateResult struct {
	Phone   string
	Amount  int64
	Gateway *STKPushResponse
}

// Initiate computes the final charge, records the pending session and
// sends the STK push. The session is written before the network call so a
// callback racing ahead of our HTTP response can still be correlated.
func (s *PaymentService) Initiate(ctx context.Context, userID uuid.UUID, params InitiateParams) (*InitiateResult, error) {
	if params.Phone == "" || params.Amount <= 0 || len(params.Products) == 0 {
		return nil, ErrInvalidInitiation
	}

	phone := utils.NormalizePhone(params.Phone)
	amount := params.Amount
	couponCode := ""

	if params.CouponCode != "" {
		var coupon models.Coupon
		err := s.db.WithContext(ctx).
			Where("code = ? AND user_id = ? AND is_active = ?", params.CouponCode, userID, true).
			First(&coupon).Error
		switch {
		case err == nil:
			amount -= amount * int64(coupon.DiscountPercentage) / 100
			couponCode = coupon.Code
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Unknown or inactive coupon codes are ignored without error.
			log.Printf("[Payment] Ignoring coupon %q for user %s: not found or inactive", params.CouponCode, userID)
		default:
			return nil, err
		}
	}

	session := models.PendingPayment{
		UserID:     userID,
		Products:   params.Products,
		Amount:     amount,
		CouponCode: couponCode,
	}

	if err := s.sessions.Put(ctx, phone, session); err != nil {
		return nil, err
	}

	resp, err := s.mpesa.STKPush(phone, amount, "order_"+userID.String())
	if err != nil {
		// The session stays behind: a late callback may still arrive,
		// and a later initiation for the same payer overwrites it.
		return nil, &GatewayError{Err: err}
	}

	return &InitiateResult{Phone: phone, Amount: amount, Gateway: resp}, nil
}

// StkCallbackEnvelope is the gateway's notification body.
type StkCallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback carries the payment outcome. CallbackMetadata is present
// only for successful payments.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

// CallbackMetadata is the success-metadata block of a callback.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is one named metadata value. The gateway sends amounts and
// phone numbers as JSON numbers and receipt IDs as strings.
type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

func (m *CallbackMetadata) stringValue(name string) string {
	for _, item := range m.Item {
		if item.Name != name {
			continue
		}
		switch v := item.Value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func (m *CallbackMetadata) int64Value(name string) int64 {
	for _, item := range m.Item {
		if item.Name != name {
			continue
		}
		switch v := item.Value.(type) {
		case float64:
			return int64(v)
		case string:
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

// CallbackResult is the acknowledgement body returned to the gateway.
type CallbackResult struct {
	Message string
	OrderID *uuid.UUID
}

// HandleCallback correlates a gateway notification with its pending
// session and materializes the order. It never fails from the gateway's
// point of view: every outcome is an acknowledgement, and business
// failures after the session is claimed are logged only. Duplicate
// callbacks are no-ops because the claim consumes the session atomically.
func (s *PaymentService) HandleCallback(ctx context.Context, env StkCallbackEnvelope) CallbackResult {
	stk := env.Body.StkCallback
	if stk == nil || stk.CallbackMetadata == nil {
		return CallbackResult{Message: "STK push failed or canceled"}
	}

	amount := stk.CallbackMetadata.int64Value("Amount")
	receipt := stk.CallbackMetadata.stringValue("MpesaReceiptNumber")
	phone := stk.CallbackMetadata.stringValue("PhoneNumber")

	session, err := s.sessions.Claim(ctx, phone)
	if err != nil {
		log.Printf("[Payment] Session claim failed for %s: %v", phone, err)
		return CallbackResult{Message: "Failed to process M-Pesa payment"}
	}
	if session == nil {
		// Either a duplicate delivery for an already-consumed session or
		// an unsolicited notification; indistinguishable, so no-op.
		log.Printf("[Payment] No payment session found for %s (receipt %s)", phone, receipt)
		return CallbackResult{Message: "No payment session found for this number"}
	}

	order := models.Order{
		UserID:        session.UserID,
		TotalAmount:   amount,
		TransactionID: receipt,
		PhoneNumber:   phone,
	}
	for _, line := range session.Products {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		// The session is already consumed and the gateway has been told
		// the delivery succeeded; nothing to do but log.
		log.Printf("[Payment] Order creation failed for %s (receipt %s): %v", phone, receipt, err)
		return CallbackResult{Message: "Failed to process M-Pesa payment"}
	}

	if session.CouponCode != "" {
		if err := s.db.WithContext(ctx).
			Model(&models.Coupon{}).
			Where("code = ? AND user_id = ?", session.CouponCode, session.UserID).
			Update("is_active", false).Error; err != nil {
			log.Printf("[Payment] Failed to deactivate coupon %s: %v", session.CouponCode, err)
		}
	}

	if amount >= s.rewardThreshold {
		if _, err := s.issueRewardCoupon(ctx, session.UserID); err != nil {
			log.Printf("[Payment] Reward coupon issuance failed for user %s: %v", session.UserID, err)
		}
	}

	if s.telegram != nil {
		go func() {
			if err := s.telegram.NotifyPaymentSuccess(PaymentSuccessNotification{
				OrderID: order.ID.String(),
				Amount:  amount,
				Phone:   phone,
				Receipt: receipt,
			}); err != nil {
				log.Printf("[Payment] Telegram payment notification failed: %v", err)
			}
		}()
	}

	orderID := order.ID
	return CallbackResult{
		Message: "Order created successfully after M-Pesa payment",
		OrderID: &orderID,
	}
}

// issueRewardCoupon replaces whatever coupon the user holds with a fresh
// 10% single-use code valid for 30 days. The delete is unconditional, so
// at most one coupon row per user survives.
func (s *PaymentService) issueRewardCoupon(ctx context.Context, userID uuid.UUID) (*models.Coupon, error) {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Coupon{}).Error; err != nil {
		return nil, err
	}

	code, err := generateCouponCode()
	if err != nil {
		return nil, err
	}

	coupon := models.Coupon{
		Code:               code,
		DiscountPercentage: 10,
		ExpirationDate:     time.Now().Add(30 * 24 * time.Hour),
		UserID:             userID,
		IsActive:           true,
	}

	if err := s.db.WithContext(ctx).Create(&coupon).Error; err != nil {
		return nil, err
	}

	return &coupon, nil
}

const couponCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCouponCode produces GIFT plus six random characters. Uniqueness
// is probabilistic; codes are scoped per owner in practice.
func generateCouponCode() (string, error) {
	code := make([]byte, 6)
	max := big.NewInt(int64(len(couponCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = couponCodeCharset[n.Int64()]
	}
	return "GIFT" + string(code), nil
}
