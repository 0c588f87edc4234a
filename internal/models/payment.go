package models

import "github.com/google/uuid"

// PendingLineItem is a cart line captured at payment initiation.
type PendingLineItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
}

// PendingPayment is the purchase intent held between STK push initiation
// and the gateway callback. It lives in the session store keyed by the
// canonical payer phone number, never in the database.
type PendingPayment struct {
	UserID     uuid.UUID         `json:"user_id"`
	Products   []PendingLineItem `json:"products"`
	Amount     int64             `json:"amount"`
	CouponCode string            `json:"coupon_code,omitempty"`
}
