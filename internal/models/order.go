package models

import "github.com/google/uuid"

// Order is the immutable record of a completed purchase. TotalAmount is
// the amount actually charged by the gateway, in KES minor units.
type Order struct {
	BaseModel
	UserID        uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	Items         []OrderItem `json:"items,omitempty"`
	TotalAmount   int64       `json:"total_amount"`
	TransactionID string      `gorm:"uniqueIndex" json:"transaction_id"`
	PhoneNumber   string      `json:"phone_number"`
}

// OrderItem captures one purchased line with its price at purchase time.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
}
