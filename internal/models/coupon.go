package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a single-use percentage discount owned by one user.
// A coupon spent on a purchase is deactivated; issuing a new reward
// coupon deletes any prior coupon for the owner first.
type Coupon struct {
	BaseModel
	Code               string    `gorm:"index" json:"code"`
	DiscountPercentage int       `json:"discount_percentage"`
	ExpirationDate     time.Time `json:"expiration_date"`
	UserID             uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	IsActive           bool      `gorm:"default:true" json:"is_active"`
}
