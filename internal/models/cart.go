package models

import "github.com/google/uuid"

// CartItem links a product to a user's cart with a quantity.
type CartItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index:idx_cart_user_product,unique" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;index:idx_cart_user_product,unique" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `json:"quantity"`
}
