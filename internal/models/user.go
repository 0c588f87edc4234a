package models

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents a registered customer or administrator.
type User struct {
	BaseModel
	Name         string     `json:"name"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `gorm:"default:customer" json:"role"`
	CartItems    []CartItem `json:"cart_items,omitempty"`
	Orders       []Order    `json:"orders,omitempty"`
}
