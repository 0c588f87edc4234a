package models

// Product is a catalog item. Price is in KES minor units.
type Product struct {
	BaseModel
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	Category    string `gorm:"index" json:"category"`
	IsFeatured  bool   `json:"is_featured"`
}
