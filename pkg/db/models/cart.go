package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the authoritative server-side cart, one per customer.
type Cart struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;uniqueIndex"`
	Items      []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is one product line; the product columns are a snapshot
// captured at add-time, not re-read from the catalog.
type CartItem struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID               uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	Quantity             int       `gorm:"column:quantity;not null"`
	Name                 string    `gorm:"column:name;not null"`
	PriceCents           int       `gorm:"column:price_cents;not null"`
	DiscountedPriceCents *int      `gorm:"column:discounted_price_cents"`
	ImageURL             string    `gorm:"column:image_url"`
	InStock              bool      `gorm:"column:in_stock;not null;default:true"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
