package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row the storefront reads snapshots from.
type Product struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string    `gorm:"column:name;not null"`
	PriceCents           int       `gorm:"column:price_cents;not null"`
	DiscountedPriceCents *int      `gorm:"column:discounted_price_cents"`
	ImageURL             string    `gorm:"column:image_url"`
	InStock              bool      `gorm:"column:in_stock;not null;default:true"`
	AvailableQty         int       `gorm:"column:available_qty;not null;default:0"`
	IsActive             bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
