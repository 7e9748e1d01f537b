package cartstore

import "context"

// Mode tags the two cart ownership lifecycles.
type Mode string

const (
	// ModeGuest keeps the cart in local durable storage only.
	ModeGuest Mode = "guest"
	// ModeAuthenticated mirrors every mutation to the remote cart service.
	ModeAuthenticated Mode = "authenticated"
)

// ProductSnapshot is the denormalized product data captured at add-time.
// The store never re-fetches it; pricing and stock are trusted as passed in.
type ProductSnapshot struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	PriceCents           int    `json:"price_cents"`
	DiscountedPriceCents *int   `json:"discounted_price_cents,omitempty"`
	ImageURL             string `json:"image_url,omitempty"`
	InStock              bool   `json:"in_stock"`
	AvailableQty         int    `json:"available_qty"`
}

// EffectivePriceCents prefers the discounted price when present.
func (p ProductSnapshot) EffectivePriceCents() int {
	if p.DiscountedPriceCents != nil {
		return *p.DiscountedPriceCents
	}
	return p.PriceCents
}

// Line is one distinct product's presence in the cart. Quantity is
// always >= 1; a line that would reach zero is deleted instead.
type Line struct {
	ProductID string          `json:"product_id"`
	Product   ProductSnapshot `json:"product"`
	Quantity  int             `json:"quantity"`
}

// RemoteCart is the authoritative cart service consumed in
// authenticated mode. All calls are fallible network round-trips.
type RemoteCart interface {
	Get(ctx context.Context) ([]Line, error)
	AddItem(ctx context.Context, productID string, quantity int) error
	UpdateQuantityByDelta(ctx context.Context, productID string, delta int) error
	RemoveItem(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
}

// Persistence is the durable key-value layer backing guest carts.
// Implementations store only the line map; transient store state such
// as the syncing flag is never written.
type Persistence interface {
	Load(ctx context.Context) (map[string]Line, error)
	Save(ctx context.Context, lines map[string]Line) error
}
