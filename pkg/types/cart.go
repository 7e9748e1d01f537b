package types

// CartItemDTO is the wire form of one cart line. The product columns
// are the snapshot captured when the line was created.
type CartItemDTO struct {
	ProductID            string `json:"product_id"`
	Name                 string `json:"name"`
	PriceCents           int    `json:"price_cents"`
	DiscountedPriceCents *int   `json:"discounted_price_cents,omitempty"`
	ImageURL             string `json:"image_url,omitempty"`
	InStock              bool   `json:"in_stock"`
	Quantity             int    `json:"quantity"`
}

// CartDTO is the wire form of a whole cart with derived totals.
type CartDTO struct {
	CartID           string        `json:"cart_id,omitempty"`
	Items            []CartItemDTO `json:"items"`
	TotalItems       int           `json:"total_items"`
	TotalUniqueItems int           `json:"total_unique_items"`
	TotalPriceCents  int           `json:"total_price_cents"`
	TotalPrice       string        `json:"total_price"`
}
