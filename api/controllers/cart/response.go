package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/shopmate/storefront-backend/internal/cart"
	"github.com/shopmate/storefront-backend/pkg/money"
	"github.com/shopmate/storefront-backend/pkg/types"
)

func newCartResponse(view *cartsvc.View) types.CartDTO {
	items := make([]types.CartItemDTO, 0, len(view.Items))
	for _, line := range view.Items {
		items = append(items, types.CartItemDTO{
			ProductID:            line.ProductID.String(),
			Name:                 line.Name,
			PriceCents:           line.PriceCents,
			DiscountedPriceCents: line.DiscountedPriceCents,
			ImageURL:             line.ImageURL,
			InStock:              line.InStock,
			Quantity:             line.Quantity,
		})
	}

	dto := types.CartDTO{
		Items:            items,
		TotalItems:       view.TotalItems(),
		TotalUniqueItems: len(view.Items),
		TotalPriceCents:  view.TotalPriceCents(),
		TotalPrice:       money.FormatCents(view.TotalPriceCents()),
	}
	if view.CartID != uuid.Nil {
		dto.CartID = view.CartID.String()
	}
	return dto
}
