package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopmate/storefront-backend/pkg/db/models"
	"gorm.io/gorm"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

// Snapshot is the denormalized product view handed to carts at
// add-time. It is captured once and never re-fetched live.
type Snapshot struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	PriceCents           int       `json:"price_cents"`
	DiscountedPriceCents *int      `json:"discounted_price_cents,omitempty"`
	ImageURL             string    `json:"image_url,omitempty"`
	InStock              bool      `json:"in_stock"`
	AvailableQty         int       `json:"available_qty"`
}

// EffectivePriceCents prefers the discounted price when present.
func (s Snapshot) EffectivePriceCents() int {
	if s.DiscountedPriceCents != nil {
		return *s.DiscountedPriceCents
	}
	return s.PriceCents
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service resolves product snapshots for cart consumers.
type Service interface {
	GetSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error)
}

type service struct {
	repo productLoader
}

// NewService builds a catalog read service.
func NewService(repo productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// GetSnapshot loads and denormalizes a product. Inactive products are
// reported as not found so they cannot be added to carts.
func (s *service) GetSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	return &Snapshot{
		ID:                   product.ID,
		Name:                 product.Name,
		PriceCents:           product.PriceCents,
		DiscountedPriceCents: copyIntPtr(product.DiscountedPriceCents),
		ImageURL:             product.ImageURL,
		InStock:              product.InStock,
		AvailableQty:         product.AvailableQty,
	}, nil
}

func copyIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
