package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopmate/storefront-backend/pkg/db/models"
	"gorm.io/gorm"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

type stubProductLoader struct {
	product *models.Product
	err     error
}

func (s stubProductLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func TestGetSnapshotDenormalizesProduct(t *testing.T) {
	t.Parallel()

	discounted := 80
	product := &models.Product{
		ID:                   uuid.New(),
		Name:                 "Ceramic Mug",
		PriceCents:           100,
		DiscountedPriceCents: &discounted,
		InStock:              true,
		AvailableQty:         12,
		IsActive:             true,
	}
	svc, err := NewService(stubProductLoader{product: product})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	snap, err := svc.GetSnapshot(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if snap.EffectivePriceCents() != 80 {
		t.Fatalf("expected effective price 80, got %d", snap.EffectivePriceCents())
	}
	if snap.Name != "Ceramic Mug" || snap.AvailableQty != 12 {
		t.Fatalf("snapshot fields not carried: %+v", snap)
	}
	// Mutating the snapshot's pointer must not reach the model.
	*snap.DiscountedPriceCents = 1
	if *product.DiscountedPriceCents != 80 {
		t.Fatal("snapshot must copy the discounted price")
	}
}

func TestGetSnapshotNotFound(t *testing.T) {
	t.Parallel()

	svc, err := NewService(stubProductLoader{err: gorm.ErrRecordNotFound})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.GetSnapshot(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetSnapshotHidesInactiveProducts(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Name: "Retired", PriceCents: 100, IsActive: false}
	svc, _ := NewService(stubProductLoader{product: product})

	_, err := svc.GetSnapshot(context.Background(), product.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for inactive product, got %v", err)
	}
}

func TestGetSnapshotRejectsNilID(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(stubProductLoader{})
	_, err := svc.GetSnapshot(context.Background(), uuid.Nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
