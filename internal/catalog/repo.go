package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopmate/storefront-backend/internal/repo"
	"github.com/shopmate/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads catalog rows for snapshot resolution.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// GetByID loads a single product row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
