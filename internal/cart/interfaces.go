package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopmate/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// CartRepository abstracts cart persistence so the service can run
// against a transaction-scoped instance.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, record *models.Cart) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}
