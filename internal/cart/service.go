package cart

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopmate/storefront-backend/internal/catalog"
	"github.com/shopmate/storefront-backend/pkg/db/models"
	"github.com/shopmate/storefront-backend/pkg/logger"
	"gorm.io/gorm"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

// View is the read model returned by every mutation. The server is
// authoritative, so callers replace their local state with it.
type View struct {
	CartID     uuid.UUID `json:"cart_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Items      []Line    `json:"items"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Line mirrors one cart row including its product snapshot.
type Line struct {
	ProductID            uuid.UUID `json:"product_id"`
	Name                 string    `json:"name"`
	PriceCents           int       `json:"price_cents"`
	DiscountedPriceCents *int      `json:"discounted_price_cents,omitempty"`
	ImageURL             string    `json:"image_url,omitempty"`
	InStock              bool      `json:"in_stock"`
	Quantity             int       `json:"quantity"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the authoritative cart for each customer.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*View, error)
	ApplyDelta(ctx context.Context, customerID, productID uuid.UUID, delta int) (*View, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, customerID uuid.UUID) (*View, error)
}

type service struct {
	repo    CartRepository
	catalog catalog.Service
	tx      txRunner
	logg    *logger.Logger
}

// NewService wires the cart service. All dependencies are required.
func NewService(repo CartRepository, catalogSvc catalog.Service, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: catalogSvc, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	record, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if IsNotFound(err) {
			return emptyView(customerID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return toView(record), nil
}

// AddItem sums the quantity into any existing line for the product and
// refreshes the stored snapshot from the catalog.
func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	snapshot, err := s.catalog.GetSnapshot(ctx, productID)
	if err != nil {
		return nil, err
	}

	var view *View
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := s.ensureCart(ctx, repo, customerID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, record.ID, productID)
		if err != nil && !IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		next := quantity
		itemID := uuid.New()
		if item != nil {
			next += item.Quantity
			itemID = item.ID
		}

		if err := repo.SaveItem(ctx, &models.CartItem{
			ID:                   itemID,
			CartID:               record.ID,
			ProductID:            productID,
			Quantity:             next,
			Name:                 snapshot.Name,
			PriceCents:           snapshot.PriceCents,
			DiscountedPriceCents: snapshot.DiscountedPriceCents,
			ImageURL:             snapshot.ImageURL,
			InStock:              snapshot.InStock,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}

		view, err = s.reload(ctx, repo, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithCustomerID(ctx, customerID.String()), "cart item added")
	return view, nil
}

// ApplyDelta adjusts the quantity of an existing line inside a single
// transaction. A line driven to zero or below is deleted; a delta for
// a product not in the cart is a no-op.
func (s *service) ApplyDelta(ctx context.Context, customerID, productID uuid.UUID, delta int) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if delta == 0 {
		return s.Get(ctx, customerID)
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindByCustomer(ctx, customerID)
		if err != nil {
			if IsNotFound(err) {
				view = emptyView(customerID)
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		item, err := repo.FindItem(ctx, record.ID, productID)
		if err != nil {
			if IsNotFound(err) {
				view = toView(record)
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		next := item.Quantity + delta
		if next < 1 {
			if err := repo.DeleteItem(ctx, record.ID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
			}
		} else {
			item.Quantity = next
			if err := repo.SaveItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
			}
		}

		view, err = s.reload(ctx, repo, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem drops the line regardless of quantity. Removing a product
// not in the cart succeeds.
func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	record, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if IsNotFound(err) {
			return emptyView(customerID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.DeleteItem(ctx, record.ID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return s.reload(ctx, s.repo, customerID)
}

// Clear empties the cart. Clearing an empty or missing cart succeeds.
func (s *service) Clear(ctx context.Context, customerID uuid.UUID) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	record, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if IsNotFound(err) {
			return emptyView(customerID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.ClearItems(ctx, record.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	s.logg.Info(s.logg.WithCustomerID(ctx, customerID.String()), "cart cleared")
	return s.reload(ctx, s.repo, customerID)
}

func (s *service) ensureCart(ctx context.Context, repo CartRepository, customerID uuid.UUID) (*models.Cart, error) {
	record, err := repo.FindByCustomer(ctx, customerID)
	if err == nil {
		return record, nil
	}
	if !IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return repo.Create(ctx, &models.Cart{ID: uuid.New(), CustomerID: customerID})
}

func (s *service) reload(ctx context.Context, repo CartRepository, customerID uuid.UUID) (*View, error) {
	record, err := repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if IsNotFound(err) {
			return emptyView(customerID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return toView(record), nil
}

func emptyView(customerID uuid.UUID) *View {
	return &View{CustomerID: customerID, Items: []Line{}}
}

func toView(record *models.Cart) *View {
	items := make([]Line, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, Line{
			ProductID:            item.ProductID,
			Name:                 item.Name,
			PriceCents:           item.PriceCents,
			DiscountedPriceCents: item.DiscountedPriceCents,
			ImageURL:             item.ImageURL,
			InStock:              item.InStock,
			Quantity:             item.Quantity,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})
	return &View{
		CartID:     record.ID,
		CustomerID: record.CustomerID,
		Items:      items,
		UpdatedAt:  record.UpdatedAt,
	}
}

// TotalItems sums quantities across lines.
func (v *View) TotalItems() int {
	total := 0
	for _, line := range v.Items {
		total += line.Quantity
	}
	return total
}

// TotalPriceCents sums effective line prices times quantity.
func (v *View) TotalPriceCents() int {
	total := 0
	for _, line := range v.Items {
		price := line.PriceCents
		if line.DiscountedPriceCents != nil {
			price = *line.DiscountedPriceCents
		}
		total += price * line.Quantity
	}
	return total
}
