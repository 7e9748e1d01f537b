package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is the shared foundation for the catalog, cart and customer
// repositories. It carries either the root connection or a transaction
// handle, so a repo rebound via WithTx stays inside the caller's tx.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
