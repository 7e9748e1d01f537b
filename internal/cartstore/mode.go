package cartstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

// modeStrategy isolates the mode-specific half of each mutation. The
// local map semantics are identical in both modes; strategies differ
// only in what happens around the local change.
type modeStrategy interface {
	addItem(ctx context.Context, s *Store, product ProductSnapshot, quantity int) error
	updateQuantity(ctx context.Context, s *Store, productID string, delta int) error
	removeItem(ctx context.Context, s *Store, productID string) error
	clear(ctx context.Context, s *Store) error
}

func strategyFor(mode Mode) modeStrategy {
	if mode == ModeAuthenticated {
		return authenticatedStrategy{}
	}
	return guestStrategy{}
}

// guestStrategy mutates the local map synchronously and writes the
// durable snapshot. No network is involved.
type guestStrategy struct{}

func (guestStrategy) addItem(ctx context.Context, s *Store, product ProductSnapshot, quantity int) error {
	s.applyAdd(product, quantity)
	s.notify()
	return s.persistGuest(ctx)
}

func (guestStrategy) updateQuantity(ctx context.Context, s *Store, productID string, delta int) error {
	if !s.applyDelta(productID, delta) {
		return nil
	}
	s.notify()
	return s.persistGuest(ctx)
}

func (guestStrategy) removeItem(ctx context.Context, s *Store, productID string) error {
	if !s.applyRemove(productID) {
		return nil
	}
	s.notify()
	return s.persistGuest(ctx)
}

func (guestStrategy) clear(ctx context.Context, s *Store) error {
	s.applyClear()
	s.notify()
	return s.persistGuest(ctx)
}

// authenticatedStrategy applies the same local change optimistically,
// mirrors it to the remote cart, then adopts the authoritative remote
// state. A failed remote call surfaces an error and leaves the
// optimistic local state in place; the only recovery path is a later
// successful fetch.
type authenticatedStrategy struct{}

func (authenticatedStrategy) addItem(ctx context.Context, s *Store, product ProductSnapshot, quantity int) error {
	s.applyAdd(product, quantity)
	s.notify()
	return s.confirmRemote(ctx, "add_item", func(callCtx context.Context) error {
		return s.remote.AddItem(callCtx, product.ID, quantity)
	})
}

func (authenticatedStrategy) updateQuantity(ctx context.Context, s *Store, productID string, delta int) error {
	// Absent ids never create lines, locally or remotely.
	if !s.applyDelta(productID, delta) {
		return nil
	}
	s.notify()
	return s.confirmRemote(ctx, "update_quantity", func(callCtx context.Context) error {
		return s.remote.UpdateQuantityByDelta(callCtx, productID, delta)
	})
}

func (authenticatedStrategy) removeItem(ctx context.Context, s *Store, productID string) error {
	if !s.applyRemove(productID) {
		return nil
	}
	s.notify()
	return s.confirmRemote(ctx, "remove_item", func(callCtx context.Context) error {
		return s.remote.RemoveItem(callCtx, productID)
	})
}

func (authenticatedStrategy) clear(ctx context.Context, s *Store) error {
	s.applyClear()
	s.notify()
	return s.confirmRemote(ctx, "clear", func(callCtx context.Context) error {
		return s.remote.Clear(callCtx)
	})
}

// applyAdd merges quantity into the line for the product.
func (s *Store) applyAdd(product ProductSnapshot, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[product.ID]
	if ok {
		line.Quantity += quantity
		line.Product = product
	} else {
		line = Line{ProductID: product.ID, Product: product, Quantity: quantity}
	}
	s.lines[product.ID] = line
}

// applyDelta adjusts an existing line, deleting it at zero. Returns
// false when the product id is absent (silent no-op).
func (s *Store) applyDelta(productID string, delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[productID]
	if !ok {
		return false
	}
	next := line.Quantity + delta
	if next <= 0 {
		delete(s.lines, productID)
		return true
	}
	line.Quantity = next
	s.lines[productID] = line
	return true
}

func (s *Store) applyRemove(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[productID]; !ok {
		return false
	}
	delete(s.lines, productID)
	return true
}

func (s *Store) applyClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = map[string]Line{}
}

// confirmRemote runs the mirror call under the syncing flag and, on
// success, adopts the authoritative remote state.
func (s *Store) confirmRemote(ctx context.Context, operation string, call func(context.Context) error) error {
	s.setSyncing(true)
	defer s.setSyncing(false)

	started := time.Now()
	callCtx, cancel := s.remoteContext(ctx)
	err := call(callCtx)
	cancel()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror "+operation+" to server cart")
	}
	s.metrics.ObserveSync(operation, time.Since(started))

	return s.refreshFromRemote(ctx)
}

func (s *Store) persistGuest(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	s.mu.Lock()
	snapshot := copyLines(s.lines)
	s.mu.Unlock()
	if err := s.persist.Save(ctx, snapshot); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist guest cart")
	}
	return nil
}

func appendErr(acc error, productID string, err error) error {
	return multierr.Append(acc, fmt.Errorf("re-add %s: %w", productID, err))
}
