package cartstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopmate/storefront-backend/pkg/config"
	"github.com/shopmate/storefront-backend/pkg/logger"
)

func intPtr(v int) *int { return &v }

func snapshot(id string, priceCents int) ProductSnapshot {
	return ProductSnapshot{ID: id, Name: "product " + id, PriceCents: priceCents, InStock: true, AvailableQty: 100}
}

// fakeRemote applies the same delta semantics the real cart service
// does, with per-operation failure injection.
type fakeRemote struct {
	mu    sync.Mutex
	items map[string]Line

	failGet    error
	failAdd    error
	failDelta  error
	failRemove error
	failClear  error

	// failAddFor makes AddItem fail only for these product ids.
	failAddFor map[string]int

	getCalls   int
	addCalls   int
	clearCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: map[string]Line{}}
}

func (f *fakeRemote) Get(ctx context.Context) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet != nil {
		return nil, f.failGet
	}
	out := make([]Line, 0, len(f.items))
	for _, line := range f.items {
		out = append(out, line)
	}
	return out, nil
}

func (f *fakeRemote) AddItem(ctx context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.failAdd != nil {
		return f.failAdd
	}
	if remaining, ok := f.failAddFor[productID]; ok && remaining > 0 {
		f.failAddFor[productID]--
		return errors.New("injected add failure")
	}
	line, ok := f.items[productID]
	if ok {
		line.Quantity += quantity
	} else {
		line = Line{ProductID: productID, Product: snapshot(productID, 100), Quantity: quantity}
	}
	f.items[productID] = line
	return nil
}

func (f *fakeRemote) UpdateQuantityByDelta(ctx context.Context, productID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelta != nil {
		return f.failDelta
	}
	line, ok := f.items[productID]
	if !ok {
		return nil
	}
	line.Quantity += delta
	if line.Quantity <= 0 {
		delete(f.items, productID)
		return nil
	}
	f.items[productID] = line
	return nil
}

func (f *fakeRemote) RemoveItem(ctx context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRemove != nil {
		return f.failRemove
	}
	delete(f.items, productID)
	return nil
}

func (f *fakeRemote) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	if f.failClear != nil {
		return f.failClear
	}
	f.items = map[string]Line{}
	return nil
}

func (f *fakeRemote) set(productID string, quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[productID] = Line{ProductID: productID, Product: snapshot(productID, 100), Quantity: quantity}
}

func (f *fakeRemote) quantity(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[productID].Quantity
}

func newGuestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Mode: ModeGuest, Persistence: NewMemoryPersistence()})
	if err != nil {
		t.Fatalf("new guest store: %v", err)
	}
	return s
}

func newAuthedStore(t *testing.T, remote RemoteCart) *Store {
	t.Helper()
	s, err := New(Options{Mode: ModeAuthenticated, Remote: remote})
	if err != nil {
		t.Fatalf("new authenticated store: %v", err)
	}
	return s
}

func TestNewValidatesModeDependencies(t *testing.T) {
	if _, err := New(Options{Mode: ModeGuest}); err == nil {
		t.Fatal("guest store without persistence should fail")
	}
	if _, err := New(Options{Mode: ModeAuthenticated}); err == nil {
		t.Fatal("authenticated store without remote should fail")
	}
	if _, err := New(Options{Mode: "weird"}); err == nil {
		t.Fatal("unknown mode should fail")
	}
}

func TestAddItemMergesQuantities(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	if err := s.AddItem(ctx, snapshot("A", 100), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddItem(ctx, snapshot("A", 100), 3); err != nil {
		t.Fatalf("add again: %v", err)
	}

	if got := s.Quantity("A"); got != 5 {
		t.Fatalf("expected merged quantity 5, got %d", got)
	}
	if got := s.TotalUniqueItems(); got != 1 {
		t.Fatalf("expected one line, got %d", got)
	}
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	if err := s.AddItem(ctx, snapshot("A", 100), 0); err == nil {
		t.Fatal("zero quantity must be rejected")
	}
	if err := s.AddItem(ctx, ProductSnapshot{}, 1); err == nil {
		t.Fatal("missing product id must be rejected")
	}
	if got := s.TotalItems(); got != 0 {
		t.Fatalf("rejected adds must not mutate state, got %d items", got)
	}
}

// No sequence of adds and updates may leave a zero-or-negative line.
func TestNoZeroQuantityLinesEver(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	_ = s.AddItem(ctx, snapshot("A", 100), 2)
	_ = s.UpdateQuantity(ctx, "A", -1)
	_ = s.UpdateQuantity(ctx, "A", -5)
	_ = s.AddItem(ctx, snapshot("B", 50), 1)
	_ = s.UpdateQuantity(ctx, "B", -1)
	_ = s.UpdateQuantity(ctx, "C", -3)

	for _, line := range s.Lines() {
		if line.Quantity <= 0 {
			t.Fatalf("line %s has non-positive quantity %d", line.ProductID, line.Quantity)
		}
	}
	if got := s.TotalItems(); got != 0 {
		t.Fatalf("expected empty cart, got %d items", got)
	}
}

func TestUpdateQuantityDeletesAtZero(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	_ = s.AddItem(ctx, snapshot("A", 100), 3)
	if err := s.UpdateQuantity(ctx, "A", -3); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := s.TotalUniqueItems(); got != 0 {
		t.Fatalf("line should be deleted at zero, have %d lines", got)
	}
}

func TestUpdateQuantityClampsUnderflow(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	_ = s.AddItem(ctx, snapshot("A", 100), 2)
	if err := s.UpdateQuantity(ctx, "A", -10); err != nil {
		t.Fatalf("underflow must not error: %v", err)
	}
	if got := s.TotalUniqueItems(); got != 0 {
		t.Fatalf("underflow should delete the line, have %d lines", got)
	}
}

// updateQuantity on an absent id must not create a line; a later add
// starts fresh rather than resuming the deleted quantity.
func TestUpdateQuantityAbsentIsNoOp(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	if err := s.UpdateQuantity(ctx, "ghost", 4); err != nil {
		t.Fatalf("absent update must not error: %v", err)
	}
	if got := s.TotalUniqueItems(); got != 0 {
		t.Fatalf("absent update must not create lines, have %d", got)
	}

	_ = s.AddItem(ctx, snapshot("A", 100), 3)
	_ = s.UpdateQuantity(ctx, "A", -3)
	_ = s.UpdateQuantity(ctx, "A", 3)
	if got := s.Quantity("A"); got != 0 {
		t.Fatalf("delta on deleted line must be a no-op, got quantity %d", got)
	}

	_ = s.AddItem(ctx, snapshot("A", 100), 3)
	if got := s.Quantity("A"); got != 3 {
		t.Fatalf("fresh add after delete should start at 3, got %d", got)
	}
}

func TestRemoveItemAbsentIsNoOp(t *testing.T) {
	s := newGuestStore(t)
	if err := s.RemoveItem(context.Background(), "ghost"); err != nil {
		t.Fatalf("absent remove must not error: %v", err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	_ = s.AddItem(ctx, snapshot("A", 100), 2)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if got := s.TotalItems(); got != 0 {
		t.Fatalf("expected empty cart, got %d", got)
	}
}

func TestTotalPricePrefersDiscountedPrice(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	discounted := snapshot("A", 100)
	discounted.DiscountedPriceCents = intPtr(80)
	_ = s.AddItem(ctx, discounted, 2)

	if got := s.TotalPriceCents(); got != 160 {
		t.Fatalf("expected discounted total 160, got %d", got)
	}
}

func TestTotalsCountUniqueVersusQuantity(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	_ = s.AddItem(ctx, snapshot("A", 10), 3)
	_ = s.AddItem(ctx, snapshot("B", 10), 1)
	_ = s.AddItem(ctx, snapshot("C", 10), 5)

	if got := s.TotalItems(); got != 9 {
		t.Fatalf("expected 9 total items, got %d", got)
	}
	if got := s.TotalUniqueItems(); got != 3 {
		t.Fatalf("expected 3 unique items, got %d", got)
	}
}

func TestGuestPersistenceRoundTrip(t *testing.T) {
	persist := NewMemoryPersistence()
	ctx := context.Background()

	first, err := New(Options{Mode: ModeGuest, Persistence: persist})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = first.AddItem(ctx, snapshot("A", 100), 2)
	_ = first.AddItem(ctx, snapshot("B", 50), 4)

	second, err := New(Options{Mode: ModeGuest, Persistence: persist})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	if got := second.Quantity("A"); got != 2 {
		t.Fatalf("expected A=2 after reload, got %d", got)
	}
	if got := second.Quantity("B"); got != 4 {
		t.Fatalf("expected B=4 after reload, got %d", got)
	}
	if second.Syncing() {
		t.Fatal("syncing flag must never round-trip through persistence")
	}
}

func TestSubscribersFireOnMutation(t *testing.T) {
	s := newGuestStore(t)
	ctx := context.Background()

	var fired int
	cancel := s.Subscribe(func() { fired++ })

	_ = s.AddItem(ctx, snapshot("A", 100), 1)
	if fired == 0 {
		t.Fatal("subscriber should fire on add")
	}

	before := fired
	_ = s.UpdateQuantity(ctx, "ghost", 1)
	if fired != before {
		t.Fatal("no-op mutations must not notify")
	}

	cancel()
	before = fired
	_ = s.AddItem(ctx, snapshot("B", 100), 1)
	if fired != before {
		t.Fatal("cancelled subscriber must not fire")
	}
}

func TestAuthenticatedMutationMirrorsAndRefreshes(t *testing.T) {
	remote := newFakeRemote()
	s := newAuthedStore(t, remote)
	ctx := context.Background()

	if err := s.AddItem(ctx, snapshot("A", 100), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := remote.quantity("A"); got != 2 {
		t.Fatalf("remote should hold 2, got %d", got)
	}
	if got := s.Quantity("A"); got != 2 {
		t.Fatalf("local should match authoritative state, got %d", got)
	}

	if err := s.UpdateQuantity(ctx, "A", -1); err != nil {
		t.Fatalf("delta: %v", err)
	}
	if got := remote.quantity("A"); got != 1 {
		t.Fatalf("remote should hold 1 after delta, got %d", got)
	}

	if err := s.RemoveItem(ctx, "A"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.TotalItems(); got != 0 {
		t.Fatalf("expected empty cart after remove, got %d", got)
	}

	if s.Syncing() {
		t.Fatal("syncing must reset after each operation")
	}
}

// A failed remote call keeps the optimistic local change and surfaces
// the error; there is no compensating rollback.
func TestRemoteFailureKeepsOptimisticState(t *testing.T) {
	remote := newFakeRemote()
	remote.failAdd = errors.New("network down")
	s := newAuthedStore(t, remote)
	ctx := context.Background()

	err := s.AddItem(ctx, snapshot("A", 100), 2)
	if err == nil {
		t.Fatal("expected remote failure to surface")
	}
	if got := s.Quantity("A"); got != 2 {
		t.Fatalf("optimistic state should survive failure, got %d", got)
	}
	if s.Syncing() {
		t.Fatal("syncing must reset on failure")
	}
}

func TestFetchServerCartFailSoft(t *testing.T) {
	remote := newFakeRemote()
	s := newAuthedStore(t, remote)
	ctx := context.Background()

	_ = s.AddItem(ctx, snapshot("A", 100), 2)

	remote.failGet = errors.New("timeout")
	if err := s.FetchServerCart(ctx); err == nil {
		t.Fatal("expected fetch failure to surface")
	}
	if got := s.Quantity("A"); got != 2 {
		t.Fatalf("failed fetch must leave prior state, got %d", got)
	}
}

func TestFetchServerCartReplacesLocalState(t *testing.T) {
	remote := newFakeRemote()
	remote.set("X", 7)
	s := newAuthedStore(t, remote)
	ctx := context.Background()

	if err := s.FetchServerCart(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := s.Quantity("X"); got != 7 {
		t.Fatalf("expected server state adopted, got %d", got)
	}
}

func TestFetchServerCartRequiresAuthenticatedMode(t *testing.T) {
	s := newGuestStore(t)
	if err := s.FetchServerCart(context.Background()); err == nil {
		t.Fatal("guest fetch must be rejected")
	}
}

// Guest adds, logs in with an empty server cart, then decrements while
// authenticated; the end-to-end totals must track the journey.
func TestGuestToAuthenticatedJourney(t *testing.T) {
	remote := newFakeRemote()
	persist := NewMemoryPersistence()
	ctx := context.Background()

	s, err := New(Options{Mode: ModeGuest, Persistence: persist})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_ = s.AddItem(ctx, snapshot("X", 50), 2)
	if got := s.TotalPriceCents(); got != 100 {
		t.Fatalf("guest total should be 100, got %d", got)
	}

	if err := s.Login(ctx, remote); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := remote.quantity("X"); got != 2 {
		t.Fatalf("server should hold the merged guest cart, got %d", got)
	}
	if s.Mode() != ModeAuthenticated {
		t.Fatalf("expected authenticated mode after login, got %s", s.Mode())
	}

	if err := s.UpdateQuantity(ctx, "X", -1); err != nil {
		t.Fatalf("authenticated delta: %v", err)
	}
	if got := s.Quantity("X"); got != 1 {
		t.Fatalf("expected X=1 after delta, got %d", got)
	}
	if got := s.TotalPriceCents(); got != 50 {
		t.Fatalf("expected total 50, got %d", got)
	}
}

func TestLoginTwiceMergesOnce(t *testing.T) {
	remote := newFakeRemote()
	persist := NewMemoryPersistence()
	ctx := context.Background()

	s, err := New(Options{Mode: ModeGuest, Persistence: persist})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = s.AddItem(ctx, snapshot("A", 100), 2)

	if err := s.Login(ctx, remote); err != nil {
		t.Fatalf("first login: %v", err)
	}
	clears := remote.clearCalls
	if err := s.Login(ctx, remote); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if remote.clearCalls != clears {
		t.Fatal("second login must not re-run the merge")
	}
	if got := s.Quantity("A"); got != 2 {
		t.Fatalf("quantity must not double on repeat login, got %d", got)
	}
}

func TestOptionsFromConfigSeedsTunables(t *testing.T) {
	opts := OptionsFromConfig(config.CartConfig{
		RemoteTimeout:      3 * time.Second,
		MergeRetryAttempts: 7,
		MergeRetryBackoff:  50 * time.Millisecond,
	})
	opts.Mode = ModeGuest
	opts.Persistence = NewMemoryPersistence()

	s, err := New(opts)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.remoteTimeout != 3*time.Second {
		t.Fatalf("expected remote timeout 3s, got %v", s.remoteTimeout)
	}
	if s.retryAttempts != 7 {
		t.Fatalf("expected 7 retry attempts, got %d", s.retryAttempts)
	}
	if s.retryBackoff != 50*time.Millisecond {
		t.Fatalf("expected 50ms backoff, got %v", s.retryBackoff)
	}
}

func TestFailedOperationLogsCartMode(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	remote := newFakeRemote()
	remote.failAdd = errors.New("unreachable")
	s, err := New(Options{Mode: ModeAuthenticated, Remote: remote, Logger: logg})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.AddItem(context.Background(), snapshot("A", 100), 1); err == nil {
		t.Fatal("expected remote failure to surface")
	}
	if !strings.Contains(buf.String(), `"cart_mode":"authenticated"`) {
		t.Fatalf("expected cart_mode in log output, got %s", buf.String())
	}
}
