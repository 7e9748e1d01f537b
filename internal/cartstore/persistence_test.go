package cartstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/shopmate/storefront-backend/pkg/config"
	pkgredis "github.com/shopmate/storefront-backend/pkg/redis"
)

func newRedisPersistence(t *testing.T, sessionID string) *RedisPersistence {
	t.Helper()
	srv := miniredis.RunT(t)
	client := pkgredis.NewFromAddr(srv.Addr())
	t.Cleanup(func() { _ = client.Close() })

	persist, err := NewRedisPersistence(client, sessionID, config.CartConfig{GuestTTL: time.Hour})
	if err != nil {
		t.Fatalf("new redis persistence: %v", err)
	}
	return persist
}

func TestRedisPersistenceRoundTrip(t *testing.T) {
	persist := newRedisPersistence(t, "sess-1")
	ctx := context.Background()

	discounted := snapshot("A", 100)
	discounted.DiscountedPriceCents = intPtr(80)
	lines := map[string]Line{
		"A": {ProductID: "A", Product: discounted, Quantity: 2},
		"B": {ProductID: "B", Product: snapshot("B", 50), Quantity: 4},
	}

	if err := persist.Save(ctx, lines); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := persist.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(loaded))
	}
	if loaded["A"].Quantity != 2 || loaded["B"].Quantity != 4 {
		t.Fatalf("quantities did not round-trip: %+v", loaded)
	}
	if loaded["A"].Product.EffectivePriceCents() != 80 {
		t.Fatalf("discounted price did not round-trip: %+v", loaded["A"].Product)
	}
}

func TestRedisPersistenceMissingCartIsNotAnError(t *testing.T) {
	persist := newRedisPersistence(t, "sess-empty")

	loaded, err := persist.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected no cart, got %+v", loaded)
	}
}

func TestRedisPersistenceValidation(t *testing.T) {
	if _, err := NewRedisPersistence(nil, "sess", config.CartConfig{GuestTTL: time.Hour}); err == nil {
		t.Fatal("nil client must be rejected")
	}
	srv := miniredis.RunT(t)
	client := pkgredis.NewFromAddr(srv.Addr())
	t.Cleanup(func() { _ = client.Close() })
	if _, err := NewRedisPersistence(client, "", config.CartConfig{GuestTTL: time.Hour}); err == nil {
		t.Fatal("empty session id must be rejected")
	}
}

func TestHydrateReadsPersistedGuestCart(t *testing.T) {
	persist := newRedisPersistence(t, "sess-2")
	ctx := context.Background()

	first, err := New(Options{Mode: ModeGuest, Persistence: persist})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = first.AddItem(ctx, snapshot("A", 100), 3)

	second, err := New(Options{Mode: ModeGuest, Persistence: persist})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if got := second.Quantity("A"); got != 3 {
		t.Fatalf("expected A=3 after hydrate, got %d", got)
	}
}

func TestRedisPersistenceExpiresWithGuestTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := pkgredis.NewFromAddr(srv.Addr())
	t.Cleanup(func() { _ = client.Close() })

	persist, err := NewRedisPersistence(client, "sess-ttl", config.CartConfig{GuestTTL: 30 * time.Minute})
	if err != nil {
		t.Fatalf("new redis persistence: %v", err)
	}

	ctx := context.Background()
	lines := map[string]Line{"A": {ProductID: "A", Product: snapshot("A", 100), Quantity: 1}}
	if err := persist.Save(ctx, lines); err != nil {
		t.Fatalf("save: %v", err)
	}

	key := client.GuestCartKey("sess-ttl")
	if got := srv.TTL(key); got != 30*time.Minute {
		t.Fatalf("expected guest ttl 30m on %s, got %v", key, got)
	}
}
