package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := NewFromAddr(srv.Addr())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestKeyNamespacing(t *testing.T) {
	c := &Client{}
	if got := c.GuestCartKey("sess-1"); got != "sf:guest_cart:sess-1" {
		t.Fatalf("unexpected guest cart key %q", got)
	}
	if got := c.IdempotencyKey("cart", "abc"); got != "sf:idempotency:cart:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.RefreshTokenKey("cust-1"); got != "sf:session:cust-1" {
		t.Fatalf("unexpected session key %q", got)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := client.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Get(context.Background(), "missing")
	if err == nil || !Nil(err) {
		t.Fatalf("expected redis nil sentinel, got %v", err)
	}
}

func TestSetNXOnlyFirstWins(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "once", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX should win: ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "once", "second", time.Minute)
	if err != nil {
		t.Fatalf("second SetNX errored: %v", err)
	}
	if ok {
		t.Fatalf("second SetNX should lose")
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.StoreRefreshToken(ctx, "cust-1", "tok", time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := client.GetRefreshToken(ctx, "cust-1")
	if err != nil || got != "tok" {
		t.Fatalf("get: %q %v", got, err)
	}
	if err := client.RevokeRefreshToken(ctx, "cust-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := client.GetRefreshToken(ctx, "cust-1"); !Nil(err) {
		t.Fatalf("expected nil sentinel after revoke, got %v", err)
	}
}
