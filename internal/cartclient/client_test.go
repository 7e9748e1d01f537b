package cartclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopmate/storefront-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Options{BaseURL: server.URL, AccessToken: "token-123"})
	require.NoError(t, err)
	return server, client
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{AccessToken: "token"})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "http://localhost:8080"})
	assert.Error(t, err)
}

func TestGetDecodesEnvelope(t *testing.T) {
	discounted := 80
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/cart", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: types.CartDTO{
			Items: []types.CartItemDTO{
				{ProductID: "prod-1", Name: "Widget", PriceCents: 100, DiscountedPriceCents: &discounted, InStock: true, Quantity: 2},
			},
		}})
	})

	lines, err := client.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "prod-1", lines[0].ProductID)
	assert.Equal(t, "prod-1", lines[0].Product.ID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 80, lines[0].Product.EffectivePriceCents())
}

func TestAddItemSendsBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/cart/items", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "prod-1", body["product_id"])
		assert.Equal(t, float64(3), body["quantity"])

		json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: types.CartDTO{}})
	})

	require.NoError(t, client.AddItem(context.Background(), "prod-1", 3))
}

func TestUpdateQuantityByDeltaTargetsLine(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/cart/items/prod-9", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(-2), body["delta"])

		json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: types.CartDTO{}})
	})

	require.NoError(t, client.UpdateQuantityByDelta(context.Background(), "prod-9", -2))
}

func TestRemoveItemAndClear(t *testing.T) {
	var paths []string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: types.CartDTO{}})
	})

	require.NoError(t, client.RemoveItem(context.Background(), "prod-1"))
	require.NoError(t, client.Clear(context.Background()))
	assert.Equal(t, []string{"/api/v1/cart/items/prod-1", "/api/v1/cart"}, paths)
}

func TestErrorEnvelopeIsMapped(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(types.ErrorEnvelope{Error: types.APIError{
			Code:    "UNAUTHORIZED",
			Message: "authentication required",
		}})
	})

	err := client.AddItem(context.Background(), "prod-1", 1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestTransportFailureIsDependencyError(t *testing.T) {
	server, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	err := client.Clear(context.Background())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
