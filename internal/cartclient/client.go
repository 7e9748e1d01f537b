// Package cartclient is an HTTP client for the authoritative cart API.
// It satisfies cartstore.RemoteCart so a reconciliation store can treat
// a remote storefront deployment as its authenticated backend.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopmate/storefront-backend/internal/cartstore"
	"github.com/shopmate/storefront-backend/pkg/types"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// Options configures the remote cart client.
type Options struct {
	// BaseURL is the API root, e.g. https://shop.example.com.
	BaseURL string
	// AccessToken is sent as a bearer token on every request.
	AccessToken string
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// Client talks to the /api/v1/cart endpoints.
type Client struct {
	baseURL     string
	accessToken string
	httpc       *http.Client
}

// New validates the options and builds a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("cart api base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid cart api base url: %w", err)
	}
	if strings.TrimSpace(opts.AccessToken) == "" {
		return nil, fmt.Errorf("access token is required")
	}

	httpc := opts.HTTPClient
	if httpc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     base,
		accessToken: opts.AccessToken,
		httpc:       httpc,
	}, nil
}

var _ cartstore.RemoteCart = (*Client)(nil)

// Get fetches the authoritative cart contents.
func (c *Client) Get(ctx context.Context) ([]cartstore.Line, error) {
	var dto types.CartDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &dto); err != nil {
		return nil, err
	}
	return toLines(dto), nil
}

// AddItem adds quantity of the product to the remote cart.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) error {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	return c.do(ctx, http.MethodPost, "/api/v1/cart/items", body, nil)
}

// UpdateQuantityByDelta adjusts an existing line by a signed delta.
func (c *Client) UpdateQuantityByDelta(ctx context.Context, productID string, delta int) error {
	body := map[string]any{"delta": delta}
	return c.do(ctx, http.MethodPatch, "/api/v1/cart/items/"+url.PathEscape(productID), body, nil)
}

// RemoveItem drops the whole line for the product.
func (c *Client) RemoveItem(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+url.PathEscape(productID), nil, nil)
}

// Clear empties the remote cart.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cart", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		return pkgerrors.New(codeFromStatus(resp.StatusCode), envelope.Error.Message).
			WithDetails(map[string]any{"remote_code": envelope.Error.Code})
	}
	return pkgerrors.New(codeFromStatus(resp.StatusCode), fmt.Sprintf("cart api returned %d", resp.StatusCode))
}

func codeFromStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	default:
		return pkgerrors.CodeDependency
	}
}

func toLines(dto types.CartDTO) []cartstore.Line {
	lines := make([]cartstore.Line, 0, len(dto.Items))
	for _, item := range dto.Items {
		lines = append(lines, cartstore.Line{
			ProductID: item.ProductID,
			Product: cartstore.ProductSnapshot{
				ID:                   item.ProductID,
				Name:                 item.Name,
				PriceCents:           item.PriceCents,
				DiscountedPriceCents: item.DiscountedPriceCents,
				ImageURL:             item.ImageURL,
				InStock:              item.InStock,
			},
			Quantity: item.Quantity,
		})
	}
	return lines
}
