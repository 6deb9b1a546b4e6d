// Package gateway implements the remote catalog and order collaborators:
// a REST client for the upstream shop API and a Postgres store for
// deployments that own the inventory database.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

var (
	_ catalog.Gateway   = (*Client)(nil)
	_ cart.OrderGateway = (*Client)(nil)
	_ cart.OrderAdmin   = (*Client)(nil)
)

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 30 * time.Second

const maxResponseSize = 10 << 20

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the upstream shop API over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: base, http: httpClient, logger: logger}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	u.Path, _ = url.PathUnescape(u.RawPath)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s %s: %w: %w", method, path, httpx.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("gateway: %s %s: read body: %w: %w", method, path, httpx.ErrUnavailable, err)
	}
	c.logger.Debug("gateway request", slog.String("method", method), slog.String("path", path),
		slog.Int("status", resp.StatusCode), slog.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

func pathID(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}

func queryOf(m map[string]string) url.Values {
	q := url.Values{}
	for k, v := range m {
		q.Set(k, v)
	}
	return q
}

func (f listFilter) values() url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

type listFilter cart.ListFilter

// ListProducts fetches products.
func (c *Client) ListProducts(ctx context.Context, filter catalog.ListFilter) ([]catalog.RawProduct, error) {
	body, err := c.do(ctx, http.MethodGet, "/products", queryOf(filter.Query()), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[catalog.RawProduct](body, "products")
}

// CreateProduct creates a product.
func (c *Client) CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.RawProduct, error) {
	body, err := c.do(ctx, http.MethodPost, "/products", nil, in)
	if err != nil {
		return catalog.RawProduct{}, err
	}
	return decodeItem[catalog.RawProduct](body, "product")
}

// UpdateProduct patches a product.
func (c *Client) UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (catalog.RawProduct, error) {
	body, err := c.do(ctx, http.MethodPut, pathID("/products", id), nil, patch)
	if err != nil {
		return catalog.RawProduct{}, err
	}
	return decodeItem[catalog.RawProduct](body, "product")
}

// DeleteProduct deletes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/products", id), nil, nil)
	return err
}

// ListCategories fetches categories.
func (c *Client) ListCategories(ctx context.Context) ([]catalog.RawCategory, error) {
	body, err := c.do(ctx, http.MethodGet, "/categories", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[catalog.RawCategory](body, "categories")
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, in catalog.CategoryInput) (catalog.RawCategory, error) {
	body, err := c.do(ctx, http.MethodPost, "/categories", nil, in)
	if err != nil {
		return catalog.RawCategory{}, err
	}
	return decodeItem[catalog.RawCategory](body, "category")
}

// UpdateCategory replaces a category's editable fields.
func (c *Client) UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (catalog.RawCategory, error) {
	body, err := c.do(ctx, http.MethodPut, pathID("/categories", id), nil, in)
	if err != nil {
		return catalog.RawCategory{}, err
	}
	return decodeItem[catalog.RawCategory](body, "category")
}

// DeleteCategory deletes a category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/categories", id), nil, nil)
	return err
}

// CreateOrder submits a checkout.
func (c *Client) CreateOrder(ctx context.Context, payload cart.OrderPayload) (cart.Confirmation, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders/create", nil, payload)
	if err != nil {
		return cart.Confirmation{}, err
	}
	wire, err := decodeItem[confirmationWire](body, "order")
	if err != nil {
		return cart.Confirmation{}, err
	}
	conf := wire.confirmation()
	if conf.OrderID == "" {
		return cart.Confirmation{}, fmt.Errorf("gateway: create order: %w: response carries no order id", httpx.ErrUnavailable)
	}
	return conf, nil
}

// ListOrders fetches orders for the back office.
func (c *Client) ListOrders(ctx context.Context, filter cart.ListFilter) ([]cart.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders", listFilter(filter).values(), nil)
	if err != nil {
		return nil, err
	}
	wires, err := decodeList[orderWire](body, "orders")
	if err != nil {
		return nil, err
	}
	out := make([]cart.Order, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.order())
	}
	return out, nil
}

// UpdateOrderStatus moves an order to status.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status cart.OrderStatus) error {
	_, err := c.do(ctx, http.MethodPut, pathID("/orders", id)+"/status", nil, map[string]cart.OrderStatus{"status": status})
	return err
}

// DeleteOrder deletes an order.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/orders", id), nil, nil)
	return err
}

// ListCustomers fetches customers for the back office.
func (c *Client) ListCustomers(ctx context.Context, filter cart.ListFilter) ([]cart.Customer, error) {
	body, err := c.do(ctx, http.MethodGet, "/customers", listFilter(filter).values(), nil)
	if err != nil {
		return nil, err
	}
	wires, err := decodeList[customerWire](body, "customers")
	if err != nil {
		return nil, err
	}
	out := make([]cart.Customer, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.customer())
	}
	return out, nil
}

// DeleteCustomer deletes a customer.
func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/customers", id), nil, nil)
	return err
}
