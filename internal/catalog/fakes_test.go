package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errUpstreamDown = errors.New("dial tcp: connection refused")

type fakeGateway struct {
	mu            sync.Mutex
	products      []RawProduct
	categories    []RawCategory
	listErr       error
	mutateErr     error
	productCalls  int
	categoryCalls int
	started       chan struct{}
	release       chan struct{}
	nextID        int
	deleted       []string
}

func (g *fakeGateway) ListProducts(ctx context.Context, _ ListFilter) ([]RawProduct, error) {
	g.mu.Lock()
	g.productCalls++
	started, release := g.started, g.release
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]RawProduct(nil), g.products...), nil
}

func (g *fakeGateway) ListCategories(context.Context) ([]RawCategory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.categoryCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]RawCategory(nil), g.categories...), nil
}

func (g *fakeGateway) fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.productCalls
}

func (g *fakeGateway) setListErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listErr = err
}

func (g *fakeGateway) CreateProduct(_ context.Context, in ProductInput) (RawProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return RawProduct{}, g.mutateErr
	}
	g.nextID++
	body, _ := json.Marshal(map[string]any{
		"id":            "new-" + strconv.Itoa(g.nextID),
		"name":          in.Name,
		"price":         in.Price,
		"stockQuantity": in.StockQuantity,
		"categoryId":    in.CategoryID,
	})
	var raw RawProduct
	_ = json.Unmarshal(body, &raw)
	g.products = append(g.products, raw)
	return raw, nil
}

func (g *fakeGateway) UpdateProduct(_ context.Context, id string, patch ProductPatch) (RawProduct, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return RawProduct{}, g.mutateErr
	}
	fields := map[string]any{"id": id, "name": "updated " + id, "price": 10, "stockQuantity": 5}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.CategoryID != nil {
		fields["categoryId"] = *patch.CategoryID
	}
	if patch.StockQuantity != nil {
		fields["stockQuantity"] = *patch.StockQuantity
	}
	body, _ := json.Marshal(fields)
	var raw RawProduct
	_ = json.Unmarshal(body, &raw)
	return raw, nil
}

func (g *fakeGateway) DeleteProduct(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return g.mutateErr
	}
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *fakeGateway) CreateCategory(_ context.Context, in CategoryInput) (RawCategory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return RawCategory{}, g.mutateErr
	}
	g.nextID++
	return RawCategory{ID: OptString{Value: "c" + strconv.Itoa(g.nextID), Set: true}, Name: in.Name, Slug: in.Slug, Icon: in.Icon}, nil
}

func (g *fakeGateway) UpdateCategory(_ context.Context, id string, in CategoryInput) (RawCategory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return RawCategory{}, g.mutateErr
	}
	return RawCategory{ID: OptString{Value: id, Set: true}, Name: in.Name, Slug: in.Slug, Icon: in.Icon}, nil
}

func (g *fakeGateway) DeleteCategory(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return g.mutateErr
	}
	g.deleted = append(g.deleted, id)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func rawProduct(t *testing.T, doc string) RawProduct {
	t.Helper()
	var raw RawProduct
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

func rawCategory(t *testing.T, doc string) RawCategory {
	t.Helper()
	var raw RawCategory
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

func upstreamFixture(t *testing.T) *fakeGateway {
	t.Helper()
	return &fakeGateway{
		categories: []RawCategory{
			rawCategory(t, `{"id": 1, "name": "Điện thoại", "productCount": 1}`),
			rawCategory(t, `{"id": 2, "name": "Laptop", "slug": "laptop", "icon": "💻", "productCount": 3}`),
		},
		products: []RawProduct{
			rawProduct(t, `{"id": 10, "name": "iPhone 15 Pro", "price": 999, "stockQuantity": 45, "categoryId": 1, "rating": 4.8}`),
			rawProduct(t, `{"id": 11, "name": "MacBook Pro 16", "price": "2499.00", "stock_quantity": 12, "category": {"id": 2, "name": "Laptop"}, "rating": 4.9}`),
			rawProduct(t, `{"_id": "12", "name": "Dell XPS 13", "price": 1299, "quantity": 0, "category": "Laptop"}`),
			rawProduct(t, `{"id": 13, "name": "ThinkPad X1", "price": 1599, "stock": 7, "category_id": "2"}`),
		},
	}
}
