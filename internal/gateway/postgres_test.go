package gateway

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

func TestParseID(t *testing.T) {
	id, err := parseID("product", " 42 ")
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID("product", bad)
		require.ErrorIs(t, err, httpx.ErrNotFound, bad)
	}
}

func TestPageOf(t *testing.T) {
	limit, offset := pageOf(0, 0)
	require.Equal(t, defaultPageSize, limit)
	require.Zero(t, offset)

	limit, offset = pageOf(3, 20)
	require.Equal(t, 20, limit)
	require.Equal(t, 40, offset)

	limit, _ = pageOf(1, 10_000)
	require.Equal(t, maxPageSize, limit)
}

func TestOrderLinesMergeAndSort(t *testing.T) {
	lines, err := orderLines([]cart.OrderItem{
		{ProductID: "9", Quantity: 1},
		{ProductID: "2", Quantity: 2},
		{ProductID: "9", Quantity: 3},
	})
	require.NoError(t, err)
	require.Equal(t, []orderLine{{productID: 2, quantity: 2}, {productID: 9, quantity: 4}}, lines)

	_, err = orderLines([]cart.OrderItem{{ProductID: "fb-1", Quantity: 1}})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = orderLines([]cart.OrderItem{{ProductID: "1", Quantity: 0}})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestOrderCode(t *testing.T) {
	code := orderCode(time.Date(2026, 5, 4, 23, 0, 0, 0, time.FixedZone("ICT", 7*3600)))
	require.True(t, strings.HasPrefix(code, "ORD-20260504-"), code)
	require.Len(t, code, len("ORD-20260504-")+8)
	require.NotEqual(t, code, orderCode(time.Now()))
}

func TestProductRowRaw(t *testing.T) {
	raw := productRow{
		id: "7", name: "Phone", price: "499.90", stock: 5,
		categoryID: "3", categoryName: "Điện thoại", active: true,
	}.raw()

	require.Equal(t, "7", raw.ID.Value)
	require.True(t, raw.Price.Value.Equal(decimal.RequireFromString("499.9")))
	require.Equal(t, 5, raw.StockQuantity.Value)
	require.True(t, *raw.IsActive)
	require.JSONEq(t, `{"id":"3","name":"Điện thoại"}`, string(raw.Category))

	bare := productRow{id: "8", name: "Cable", price: "x"}.raw()
	require.False(t, bare.Price.Set)
	require.Nil(t, bare.Category)
}

// newPostgresStore connects to STOREFRONT_TEST_PG_DSN and migrates a
// throwaway schema.
func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	dsn := os.Getenv("STOREFRONT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("storefront_test_%d", time.Now().UnixNano())

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStore(pool, nil)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresCatalogRoundTrip(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	laptops, err := store.CreateCategory(ctx, catalog.CategoryInput{Name: "Laptop", Slug: "laptop"})
	require.NoError(t, err)
	require.Equal(t, 0, laptops.ProductCount.Value)

	created, err := store.CreateProduct(ctx, catalog.ProductInput{
		Name:          "ThinkPad",
		Price:         decimal.RequireFromString("1299.99"),
		StockQuantity: 4,
		CategoryID:    laptops.ID.Value,
	})
	require.NoError(t, err)
	require.Equal(t, "ThinkPad", created.Name)

	products, err := store.ListProducts(ctx, catalog.ListFilter{Category: "laptop"})
	require.NoError(t, err)
	require.Len(t, products, 1)

	norm := catalog.NewNormalizer(nil)
	product := norm.Normalize(products[0], nil)
	require.Equal(t, catalog.CategoryRef{ID: laptops.ID.Value, Name: "Laptop"}, product.Category)
	require.Equal(t, 4, product.Stock)
	require.True(t, product.Price.Equal(decimal.RequireFromString("1299.99")))

	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	require.Equal(t, 1, categories[0].ProductCount.Value)

	name := "ThinkPad X1"
	updated, err := store.UpdateProduct(ctx, created.ID.Value, catalog.ProductPatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)

	require.NoError(t, store.DeleteCategory(ctx, laptops.ID.Value))
	orphan, err := store.ListProducts(ctx, catalog.ListFilter{})
	require.NoError(t, err)
	require.Nil(t, orphan[0].Category)

	require.NoError(t, store.DeleteProduct(ctx, created.ID.Value))
	require.ErrorIs(t, store.DeleteProduct(ctx, created.ID.Value), httpx.ErrNotFound)
	_, err = store.UpdateCategory(ctx, laptops.ID.Value, catalog.CategoryInput{Name: "Gone"})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestPostgresOrderLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	raw, err := store.CreateProduct(ctx, catalog.ProductInput{Name: "Mouse", Price: decimal.NewFromInt(25), StockQuantity: 3})
	require.NoError(t, err)
	id := raw.ID.Value

	_, err = store.CreateOrder(ctx, cart.OrderPayload{
		Items: []cart.OrderItem{{ProductID: id, Quantity: 4}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.ErrorIs(t, err, httpx.ErrConflict)

	conf, err := store.CreateOrder(ctx, cart.OrderPayload{
		Items:           []cart.OrderItem{{ProductID: id, ProductName: "Mouse", Quantity: 2, Price: decimal.NewFromInt(1)}},
		PaymentMethod:   "cod",
		ShippingAddress: "1 Main St",
		PhoneNumber:     "0900000000",
	})
	require.NoError(t, err)
	require.NotEmpty(t, conf.OrderID)
	require.Equal(t, cart.StatusPending, conf.Status)
	require.True(t, conf.TotalAmount.Equal(decimal.NewFromInt(50)))

	stockOf := func() int {
		products, err := store.ListProducts(ctx, catalog.ListFilter{})
		require.NoError(t, err)
		return products[0].StockQuantity.Value
	}
	require.Equal(t, 1, stockOf())

	orders, err := store.ListOrders(ctx, cart.ListFilter{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, conf.OrderCode, orders[0].Code)
	require.Len(t, orders[0].Items, 1)
	require.Equal(t, 2, orders[0].Items[0].Quantity)

	require.NoError(t, store.UpdateOrderStatus(ctx, conf.OrderID, cart.StatusCancelled))
	require.Equal(t, 3, stockOf())
	require.NoError(t, store.UpdateOrderStatus(ctx, conf.OrderID, cart.StatusCancelled))
	require.Equal(t, 3, stockOf())
	require.ErrorIs(t, store.UpdateOrderStatus(ctx, conf.OrderID, cart.StatusShipped), httpx.ErrConflict)

	require.NoError(t, store.DeleteOrder(ctx, conf.OrderID))
	require.ErrorIs(t, store.DeleteOrder(ctx, conf.OrderID), httpx.ErrNotFound)

	customers, err := store.ListCustomers(ctx, cart.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, customers)
	require.ErrorIs(t, store.DeleteCustomer(ctx, "99"), httpx.ErrNotFound)
}
