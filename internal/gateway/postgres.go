package gateway

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/db"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

var (
	_ catalog.Gateway   = (*Store)(nil)
	_ cart.OrderGateway = (*Store)(nil)
	_ cart.OrderAdmin   = (*Store)(nil)
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	dbtx
	db.Beginner
}

// Store implements the gateway directly on the inventory database.
type Store struct {
	pool   Pool
	logger *slog.Logger
	clock  func() time.Time
}

// NewStore builds a Postgres-backed gateway.
func NewStore(pool Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger, clock: time.Now}
}

// Migrate creates the storefront tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("gateway: migrate: %w", err)
	}
	return nil
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("gateway: %s %q: %w", kind, id, httpx.ErrNotFound)
	}
	return n, nil
}

func pageOf(page, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func mustAffect(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway: %s %s: %w", kind, id, httpx.ErrNotFound)
	}
	return nil
}

const productColumns = `
	SELECT p.id::text, p.name, p.description, p.price::text, p.stock_quantity,
	       COALESCE(p.category_id::text, ''), COALESCE(c.name, ''), p.image_url, p.is_active
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

type productRow struct {
	id, name, description, price string
	stock                        int
	categoryID, categoryName     string
	imageURL                     string
	active                       bool
}

func (r productRow) raw() catalog.RawProduct {
	active := r.active
	raw := catalog.RawProduct{
		ID:            catalog.OptString{Value: r.id, Set: true},
		Name:          r.name,
		Description:   r.description,
		ImageURL:      r.imageURL,
		StockQuantity: catalog.OptInt{Value: r.stock, Set: true},
		IsActive:      &active,
	}
	if price, err := decimal.NewFromString(r.price); err == nil {
		raw.Price = catalog.OptNumber{Value: price, Set: true}
	}
	if r.categoryID != "" {
		raw.Category, _ = json.Marshal(struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}{r.categoryID, r.categoryName})
	}
	return raw
}

func scanProduct(row pgx.Row) (catalog.RawProduct, error) {
	var r productRow
	if err := row.Scan(&r.id, &r.name, &r.description, &r.price, &r.stock, &r.categoryID, &r.categoryName, &r.imageURL, &r.active); err != nil {
		return catalog.RawProduct{}, err
	}
	return r.raw(), nil
}

// ListProducts pages through products joined with their category.
func (s *Store) ListProducts(ctx context.Context, filter catalog.ListFilter) ([]catalog.RawProduct, error) {
	var conditions []string
	var args []any
	argPos := 1
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("(p.category_id::text = $%d OR c.name = $%d OR c.slug = $%d)", argPos, argPos, argPos))
		args = append(args, filter.Category)
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageOf(filter.Page, filter.Limit)
	query := fmt.Sprintf("%s %s ORDER BY p.id LIMIT $%d OFFSET $%d", productColumns, where, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("gateway: list products: %w", err)
	}
	defer rows.Close()
	out := []catalog.RawProduct{}
	for rows.Next() {
		raw, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("gateway: scan product: %w", err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: list products: %w", err)
	}
	return out, nil
}

func (s *Store) getProduct(ctx context.Context, q dbtx, id int64) (catalog.RawProduct, error) {
	raw, err := scanProduct(q.QueryRow(ctx, productColumns+" WHERE p.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return raw, fmt.Errorf("gateway: product %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return raw, fmt.Errorf("gateway: get product %d: %w", id, err)
	}
	return raw, nil
}

func optionalCategory(id string) (*int64, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("gateway: category id %q: %w", id, httpx.ErrValidation)
	}
	return &n, nil
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.RawProduct, error) {
	categoryID, err := optionalCategory(in.CategoryID)
	if err != nil {
		return catalog.RawProduct{}, err
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, price, stock_quantity, category_id, image_url)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		RETURNING id`,
		in.Name, in.Description, in.Price.String(), in.StockQuantity, categoryID, in.ImageURL,
	).Scan(&id)
	if err != nil {
		return catalog.RawProduct{}, fmt.Errorf("gateway: create product: %w", err)
	}
	return s.getProduct(ctx, s.pool, id)
}

// UpdateProduct applies the non-nil fields of patch.
func (s *Store) UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (catalog.RawProduct, error) {
	pid, err := parseID("product", id)
	if err != nil {
		return catalog.RawProduct{}, err
	}
	var sets []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		args = append(args, patch.Price.String())
		sets = append(sets, fmt.Sprintf("price = $%d::numeric", len(args)))
	}
	if patch.StockQuantity != nil {
		add("stock_quantity", *patch.StockQuantity)
	}
	if patch.CategoryID != nil {
		categoryID, err := optionalCategory(*patch.CategoryID)
		if err != nil {
			return catalog.RawProduct{}, err
		}
		add("category_id", categoryID)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if len(sets) == 0 {
		return s.getProduct(ctx, s.pool, pid)
	}
	args = append(args, pid)
	query := fmt.Sprintf("UPDATE products SET %s, updated_at = NOW() WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return catalog.RawProduct{}, fmt.Errorf("gateway: update product %s: %w", id, err)
	}
	if err := mustAffect(tag, "product", id); err != nil {
		return catalog.RawProduct{}, err
	}
	return s.getProduct(ctx, s.pool, pid)
}

// DeleteProduct deletes a product.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	pid, err := parseID("product", id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, pid)
	if err != nil {
		return fmt.Errorf("gateway: delete product %s: %w", id, err)
	}
	return mustAffect(tag, "product", id)
}

const categoryColumns = `
	SELECT c.id::text, c.name, c.slug, c.icon, c.description, COUNT(p.id)
	FROM categories c
	LEFT JOIN products p ON p.category_id = c.id`

func scanCategory(row pgx.Row) (catalog.RawCategory, error) {
	var (
		raw   catalog.RawCategory
		id    string
		count int
	)
	if err := row.Scan(&id, &raw.Name, &raw.Slug, &raw.Icon, &raw.Description, &count); err != nil {
		return raw, err
	}
	raw.ID = catalog.OptString{Value: id, Set: true}
	raw.ProductCount = catalog.OptInt{Value: count, Set: true}
	return raw, nil
}

// ListCategories returns categories with their live product counts.
func (s *Store) ListCategories(ctx context.Context) ([]catalog.RawCategory, error) {
	rows, err := s.pool.Query(ctx, categoryColumns+" GROUP BY c.id ORDER BY c.id")
	if err != nil {
		return nil, fmt.Errorf("gateway: list categories: %w", err)
	}
	defer rows.Close()
	out := []catalog.RawCategory{}
	for rows.Next() {
		raw, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("gateway: scan category: %w", err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: list categories: %w", err)
	}
	return out, nil
}

func (s *Store) getCategory(ctx context.Context, id int64) (catalog.RawCategory, error) {
	raw, err := scanCategory(s.pool.QueryRow(ctx, categoryColumns+" WHERE c.id = $1 GROUP BY c.id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return raw, fmt.Errorf("gateway: category %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return raw, fmt.Errorf("gateway: get category %d: %w", id, err)
	}
	return raw, nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, in catalog.CategoryInput) (catalog.RawCategory, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, icon, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, in.Name, in.Slug, in.Icon, in.Description).Scan(&id)
	if err != nil {
		return catalog.RawCategory{}, fmt.Errorf("gateway: create category: %w", err)
	}
	return s.getCategory(ctx, id)
}

// UpdateCategory replaces a category's editable fields.
func (s *Store) UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (catalog.RawCategory, error) {
	cid, err := parseID("category", id)
	if err != nil {
		return catalog.RawCategory{}, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE categories SET name = $1, slug = $2, icon = $3, description = $4
		WHERE id = $5`, in.Name, in.Slug, in.Icon, in.Description, cid)
	if err != nil {
		return catalog.RawCategory{}, fmt.Errorf("gateway: update category %s: %w", id, err)
	}
	if err := mustAffect(tag, "category", id); err != nil {
		return catalog.RawCategory{}, err
	}
	return s.getCategory(ctx, cid)
}

// DeleteCategory deletes a category. Its products become uncategorized.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	cid, err := parseID("category", id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, cid)
	if err != nil {
		return fmt.Errorf("gateway: delete category %s: %w", id, err)
	}
	return mustAffect(tag, "category", id)
}

type orderLine struct {
	productID int64
	quantity  int
}

// orderLines merges duplicate products and sorts by id so concurrent
// checkouts lock product rows in the same order.
func orderLines(items []cart.OrderItem) ([]orderLine, error) {
	merged := map[int64]int{}
	for _, it := range items {
		pid, err := strconv.ParseInt(strings.TrimSpace(it.ProductID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gateway: order item product %q: %w", it.ProductID, httpx.ErrValidation)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("gateway: order item product %q: %w: quantity must be positive", it.ProductID, httpx.ErrValidation)
		}
		merged[pid] += it.Quantity
	}
	lines := make([]orderLine, 0, len(merged))
	for pid, qty := range merged {
		lines = append(lines, orderLine{productID: pid, quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].productID < lines[j].productID })
	return lines, nil
}

func orderCode(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateOrder reserves stock and records the order in one transaction.
// Line prices come from the products table.
func (s *Store) CreateOrder(ctx context.Context, payload cart.OrderPayload) (cart.Confirmation, error) {
	lines, err := orderLines(payload.Items)
	if err != nil {
		return cart.Confirmation{}, err
	}
	if len(lines) == 0 {
		return cart.Confirmation{}, fmt.Errorf("gateway: create order: %w: no items", httpx.ErrValidation)
	}

	conf := cart.Confirmation{
		OrderCode:     orderCode(s.clock()),
		Status:        cart.StatusPending,
		PaymentMethod: payload.PaymentMethod,
	}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		items := make([]cart.OrderItem, 0, len(lines))
		total := decimal.Zero
		for _, line := range lines {
			var (
				name      string
				priceText string
				stock     int
			)
			err := tx.QueryRow(ctx, `SELECT name, price::text, stock_quantity FROM products WHERE id = $1 AND is_active FOR UPDATE`, line.productID).
				Scan(&name, &priceText, &stock)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("gateway: product %d: %w", line.productID, httpx.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("gateway: lock product %d: %w", line.productID, err)
			}
			if stock < line.quantity {
				return fmt.Errorf("%w: product %d has %d, requested %d", ErrInsufficientStock, line.productID, stock, line.quantity)
			}
			price, err := decimal.NewFromString(priceText)
			if err != nil {
				return fmt.Errorf("gateway: product %d price: %w", line.productID, err)
			}
			if _, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = NOW() WHERE id = $1`, line.productID, line.quantity); err != nil {
				return fmt.Errorf("gateway: reserve product %d: %w", line.productID, err)
			}
			items = append(items, cart.OrderItem{
				ProductID:   strconv.FormatInt(line.productID, 10),
				ProductName: name,
				Quantity:    line.quantity,
				Price:       price,
			})
			total = total.Add(price.Mul(decimal.NewFromInt(int64(line.quantity))))
		}

		var orderID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (code, total_amount, status, payment_method, shipping_address, phone_number, notes)
			VALUES ($1, $2::numeric, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			conf.OrderCode, total.String(), string(cart.StatusPending), payload.PaymentMethod,
			payload.ShippingAddress, payload.PhoneNumber, payload.Notes,
		).Scan(&orderID, &conf.CreatedAt)
		if err != nil {
			return fmt.Errorf("gateway: insert order: %w", err)
		}
		for i, it := range items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
				VALUES ($1, $2, $3, $4, $5::numeric)`,
				orderID, lines[i].productID, it.ProductName, it.Quantity, it.Price.String()); err != nil {
				return fmt.Errorf("gateway: insert order item: %w", err)
			}
		}
		conf.OrderID = strconv.FormatInt(orderID, 10)
		conf.TotalAmount = total
		return nil
	})
	if err != nil {
		return cart.Confirmation{}, err
	}
	s.logger.Info("order created", slog.String("order_id", conf.OrderID), slog.String("code", conf.OrderCode), slog.String("total", conf.TotalAmount.String()))
	return conf, nil
}

// UpdateOrderStatus moves an order to status. Cancelling returns the reserved
// stock; a cancelled order cannot be reopened.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status cart.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("gateway: %w: unknown order status %q", httpx.ErrValidation, status)
	}
	oid, err := parseID("order", id)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, oid).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("gateway: order %s: %w", id, httpx.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("gateway: lock order %s: %w", id, err)
		}
		prev := cart.OrderStatus(current)
		if prev == status {
			return nil
		}
		if prev == cart.StatusCancelled {
			return fmt.Errorf("gateway: order %s: %w: cancelled orders cannot change status", id, httpx.ErrConflict)
		}
		if status == cart.StatusCancelled {
			if _, err := tx.Exec(ctx, `
				UPDATE products p
				SET stock_quantity = p.stock_quantity + oi.quantity, updated_at = NOW()
				FROM order_items oi
				WHERE oi.order_id = $1 AND p.id = oi.product_id`, oid); err != nil {
				return fmt.Errorf("gateway: restock order %s: %w", id, err)
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, oid, string(status)); err != nil {
			return fmt.Errorf("gateway: update order %s: %w", id, err)
		}
		return nil
	})
}

// DeleteOrder deletes an order and its items.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	oid, err := parseID("order", id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, oid)
	if err != nil {
		return fmt.Errorf("gateway: delete order %s: %w", id, err)
	}
	return mustAffect(tag, "order", id)
}

// ListOrders pages through orders, newest first.
func (s *Store) ListOrders(ctx context.Context, filter cart.ListFilter) ([]cart.Order, error) {
	var conditions []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(o.code ILIKE $%d OR c.name ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageOf(filter.Page, filter.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT o.id, o.code, COALESCE(c.name, ''), COALESCE(c.email, ''), o.total_amount::text, o.status, o.created_at
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		%s
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("gateway: list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders = []cart.Order{}
		ids    []int64
		index  = map[int64]int{}
	)
	for rows.Next() {
		var (
			o      cart.Order
			id     int64
			total  string
			status string
		)
		if err := rows.Scan(&id, &o.Code, &o.CustomerName, &o.CustomerEmail, &total, &status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("gateway: scan order: %w", err)
		}
		o.Status = cart.OrderStatus(status)
		o.ID = strconv.FormatInt(id, 10)
		o.TotalAmount, _ = decimal.NewFromString(total)
		o.Items = []cart.OrderItem{}
		index[id] = len(orders)
		ids = append(ids, id)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: list orders: %w", err)
	}
	rows.Close()
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT order_id, product_id::text, product_name, quantity, price::text
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("gateway: list order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			orderID int64
			it      cart.OrderItem
			price   string
		)
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("gateway: scan order item: %w", err)
		}
		it.Price, _ = decimal.NewFromString(price)
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: list order items: %w", err)
	}
	return orders, nil
}

// ListCustomers pages through customers with their order totals.
func (s *Store) ListCustomers(ctx context.Context, filter cart.ListFilter) ([]cart.Customer, error) {
	var conditions []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR c.email ILIKE $%d OR c.phone ILIKE $%d)", len(args), len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageOf(filter.Page, filter.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT c.id::text, c.name, c.email, c.phone, c.address, c.status,
		       (COALESCE(SUM(o.total_amount) FILTER (WHERE o.status <> 'cancelled'), 0))::text,
		       COUNT(o.id)
		FROM customers c
		LEFT JOIN orders o ON o.customer_id = c.id
		%s
		GROUP BY c.id
		ORDER BY c.id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("gateway: list customers: %w", err)
	}
	defer rows.Close()
	out := []cart.Customer{}
	for rows.Next() {
		var (
			c     cart.Customer
			spent string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Status, &spent, &c.Orders); err != nil {
			return nil, fmt.Errorf("gateway: scan customer: %w", err)
		}
		c.TotalSpent, _ = decimal.NewFromString(spent)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: list customers: %w", err)
	}
	return out, nil
}

// DeleteCustomer deletes a customer. Their orders are kept.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	cid, err := parseID("customer", id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, cid)
	if err != nil {
		return fmt.Errorf("gateway: delete customer %s: %w", id, err)
	}
	return mustAffect(tag, "customer", id)
}
