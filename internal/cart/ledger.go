package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

var (
	// ErrEmptyCart rejects checkout of a cart without lines.
	ErrEmptyCart = fmt.Errorf("cart: %w: cart is empty", httpx.ErrValidation)
	// ErrSubmitInProgress rejects a checkout while another is running.
	ErrSubmitInProgress = fmt.Errorf("cart: %w: checkout already in progress", httpx.ErrConflict)
)

// Ledger is one shopper's cart. Quantities are clamped to [1, stock] on
// every write and totals are derived on read. Product values are copies;
// the ledger never changes stock.
type Ledger struct {
	mu         sync.Mutex
	lines      []Line
	submitting bool
	gateway    OrderGateway
	validate   *validator.Validate
}

// NewLedger builds an empty ledger that submits orders through gateway.
func NewLedger(gateway OrderGateway, v *validator.Validate) *Ledger {
	if v == nil {
		v = validator.New()
	}
	return &Ledger{gateway: gateway, validate: v}
}

// addClamped merges qty into current without overflowing.
func addClamped(current, qty, stock int) int {
	if qty > stock-current {
		return clamp(stock, stock)
	}
	return clamp(current+qty, stock)
}

func clamp(qty, stock int) int {
	if qty > stock {
		qty = stock
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

func (l *Ledger) index(productID string) int {
	for i := range l.lines {
		if l.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add puts qty units of p in the cart, merging with an existing line.
// Products without stock are ignored. It reports the resulting quantity.
func (l *Ledger) Add(p catalog.Product, qty int) int {
	if !p.InStock() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(p.ID); i >= 0 {
		l.lines[i].Product = p
		l.lines[i].Quantity = addClamped(l.lines[i].Quantity, qty, p.Stock)
		return l.lines[i].Quantity
	}
	line := Line{Product: p, Quantity: clamp(qty, p.Stock)}
	l.lines = append(l.lines, line)
	return line.Quantity
}

// SetQuantity changes a line's quantity. Values below one remove the line.
func (l *Ledger) SetQuantity(productID string, qty int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(productID)
	if i < 0 {
		return 0
	}
	if qty < 1 {
		l.lines = append(l.lines[:i], l.lines[i+1:]...)
		return 0
	}
	l.lines[i].Quantity = clamp(qty, l.lines[i].Product.Stock)
	return l.lines[i].Quantity
}

// Remove drops the line for productID if present.
func (l *Ledger) Remove(productID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(productID); i >= 0 {
		l.lines = append(l.lines[:i], l.lines[i+1:]...)
	}
}

// Clear empties the cart.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.lines = nil
	l.mu.Unlock()
}

// Lines returns a copy of the cart lines.
func (l *Ledger) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Line{}, l.lines...)
}

// Total sums price times quantity over all lines.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return total(l.lines)
}

// Units counts the items in the cart.
func (l *Ledger) Units() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		n += line.Quantity
	}
	return n
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Subtotal())
	}
	return sum
}

// Submit places the order. Lines leave the cart only once the gateway has
// confirmed; on any failure the cart is left as it was.
func (l *Ledger) Submit(ctx context.Context, info ShippingInfo, method PaymentMethod) (Receipt, error) {
	info = info.trimmed()
	if err := l.check(info); err != nil {
		return Receipt{}, err
	}
	if err := l.check(method); err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	if l.submitting {
		l.mu.Unlock()
		return Receipt{}, ErrSubmitInProgress
	}
	if len(l.lines) == 0 {
		l.mu.Unlock()
		return Receipt{}, ErrEmptyCart
	}
	submitted := append([]Line(nil), l.lines...)
	l.submitting = true
	l.mu.Unlock()

	payload := OrderPayload{
		Items:           make([]OrderItem, 0, len(submitted)),
		TotalAmount:     total(submitted),
		PaymentMethod:   method.ID,
		ShippingAddress: info.Address,
		PhoneNumber:     info.Phone,
		Notes:           info.Notes,
	}
	for _, line := range submitted {
		payload.Items = append(payload.Items, OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			Price:       line.Product.Price,
		})
	}

	conf, err := l.gateway.CreateOrder(ctx, payload)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitting = false
	if err != nil {
		return Receipt{}, fmt.Errorf("cart: create order: %w", err)
	}
	for _, line := range submitted {
		if i := l.index(line.Product.ID); i >= 0 {
			l.lines = append(l.lines[:i], l.lines[i+1:]...)
		}
	}
	return newReceipt(conf, payload, method), nil
}

func newReceipt(conf Confirmation, payload OrderPayload, method PaymentMethod) Receipt {
	r := Receipt{
		OrderID:       conf.OrderID,
		OrderCode:     conf.OrderCode,
		Total:         conf.TotalAmount,
		Status:        conf.Status,
		PaymentMethod: method.ID,
	}
	if r.OrderCode == "" {
		r.OrderCode = r.OrderID
	}
	if r.Total.IsZero() {
		r.Total = payload.TotalAmount
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if method.Type == PaymentBankTransfer {
		r.BankTransfer = &BankTransfer{
			BankName:      method.Name,
			AccountNumber: method.AccountNumber,
			AccountName:   method.AccountName,
			Amount:        r.Total,
			Content:       TransferContent(r.OrderCode),
		}
	}
	return r
}

func (l *Ledger) check(v any) error {
	err := l.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
}
