package cart

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// ErrCartNotFound indicates an unknown cart id.
var ErrCartNotFound = fmt.Errorf("cart: %w", httpx.ErrNotFound)

// Book holds the open carts of the HTTP surface, keyed by cart id.
type Book struct {
	mu       sync.RWMutex
	carts    map[string]*Ledger
	gateway  OrderGateway
	validate *validator.Validate
}

// NewBook creates an empty Book whose ledgers submit through gateway.
func NewBook(gateway OrderGateway) *Book {
	return &Book{carts: make(map[string]*Ledger), gateway: gateway, validate: validator.New()}
}

// Open creates a cart and returns its id.
func (b *Book) Open() (string, *Ledger) {
	id := uuid.NewString()
	l := NewLedger(b.gateway, b.validate)
	b.mu.Lock()
	b.carts[id] = l
	b.mu.Unlock()
	return id, l
}

// Get returns the cart with id.
func (b *Book) Get(id string) (*Ledger, error) {
	b.mu.RLock()
	l, ok := b.carts[id]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCartNotFound, id)
	}
	return l, nil
}

// Discard forgets the cart with id.
func (b *Book) Discard(id string) {
	b.mu.Lock()
	delete(b.carts, id)
	b.mu.Unlock()
}

// Len reports the number of open carts.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.carts)
}
