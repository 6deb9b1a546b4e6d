package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// DefaultStock is substituted when an upstream product carries no
// recognizable stock field.
const DefaultStock = 100

// Defaults applied to categories missing presentation fields.
const (
	DefaultCategoryIcon = "📁"
	UnknownCategoryName = "Unknown"
)

// ErrProductNotFound indicates the product is not in the loaded catalog.
var ErrProductNotFound = fmt.Errorf("catalog: product %w", httpx.ErrNotFound)

// CategoryRef is a product's link to its category. A bare name carries no ID.
// Placeholder refs carry an upstream ID whose name has not been resolved yet.
type CategoryRef struct {
	ID          string
	Name        string
	Placeholder bool
}

// IsZero reports whether the ref carries neither id nor name.
func (r CategoryRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

type categoryRefJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// MarshalJSON renders bare names as strings and references as objects.
func (r CategoryRef) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return json.Marshal(r.Name)
	}
	return json.Marshal(categoryRefJSON{ID: r.ID, Name: r.Name, Placeholder: r.Placeholder})
}

// UnmarshalJSON accepts either a bare name or an {id, name} object.
func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = CategoryRef{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = CategoryRef{Name: name}
		return nil
	}
	var obj struct {
		ID          OptString `json:"id"`
		Name        string    `json:"name"`
		Placeholder bool      `json:"placeholder"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = CategoryRef{ID: obj.ID.Value, Name: obj.Name, Placeholder: obj.Placeholder}
	return nil
}

// Product is the canonical catalog record.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    CategoryRef     `json:"category"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	Rating      float64         `json:"rating,omitempty"`
	Active      bool            `json:"active"`
}

// InStock reports whether the product can be added to a cart.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Category is the canonical category record. ProductCount is maintained
// incrementally by Accounting.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Icon         string `json:"icon"`
	Description  string `json:"description,omitempty"`
	ProductCount int    `json:"productCount"`
}

// Ref returns a resolved reference to the category.
func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name}
}

// Snapshot is an immutable view of the catalog. A new Snapshot is published
// on every write, so holders never observe later mutations.
type Snapshot struct {
	Products   []Product
	Categories []Category
	LoadedAt   time.Time
	Fallback   bool
	Err        error
}

// Empty reports whether the snapshot carries no products.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Products) == 0
}

// Product looks up a product by id.
func (s *Snapshot) Product(id string) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	if idx := s.productIndex(id); idx >= 0 {
		return s.Products[idx], true
	}
	return Product{}, false
}

// Category looks up a category by id.
func (s *Snapshot) Category(id string) (Category, bool) {
	if s == nil {
		return Category{}, false
	}
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

func (s *Snapshot) productIndex(id string) int {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}
	next := *s
	next.Products = append([]Product(nil), s.Products...)
	next.Categories = append([]Category(nil), s.Categories...)
	return &next
}

// View is the reactive catalog state handed to presentation collaborators.
type View struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
	Loading    bool       `json:"loading"`
	Error      string     `json:"error,omitempty"`
	State      string     `json:"state"`
	Fallback   bool       `json:"fallback"`
	LoadedAt   time.Time  `json:"loadedAt"`
}
