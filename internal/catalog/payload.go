package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OptString decodes a JSON string or number. Any other JSON value leaves it unset.
type OptString struct {
	Value string
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler without ever failing.
func (o *OptString) UnmarshalJSON(data []byte) error {
	*o = OptString{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch {
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil && strings.TrimSpace(s) != "" {
			*o = OptString{Value: strings.TrimSpace(s), Set: true}
		}
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*o = OptString{Value: string(data), Set: true}
	}
	return nil
}

// OptNumber decodes a JSON number or a numeric string.
type OptNumber struct {
	Value decimal.Decimal
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler without ever failing.
func (o *OptNumber) UnmarshalJSON(data []byte) error {
	*o = OptNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil
	}
	*o = OptNumber{Value: d, Set: true}
	return nil
}

// OptInt decodes an integer count delivered as a number or numeric string.
// Fractions are truncated.
type OptInt struct {
	Value int
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler without ever failing.
func (o *OptInt) UnmarshalJSON(data []byte) error {
	*o = OptInt{}
	var n OptNumber
	_ = n.UnmarshalJSON(data)
	if !n.Set {
		return nil
	}
	*o = OptInt{Value: saturatingInt(n.Value), Set: true}
	return nil
}

var (
	maxIntDecimal = decimal.NewFromInt(math.MaxInt)
	minIntDecimal = decimal.NewFromInt(math.MinInt)
)

// saturatingInt truncates d and pins values outside the int range to its
// bounds.
func saturatingInt(d decimal.Decimal) int {
	d = d.Truncate(0)
	switch {
	case d.GreaterThan(maxIntDecimal):
		return math.MaxInt
	case d.LessThan(minIntDecimal):
		return math.MinInt
	}
	return int(d.IntPart())
}

// RawProduct is the tolerated upstream product shape. Several schema
// generations are in circulation, so stock and category arrive under
// different field names.
type RawProduct struct {
	ID                 OptString       `json:"id"`
	LegacyID           OptString       `json:"_id"`
	Name               string          `json:"name"`
	Price              OptNumber       `json:"price"`
	StockQuantity      OptInt          `json:"stockQuantity"`
	StockQuantitySnake OptInt          `json:"stock_quantity"`
	Quantity           OptInt          `json:"quantity"`
	Stock              OptInt          `json:"stock"`
	Category           json.RawMessage `json:"category,omitempty"`
	CategoryID         OptString       `json:"categoryId"`
	CategoryIDSnake    OptString       `json:"category_id"`
	Image              string          `json:"image"`
	ImageURL           string          `json:"imageUrl"`
	Description        string          `json:"description"`
	Rating             OptNumber       `json:"rating"`
	IsActive           *bool           `json:"isActive"`
	Status             string          `json:"status"`
}

// RawCategory is the tolerated upstream category shape.
type RawCategory struct {
	ID           OptString `json:"id"`
	LegacyID     OptString `json:"_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Icon         string    `json:"icon"`
	Description  string    `json:"description"`
	ProductCount OptInt    `json:"productCount"`
}

// ListFilter narrows ListProducts. Zero values mean no constraint.
type ListFilter struct {
	Limit    int
	Page     int
	Category string
	Search   string
}

// Query renders the filter as upstream query parameters.
func (f ListFilter) Query() map[string]string {
	q := map[string]string{}
	if f.Limit > 0 {
		q["limit"] = strconv.Itoa(f.Limit)
	}
	if f.Page > 0 {
		q["page"] = strconv.Itoa(f.Page)
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Search != "" {
		q["search"] = f.Search
	}
	return q
}

// ProductInput is sent upstream when creating a product.
type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description,omitempty" validate:"max=2000"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
	CategoryID    string          `json:"categoryId" validate:"required"`
	ImageURL      string          `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// ProductPatch is sent upstream when updating a product. Nil fields are left
// unchanged.
type ProductPatch struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	StockQuantity *int             `json:"stockQuantity,omitempty" validate:"omitempty,gte=0"`
	CategoryID    *string          `json:"categoryId,omitempty" validate:"omitempty,min=1"`
	ImageURL      *string          `json:"imageUrl,omitempty" validate:"omitempty,url"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

// CategoryInput is sent upstream when creating or updating a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Slug        string `json:"slug,omitempty" validate:"omitempty,max=120"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}
