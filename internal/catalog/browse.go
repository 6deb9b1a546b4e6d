package catalog

import (
	"sort"
	"strings"
)

// SortKey orders browse results.
type SortKey string

// Supported sort keys.
const (
	SortDefault   SortKey = ""
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortName      SortKey = "name"
)

// ParseSortKey maps a query value to a SortKey, defaulting to catalog order.
func ParseSortKey(v string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(v))); k {
	case SortPriceLow, SortPriceHigh, SortRating, SortName:
		return k
	default:
		return SortDefault
	}
}

// DefaultFeaturedLimit is the number of featured products shown by default.
const DefaultFeaturedLimit = 4

// DefaultSuggestLimit caps search suggestions.
const DefaultSuggestLimit = 5

// Query filters the storefront product listing.
type Query struct {
	Category          string
	Search            string
	Sort              SortKey
	IncludeOutOfStock bool
	IncludeInactive   bool
	Limit             int
}

// Browse returns the products of snap matching q. Category matches the
// category id, name or slug.
func Browse(snap *Snapshot, q Query) []Product {
	if snap == nil {
		return []Product{}
	}
	category := strings.TrimSpace(q.Category)
	var slugTarget *Category
	if category != "" {
		for i := range snap.Categories {
			if snap.Categories[i].Slug == category {
				slugTarget = &snap.Categories[i]
				break
			}
		}
	}
	needle := fold(strings.TrimSpace(q.Search))

	out := make([]Product, 0, len(snap.Products))
	for _, p := range snap.Products {
		if !q.IncludeOutOfStock && !p.InStock() {
			continue
		}
		if !q.IncludeInactive && !p.Active {
			continue
		}
		if category != "" && !inCategory(p.Category, category, slugTarget) {
			continue
		}
		if needle != "" && !containsFolded(p.Name, needle) && !containsFolded(p.Description, needle) {
			continue
		}
		out = append(out, p)
	}
	sortProducts(out, q.Sort)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func inCategory(ref CategoryRef, category string, bySlug *Category) bool {
	if ref.ID != "" && ref.ID == category {
		return true
	}
	if ref.Name == category {
		return true
	}
	if bySlug != nil {
		return (ref.ID != "" && ref.ID == bySlug.ID) || ref.Name == bySlug.Name
	}
	return false
}

func sortProducts(products []Product, key SortKey) {
	switch key {
	case SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.LessThan(products[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.GreaterThan(products[j].Price) })
	case SortRating:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Rating > products[j].Rating })
	case SortName:
		sort.SliceStable(products, func(i, j int) bool { return fold(products[i].Name) < fold(products[j].Name) })
	}
}

// Suggest returns up to limit product names matching term.
func Suggest(snap *Snapshot, term string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	if strings.TrimSpace(term) == "" {
		return []string{}
	}
	matches := Browse(snap, Query{Search: term, Limit: limit})
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, p.Name)
	}
	return names
}

// Featured returns the first limit active, in-stock products.
func Featured(snap *Snapshot, limit int) []Product {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	return Browse(snap, Query{Limit: limit})
}
