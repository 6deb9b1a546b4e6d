package catalog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// Diagnostic describes a default substituted during normalization.
type Diagnostic struct {
	ProductID string
	Field     string
	Detail    string
}

// DiagnosticFunc receives normalization diagnostics.
type DiagnosticFunc func(Diagnostic)

// LogDiagnostics returns a DiagnosticFunc writing debug records to logger.
func LogDiagnostics(logger *slog.Logger) DiagnosticFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(d Diagnostic) {
		logger.Debug("catalog normalize default",
			slog.String("product_id", d.ProductID),
			slog.String("field", d.Field),
			slog.String("detail", d.Detail))
	}
}

type stockExtractor struct {
	field string
	get   func(*RawProduct) OptInt
}

// stockExtractors is ordered by trust in the upstream schema generation.
var stockExtractors = []stockExtractor{
	{field: "stockQuantity", get: func(r *RawProduct) OptInt { return r.StockQuantity }},
	{field: "stock_quantity", get: func(r *RawProduct) OptInt { return r.StockQuantitySnake }},
	{field: "quantity", get: func(r *RawProduct) OptInt { return r.Quantity }},
	{field: "stock", get: func(r *RawProduct) OptInt { return r.Stock }},
}

// Normalizer maps upstream payloads onto the canonical records.
type Normalizer struct {
	diag DiagnosticFunc
}

// NewNormalizer builds a Normalizer. A nil diag discards diagnostics.
func NewNormalizer(diag DiagnosticFunc) *Normalizer {
	return &Normalizer{diag: diag}
}

func (n *Normalizer) report(productID, field, detail string) {
	if n == nil || n.diag == nil {
		return
	}
	n.diag(Diagnostic{ProductID: productID, Field: field, Detail: detail})
}

// Normalize converts raw into a Product, resolving category ids against
// categories when possible.
func (n *Normalizer) Normalize(raw RawProduct, categories []Category) Product {
	id := raw.ID.Value
	if !raw.ID.Set {
		id = raw.LegacyID.Value
	}
	p := Product{
		ID:          id,
		Name:        strings.TrimSpace(raw.Name),
		Description: raw.Description,
		Image:       raw.Image,
	}
	if p.Name == "" {
		n.report(id, "name", "missing")
	}
	if p.Image == "" {
		p.Image = raw.ImageURL
	}

	switch {
	case !raw.Price.Set:
		n.report(id, "price", "missing, using 0")
	case raw.Price.Value.IsNegative():
		n.report(id, "price", "negative, using 0")
	default:
		p.Price = raw.Price.Value
	}
	if raw.Rating.Set {
		p.Rating = raw.Rating.Value.InexactFloat64()
	}

	p.Stock = n.resolveStock(id, &raw)
	p.Category = n.resolveCategory(id, &raw, categories)

	switch {
	case raw.IsActive != nil:
		p.Active = *raw.IsActive
	default:
		p.Active = !strings.EqualFold(raw.Status, "inactive")
	}
	return p
}

func (n *Normalizer) resolveStock(id string, raw *RawProduct) int {
	for _, ex := range stockExtractors {
		v := ex.get(raw)
		if !v.Set {
			continue
		}
		if v.Value < 0 {
			n.report(id, ex.field, "negative, using 0")
			return 0
		}
		return v.Value
	}
	n.report(id, "stock", "no stock field, using default")
	return DefaultStock
}

func (n *Normalizer) resolveCategory(id string, raw *RawProduct, categories []Category) CategoryRef {
	body := bytes.TrimSpace(raw.Category)
	if len(body) > 0 && !bytes.Equal(body, []byte("null")) {
		switch body[0] {
		case '{':
			var obj struct {
				ID   OptString `json:"id"`
				Name string    `json:"name"`
			}
			if err := json.Unmarshal(body, &obj); err == nil {
				name := strings.TrimSpace(obj.Name)
				switch {
				case obj.ID.Set && name != "":
					return CategoryRef{ID: obj.ID.Value, Name: name}
				case obj.ID.Set:
					return resolveCategoryID(obj.ID.Value, categories)
				case name != "":
					return CategoryRef{Name: name}
				}
			}
		case '"':
			var name string
			if err := json.Unmarshal(body, &name); err == nil && strings.TrimSpace(name) != "" {
				return CategoryRef{Name: strings.TrimSpace(name)}
			}
		default:
			var num OptString
			_ = num.UnmarshalJSON(body)
			if num.Set {
				return resolveCategoryID(num.Value, categories)
			}
		}
	}
	if raw.CategoryID.Set {
		return resolveCategoryID(raw.CategoryID.Value, categories)
	}
	if raw.CategoryIDSnake.Set {
		return resolveCategoryID(raw.CategoryIDSnake.Value, categories)
	}
	n.report(id, "category", "missing, using "+UnknownCategoryName)
	return CategoryRef{Name: UnknownCategoryName}
}

func resolveCategoryID(id string, categories []Category) CategoryRef {
	for _, c := range categories {
		if c.ID == id {
			return c.Ref()
		}
	}
	return CategoryRef{ID: id, Name: "Category " + id, Placeholder: true}
}

// NormalizeAll normalizes a list. Records without any id are dropped since
// nothing downstream can address them.
func (n *Normalizer) NormalizeAll(raws []RawProduct, categories []Category) []Product {
	out := make([]Product, 0, len(raws))
	for _, raw := range raws {
		p := n.Normalize(raw, categories)
		if p.ID == "" {
			n.report("", "id", "missing, record dropped: "+p.Name)
			continue
		}
		out = append(out, p)
	}
	return out
}

// NormalizeCategory converts an upstream category, filling presentation
// defaults.
func (n *Normalizer) NormalizeCategory(raw RawCategory) Category {
	c := Category{
		ID:          raw.ID.Value,
		Name:        strings.TrimSpace(raw.Name),
		Slug:        strings.TrimSpace(raw.Slug),
		Icon:        raw.Icon,
		Description: raw.Description,
	}
	if !raw.ID.Set {
		c.ID = raw.LegacyID.Value
	}
	if c.Name == "" {
		c.Name = "N/A"
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.ID == "" {
		c.ID = c.Slug
	}
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	if raw.ProductCount.Set && raw.ProductCount.Value > 0 {
		c.ProductCount = raw.ProductCount.Value
	}
	return c
}

// NormalizeCategories normalizes a list of upstream categories.
func (n *Normalizer) NormalizeCategories(raws []RawCategory) []Category {
	out := make([]Category, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.NormalizeCategory(raw))
	}
	return out
}

// ResolvePlaceholders returns a copy of products with placeholder category
// refs replaced by the matching loaded category.
func ResolvePlaceholders(products []Product, categories []Category) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	for i := range out {
		ref := out[i].Category
		if !ref.Placeholder {
			continue
		}
		out[i].Category = resolveCategoryID(ref.ID, categories)
	}
	return out
}
