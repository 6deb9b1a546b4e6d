package catalog

// Accounting operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// Unmatched describes a count adjustment skipped because the product's
// category reference matched no loaded category.
type Unmatched struct {
	Op        string
	ProductID string
	Ref       CategoryRef
}

// UnmatchedFunc observes skipped adjustments.
type UnmatchedFunc func(Unmatched)

// Accounting keeps Category.ProductCount in step with product lifecycle
// events. Every product mutation path must call exactly one hook.
type Accounting struct {
	onUnmatched UnmatchedFunc
}

// NewAccounting builds an Accounting engine. A nil hook skips silently.
func NewAccounting(onUnmatched UnmatchedFunc) *Accounting {
	return &Accounting{onUnmatched: onUnmatched}
}

func (a *Accounting) skip(op, productID string, ref CategoryRef) {
	if a == nil || a.onUnmatched == nil {
		return
	}
	a.onUnmatched(Unmatched{Op: op, ProductID: productID, Ref: ref})
}

// ProductCreated increments the count of p's category.
func (a *Accounting) ProductCreated(categories []Category, p Product) {
	idx := matchCategory(categories, p.Category)
	if idx < 0 {
		a.skip(OpCreated, p.ID, p.Category)
		return
	}
	categories[idx].ProductCount++
}

// ProductUpdated moves one unit of count from oldRef's category to newRef's
// when the product changed category. Unchanged identity is a no-op.
func (a *Accounting) ProductUpdated(categories []Category, productID string, oldRef, newRef CategoryRef) {
	from := matchCategory(categories, oldRef)
	to := matchCategory(categories, newRef)
	if from >= 0 && to >= 0 {
		if from == to {
			return
		}
	} else if sameCategory(oldRef, newRef) {
		return
	}
	if from >= 0 {
		decrement(&categories[from])
	} else {
		a.skip(OpUpdated, productID, oldRef)
	}
	if to >= 0 {
		categories[to].ProductCount++
	} else {
		a.skip(OpUpdated, productID, newRef)
	}
}

// ProductDeleted decrements the count of p's category, floored at zero.
func (a *Accounting) ProductDeleted(categories []Category, p Product) {
	idx := matchCategory(categories, p.Category)
	if idx < 0 {
		a.skip(OpDeleted, p.ID, p.Category)
		return
	}
	decrement(&categories[idx])
}

func decrement(c *Category) {
	if c.ProductCount > 0 {
		c.ProductCount--
	}
}

// matchCategory resolves ref by id, then by name for ids that match nothing.
func matchCategory(categories []Category, ref CategoryRef) int {
	if ref.ID != "" {
		for i := range categories {
			if categories[i].ID == ref.ID {
				return i
			}
		}
	}
	if ref.Name != "" {
		for i := range categories {
			if categories[i].Name == ref.Name {
				return i
			}
		}
	}
	return -1
}

func sameCategory(a, b CategoryRef) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.Name == b.Name
}

// Drift is a category whose recorded count disagrees with a full recount.
type Drift struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Recorded   int    `json:"recorded"`
	Actual     int    `json:"actual"`
}

// Recount compares every category's recorded count against the products
// that resolve to it. It is an audit tool; request paths never call it.
func Recount(products []Product, categories []Category) []Drift {
	actual := make([]int, len(categories))
	for _, p := range products {
		if idx := matchCategory(categories, p.Category); idx >= 0 {
			actual[idx]++
		}
	}
	var drift []Drift
	for i, c := range categories {
		if c.ProductCount != actual[i] {
			drift = append(drift, Drift{CategoryID: c.ID, Name: c.Name, Recorded: c.ProductCount, Actual: actual[i]})
		}
	}
	return drift
}
