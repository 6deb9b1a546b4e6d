package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed fallback.json
var bundledFallback []byte

// Dataset is a static catalog served when the upstream service is
// unreachable.
type Dataset struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
}

// LoadFallback decodes the dataset bundled with the binary.
func LoadFallback() (*Dataset, error) {
	return ParseDataset(bundledFallback)
}

// ParseDataset decodes a dataset document.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("catalog: parse fallback dataset: %w", err)
	}
	for i := range ds.Categories {
		if ds.Categories[i].Slug == "" {
			ds.Categories[i].Slug = Slugify(ds.Categories[i].Name)
		}
		if ds.Categories[i].Icon == "" {
			ds.Categories[i].Icon = DefaultCategoryIcon
		}
	}
	return &ds, nil
}

// snapshot copies the dataset so store mutations never reach it.
func (d *Dataset) snapshot() *Snapshot {
	if d == nil {
		return &Snapshot{}
	}
	return &Snapshot{
		Products:   append([]Product(nil), d.Products...),
		Categories: append([]Category(nil), d.Categories...),
	}
}
