// Package catalog loads the built-in categories and regions.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cpandares/random-places/internal/domain"
)

//go:embed data/catalog.yaml
var builtin []byte

type document struct {
	Categories []domain.Category `yaml:"categories"`
	Regions    []domain.Region   `yaml:"regions"`
}

// Catalog is an immutable, ordered set of categories and regions.
type Catalog struct {
	categories []domain.Category
	regions    []domain.Region
	byCategory map[string]domain.Category
	byRegion   map[string]domain.Region
}

// Builtin parses the catalog embedded in the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// Parse builds a catalog from YAML. Keys must be unique and non-empty.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		categories: doc.Categories,
		regions:    doc.Regions,
		byCategory: make(map[string]domain.Category, len(doc.Categories)),
		byRegion:   make(map[string]domain.Region, len(doc.Regions)),
	}
	for _, cat := range doc.Categories {
		if cat.Key == "" {
			return nil, fmt.Errorf("category with empty key")
		}
		if _, dup := c.byCategory[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Key)
		}
		c.byCategory[cat.Key] = cat
	}
	for _, r := range doc.Regions {
		if r.Key == "" {
			return nil, fmt.Errorf("region with empty key")
		}
		if _, dup := c.byRegion[r.Key]; dup {
			return nil, fmt.Errorf("duplicate region %q", r.Key)
		}
		if r.RadiusMeters <= 0 {
			return nil, fmt.Errorf("region %q: radius must be positive", r.Key)
		}
		c.byRegion[r.Key] = r
	}
	return c, nil
}

func (c *Catalog) Categories() []domain.Category { return c.categories }

func (c *Catalog) Regions() []domain.Region { return c.regions }

func (c *Catalog) Category(key string) (domain.Category, error) {
	cat, ok := c.byCategory[key]
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, key)
	}
	return cat, nil
}

func (c *Catalog) Region(key string) (domain.Region, error) {
	r, ok := c.byRegion[key]
	if !ok {
		return domain.Region{}, fmt.Errorf("%w: %q", domain.ErrUnknownRegion, key)
	}
	return r, nil
}
