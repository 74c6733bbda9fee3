package domain

import "fmt"

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// Place is a candidate point of interest.
type Place struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	City        string `json:"city,omitempty"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Category is a selectable place category. Query holds the upstream
// category filter (pipe-separated).
type Category struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Query string `json:"-" yaml:"query"`
}

// DefaultCategoryQuery is used when a category has no upstream mapping.
const DefaultCategoryQuery = "catering.restaurant"

// UpstreamQuery returns the category filter sent to the places API.
func (c Category) UpstreamQuery() string {
	if c.Query == "" {
		return DefaultCategoryQuery
	}
	return c.Query
}

// Point is a geographic coordinate.
type Point struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Region is a searchable area: a center and a radius in meters.
type Region struct {
	Key          string `json:"key" yaml:"key"`
	Label        string `json:"label" yaml:"label"`
	Center       Point  `json:"center" yaml:"center"`
	RadiusMeters int    `json:"radius_m" yaml:"radius_m"`
}

// CacheKey identifies a candidate list by region and category.
type CacheKey struct {
	Region   string
	Category string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s", k.Region, k.Category)
}

// PlaceQuery is the input to a candidate source.
type PlaceQuery struct {
	Category     string
	Categories   string
	Center       Point
	RadiusMeters int
}
