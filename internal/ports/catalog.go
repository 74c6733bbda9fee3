package ports

import "github.com/cpandares/random-places/internal/domain"

// Catalog lists the selectable categories and regions.
type Catalog interface {
	Categories() []domain.Category
	Regions() []domain.Region
	Category(key string) (domain.Category, error)
	Region(key string) (domain.Region, error)
}
