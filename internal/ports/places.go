package ports

import (
	"context"
	"time"

	"github.com/cpandares/random-places/internal/domain"
)

// CandidateSource fetches place records for a category around a point.
type CandidateSource interface {
	Fetch(ctx context.Context, q domain.PlaceQuery) ([]domain.Place, error)
}

// FallbackStore provides the statically bundled places used when the
// candidate source fails.
type FallbackStore interface {
	Places(ctx context.Context) ([]domain.Place, error)
}

// CacheStore holds fetched candidate lists keyed by region and category.
// Get reports ok=false on a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) (places []domain.Place, ok bool, err error)
	Set(ctx context.Context, key string, places []domain.Place, ttl time.Duration) error
}
