// Package cache shares fetched candidate lists between sessions.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cpandares/random-places/internal/domain"
	"github.com/cpandares/random-places/internal/ports"
)

// CachingSource wraps a candidate source with a cache store. Store errors
// are logged and the upstream is queried directly.
type CachingSource struct {
	next   ports.CandidateSource
	store  ports.CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachingSource(next ports.CandidateSource, store ports.CacheStore, ttl time.Duration, logger *slog.Logger) *CachingSource {
	return &CachingSource{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachingSource) Fetch(ctx context.Context, q domain.PlaceQuery) ([]domain.Place, error) {
	key := Key(q)

	places, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	case ok:
		c.logger.DebugContext(ctx, "cache hit", "key", key)
		return places, nil
	}

	places, err = c.next.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, key, places, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return places, nil
}

// Key identifies a query by category and search circle.
func Key(q domain.PlaceQuery) string {
	return fmt.Sprintf("%s:%s,%s,%d", q.Category,
		strconv.FormatFloat(q.Center.Lon, 'f', -1, 64),
		strconv.FormatFloat(q.Center.Lat, 'f', -1, 64),
		q.RadiusMeters)
}
