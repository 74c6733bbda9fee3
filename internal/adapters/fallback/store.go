package fallback

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cpandares/random-places/internal/domain"
)

//go:embed data/places.json
var placesFS embed.FS

const placesFile = "data/places.json"

// EmbeddedStore serves the places bundled into the binary.
type EmbeddedStore struct {
	once   sync.Once
	places []domain.Place
	err    error
}

func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{}
}

func (s *EmbeddedStore) init() {
	raw, err := placesFS.ReadFile(placesFile)
	if err != nil {
		s.err = fmt.Errorf("read embedded places: %w", err)
		return
	}
	var places []domain.Place
	if err := json.Unmarshal(raw, &places); err != nil {
		s.err = fmt.Errorf("parse embedded places: %w", err)
		return
	}
	s.places = places
}

func (s *EmbeddedStore) Places(_ context.Context) ([]domain.Place, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return nil, s.err
	}
	return s.places, nil
}
