package domain_test

import (
	"testing"

	"github.com/cpandares/random-places/internal/domain"
)

// deterministicRNG returns values from a pre-set sequence.
type deterministicRNG struct {
	values []int
	idx    int
}

func (r *deterministicRNG) Intn(n int) int {
	v := r.values[r.idx%len(r.values)] % n
	r.idx++
	return v
}

func testPlaces() []domain.Place {
	return []domain.Place{
		{ID: "1", Name: "La Casona", Category: "cena", City: "Valencia"},
		{ID: "2", Name: "Parque Negra Hipólita", Category: "recreacion", City: "Valencia"},
		{ID: "3", Name: "El Fogón", Category: "cena", City: "Maracay"},
	}
}

func TestDraw_Empty(t *testing.T) {
	_, ok := domain.Draw(nil, &deterministicRNG{values: []int{0}})
	if ok {
		t.Fatal("expected no draw from an empty list")
	}
}

func TestDraw_UsesRNGIndex(t *testing.T) {
	places := testPlaces()
	p, ok := domain.Draw(places, &deterministicRNG{values: []int{2}})
	if !ok {
		t.Fatal("expected a draw")
	}
	if p.ID != "3" {
		t.Errorf("expected place 3, got %s", p.ID)
	}
}

func TestDraw_CoversEveryIndex(t *testing.T) {
	places := testPlaces()
	rng := &deterministicRNG{values: []int{0, 1, 2}}
	seen := make(map[string]bool)
	for range 3 {
		p, _ := domain.Draw(places, rng)
		seen[p.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected all 3 places drawn, got %v", seen)
	}
}

func TestFilterByCategory(t *testing.T) {
	got := domain.FilterByCategory(testPlaces(), "cena")
	if len(got) != 2 {
		t.Fatalf("expected 2 places, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestResolveCandidates(t *testing.T) {
	key := domain.CacheKey{Region: "carabobo", Category: "cena"}
	remote := []domain.Place{{ID: "r1", Name: "Remote", Category: "cena"}}
	cache := map[domain.CacheKey][]domain.Place{key: remote}

	t.Run("cache hit", func(t *testing.T) {
		got := domain.ResolveCandidates(cache, key, false, testPlaces())
		if len(got) != 1 || got[0].ID != "r1" {
			t.Errorf("expected remote list, got %+v", got)
		}
	})

	t.Run("cache miss", func(t *testing.T) {
		other := domain.CacheKey{Region: "lara", Category: "cena"}
		got := domain.ResolveCandidates(cache, other, false, testPlaces())
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil list, got %+v", got)
		}
	})

	t.Run("failed uses fallback by category, ignoring region", func(t *testing.T) {
		other := domain.CacheKey{Region: "falcon", Category: "cena"}
		got := domain.ResolveCandidates(cache, other, true, testPlaces())
		if len(got) != 2 {
			t.Fatalf("expected 2 fallback places, got %d", len(got))
		}
		for _, p := range got {
			if p.Category != "cena" {
				t.Errorf("unexpected category %s", p.Category)
			}
		}
	})
}

func TestMapsURL(t *testing.T) {
	withAddress := domain.Place{Name: "La Casona", City: "Valencia", Address: "Av. Bolívar, Valencia"}
	got := domain.MapsURL(withAddress)
	want := "https://www.google.com/maps/search/?api=1&query=Av.+Bol%C3%ADvar%2C+Valencia"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	noAddress := domain.Place{Name: "El Fogón", City: "Maracay"}
	got = domain.MapsURL(noAddress)
	want = "https://www.google.com/maps/search/?api=1&query=El+Fog%C3%B3n%2C+Maracay"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCategory_UpstreamQuery(t *testing.T) {
	if q := (domain.Category{Key: "compras"}).UpstreamQuery(); q != domain.DefaultCategoryQuery {
		t.Errorf("expected default query, got %s", q)
	}
	if q := (domain.Category{Query: "leisure.park"}).UpstreamQuery(); q != "leisure.park" {
		t.Errorf("unexpected query %s", q)
	}
}

func TestCacheKey_String(t *testing.T) {
	if s := (domain.CacheKey{Region: "lara", Category: "cultura"}).String(); s != "lara:cultura" {
		t.Errorf("unexpected key %s", s)
	}
}
