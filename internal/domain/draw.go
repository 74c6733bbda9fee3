package domain

import (
	"net/url"
	"strings"
)

// Draw picks one place uniformly at random. ok is false for an empty list.
func Draw(candidates []Place, rng RNG) (p Place, ok bool) {
	if len(candidates) == 0 {
		return Place{}, false
	}
	return candidates[rng.Intn(len(candidates))], true
}

// FilterByCategory returns the places tagged with category, in order.
func FilterByCategory(places []Place, category string) []Place {
	out := make([]Place, 0, len(places))
	for _, p := range places {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// ResolveCandidates returns the visible candidate list for key. When the
// remote fetch failed the static fallback is filtered by category only;
// otherwise the cached remote list is used (empty when not loaded yet).
func ResolveCandidates(cache map[CacheKey][]Place, key CacheKey, failed bool, fallback []Place) []Place {
	if failed {
		return FilterByCategory(fallback, key.Category)
	}
	if list, ok := cache[key]; ok {
		return list
	}
	return []Place{}
}

const mapsSearchURL = "https://www.google.com/maps/search/"

// MapsURL builds a map search link for p, using the address when known and
// "name, city" otherwise.
func MapsURL(p Place) string {
	query := p.Address
	if query == "" {
		query = p.Name + ", " + p.City
	}
	v := url.Values{}
	v.Set("api", "1")
	v.Set("query", strings.TrimSpace(query))
	return mapsSearchURL + "?" + v.Encode()
}
