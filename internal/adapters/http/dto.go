package http

import (
	"github.com/cpandares/random-places/internal/app"
	"github.com/cpandares/random-places/internal/domain"
	"github.com/cpandares/random-places/internal/roller"
)

// SelectionRequest is the body of POST /v1/sessions and
// PUT /v1/sessions/:id/selection. Omitted keys keep their current value
// (or the default on create).
type SelectionRequest struct {
	Region   string `json:"region"`
	Category string `json:"category"`
}

// SessionResponse is the JSON shape of a session snapshot, both over REST
// and as WebSocket frames.
type SessionResponse struct {
	ID           string         `json:"id"`
	Region       string         `json:"region"`
	Category     string         `json:"category"`
	Phase        app.Phase      `json:"phase"`
	Loading      bool           `json:"loading"`
	Error        bool           `json:"error"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Notice       string         `json:"notice,omitempty"`
	Candidates   []domain.Place `json:"candidates"`
	Roller       roller.State   `json:"roller"`
}

type WinnerResponse struct {
	Place   domain.Place `json:"place"`
	MapsURL string       `json:"maps_url"`
}

type CategoryResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type RegionResponse struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Lon          float64 `json:"lon"`
	Lat          float64 `json:"lat"`
	RadiusMeters int     `json:"radius_m"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toSessionResponse(st app.SessionState) SessionResponse {
	candidates := st.Candidates
	if candidates == nil {
		candidates = []domain.Place{}
	}
	return SessionResponse{
		ID:           st.ID,
		Region:       st.Region,
		Category:     st.Category,
		Phase:        st.Phase,
		Loading:      st.Loading,
		Error:        st.Error,
		ErrorMessage: st.ErrorMessage,
		Notice:       st.Notice,
		Candidates:   candidates,
		Roller:       st.Roller,
	}
}

func toCategories(cs []domain.Category) []CategoryResponse {
	out := make([]CategoryResponse, len(cs))
	for i, c := range cs {
		out[i] = CategoryResponse{Key: c.Key, Label: c.Label}
	}
	return out
}

func toRegions(rs []domain.Region) []RegionResponse {
	out := make([]RegionResponse, len(rs))
	for i, r := range rs {
		out[i] = RegionResponse{
			Key:          r.Key,
			Label:        r.Label,
			Lon:          r.Center.Lon,
			Lat:          r.Center.Lat,
			RadiusMeters: r.RadiusMeters,
		}
	}
	return out
}
