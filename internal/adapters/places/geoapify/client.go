package geoapify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cpandares/random-places/internal/domain"
)

const (
	DefaultBaseURL = "https://api.geoapify.com"
	DefaultLimit   = 50

	unnamedPlace = "Sin nombre"
)

// Client implements ports.CandidateSource via the Geoapify Places API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limit      int
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, apiKey, baseURL string, limit int, logger *slog.Logger) *Client {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limit:      limit,
		logger:     logger,
	}
}

// featureCollection mirrors the GeoJSON shape of /v2/places.
type featureCollection struct {
	Features []struct {
		Properties properties `json:"properties"`
	} `json:"features"`
}

type properties struct {
	PlaceID    json.RawMessage `json:"place_id"`
	Name       string          `json:"name"`
	Street     string          `json:"street"`
	City       string          `json:"city"`
	County     string          `json:"county"`
	State      string          `json:"state"`
	Formatted  string          `json:"formatted"`
	Categories []string        `json:"categories"`
}

func (c *Client) Fetch(ctx context.Context, q domain.PlaceQuery) ([]domain.Place, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}

	body, err := c.get(ctx, c.placesURL(q))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamPlaces, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	places := make([]domain.Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		places = append(places, toPlace(f.Properties, q.Category))
	}
	c.logger.DebugContext(ctx, "geoapify places fetched", "category", q.Category, "count", len(places))
	return places, nil
}

func (c *Client) placesURL(q domain.PlaceQuery) string {
	categories := q.Categories
	if categories == "" {
		categories = domain.DefaultCategoryQuery
	}
	lon := formatCoord(q.Center.Lon)
	lat := formatCoord(q.Center.Lat)

	v := url.Values{}
	v.Set("categories", categories)
	v.Set("filter", fmt.Sprintf("circle:%s,%s,%d", lon, lat, q.RadiusMeters))
	v.Set("bias", fmt.Sprintf("proximity:%s,%s", lon, lat))
	v.Set("limit", strconv.Itoa(c.limit))
	v.Set("apiKey", c.apiKey)
	return c.baseURL + "/v2/places?" + v.Encode()
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", stripURL(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http call %s %s%s: %w", req.Method, req.URL.Host, req.URL.Path, stripURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.DebugContext(ctx, "geoapify error response", "status", resp.StatusCode, "bytes", len(respBody))
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return respBody, nil
}

// stripURL drops the request URL, which carries the API key, from
// net/url errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func toPlace(p properties, category string) domain.Place {
	return domain.Place{
		ID:          placeID(p.PlaceID),
		Name:        firstNonEmpty(p.Name, p.Street, unnamedPlace),
		Category:    category,
		City:        firstNonEmpty(p.City, p.County, p.State),
		Address:     p.Formatted,
		Description: strings.Join(p.Categories, ", "),
	}
}

// placeID accepts both string and numeric ids.
func placeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
