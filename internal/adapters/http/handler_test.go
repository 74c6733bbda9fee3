package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpandares/random-places/internal/adapters/catalog"
	"github.com/cpandares/random-places/internal/adapters/fallback"
	httpadapter "github.com/cpandares/random-places/internal/adapters/http"
	"github.com/cpandares/random-places/internal/app"
	"github.com/cpandares/random-places/internal/domain"
	"github.com/cpandares/random-places/internal/roller"
)

type stubSource struct {
	byCategory map[string][]domain.Place
}

func (s stubSource) Fetch(_ context.Context, q domain.PlaceQuery) ([]domain.Place, error) {
	if list, ok := s.byCategory[q.Category]; ok {
		return list, nil
	}
	return nil, domain.ErrUpstreamPlaces
}

type seqRNG struct {
	mu sync.Mutex
	n  int
}

func (r *seqRNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return r.n % n
}

type testServer struct {
	echo  *echo.Echo
	clock *clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cat, err := catalog.Builtin()
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	manager := app.NewSessionManager(app.Deps{
		Catalog: cat,
		Source: stubSource{byCategory: map[string][]domain.Place{
			"cena": {
				{ID: "r1", Name: "Arepera", Category: "cena", City: "Valencia"},
				{ID: "r2", Name: "Pizzería", Category: "cena", City: "Valencia", Address: "Av. Bolívar"},
			},
		}},
		Fallback: fallback.NewEmbeddedStore(),
		Clock:    clock,
		RNG:      &seqRNG{},
	})
	t.Cleanup(manager.CloseAll)

	e := echo.New()
	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.CORSMiddleware([]string{"http://localhost:5173"}))
	httpadapter.NewHandler(manager, cat, []string{"http://localhost:5173"}, nil).Register(e)
	return &testServer{echo: e, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createSession(t *testing.T, body string) httpadapter.SessionResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[httpadapter.SessionResponse](t, rec)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestListCatalog(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]httpadapter.CategoryResponse](t, rec)
	require.Len(t, cats, 11)
	assert.Equal(t, "cena", cats[0].Key)
	assert.NotContains(t, rec.Body.String(), "catering", "upstream queries stay internal")

	rec = s.do(t, http.MethodGet, "/v1/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	regions := decode[[]httpadapter.RegionResponse](t, rec)
	require.NotEmpty(t, regions)
	assert.Equal(t, "carabobo", regions[0].Key)
	assert.Positive(t, regions[0].RadiusMeters)
}

func TestCreateSession_Defaults(t *testing.T) {
	s := newTestServer(t)

	sess := s.createSession(t, "")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, app.DefaultRegion, sess.Region)
	assert.Equal(t, app.DefaultCategory, sess.Category)
	assert.Equal(t, app.PhaseReady, sess.Phase)
	assert.False(t, sess.Error)
	assert.Len(t, sess.Candidates, 2)
}

func TestCreateSession_FallbackOnUpstreamError(t *testing.T) {
	s := newTestServer(t)

	sess := s.createSession(t, `{"category":"cultura"}`)
	assert.True(t, sess.Error)
	assert.Equal(t, app.NoticeDegraded, sess.Notice)
	require.NotEmpty(t, sess.Candidates)
	for _, p := range sess.Candidates {
		assert.Equal(t, "cultura", p.Category)
	}
}

func TestCreateSession_UnknownKeys(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/sessions", `{"category":"opera"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/sessions", `{"region":"atlantis"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/sessions", `{"region":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/sessions/nope"},
		{http.MethodDelete, "/v1/sessions/nope"},
		{http.MethodPost, "/v1/sessions/nope/start"},
		{http.MethodGet, "/v1/sessions/nope/winner"},
		{http.MethodGet, "/v1/sessions/nope/stream"},
	} {
		rec := s.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestUpdateSelection_KeepsOmittedKey(t *testing.T) {
	s := newTestServer(t)
	sess := s.createSession(t, "")

	rec := s.do(t, http.MethodPut, "/v1/sessions/"+sess.ID+"/selection", `{"region":"lara"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[httpadapter.SessionResponse](t, rec)
	assert.Equal(t, "lara", got.Region)
	assert.Equal(t, "cena", got.Category)

	rec = s.do(t, http.MethodPut, "/v1/sessions/"+sess.ID+"/selection", `{"category":"bingo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRollLifecycle(t *testing.T) {
	s := newTestServer(t)
	sess := s.createSession(t, "")
	base := "/v1/sessions/" + sess.ID

	rec := s.do(t, http.MethodGet, base+"/winner", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[httpadapter.SessionResponse](t, rec).Roller.Running)

	rec = s.do(t, http.MethodPost, base+"/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[httpadapter.SessionResponse](t, rec).Roller.Running)

	s.do(t, http.MethodPost, base+"/start", "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.clock.BlockUntilContext(ctx, 3))
	s.clock.Advance(roller.RunDuration)

	require.Eventually(t, func() bool {
		return s.do(t, http.MethodGet, base+"/winner", "").Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	w := decode[httpadapter.WinnerResponse](t, s.do(t, http.MethodGet, base+"/winner", ""))
	assert.Contains(t, []string{"r1", "r2"}, w.Place.ID)
	assert.True(t, strings.HasPrefix(w.MapsURL, "https://www.google.com/maps/search/?api=1&query="))

	got := decode[httpadapter.SessionResponse](t, s.do(t, http.MethodGet, base, ""))
	assert.Equal(t, app.PhaseSettled, got.Phase)

	rec = s.do(t, http.MethodPost, base+"/reset-winner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.PhaseReady, decode[httpadapter.SessionResponse](t, rec).Phase)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	sess := s.createSession(t, "")

	rec := s.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/sessions/"+sess.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	sess := s.createSession(t, "")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + sess.ID + "/stream"

	header := http.Header{"Origin": {"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first httpadapter.SessionResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, sess.ID, first.ID)
	assert.Equal(t, app.PhaseReady, first.Phase)

	s.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/start", "")
	for {
		var frame httpadapter.SessionResponse
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Roller.Running {
			assert.Equal(t, app.PhaseRunning, frame.Phase)
			break
		}
	}

	s.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, "")
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	sess := s.createSession(t, "")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + sess.ID + "/stream"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
