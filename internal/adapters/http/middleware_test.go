package http_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/cpandares/random-places/internal/adapters/http"
)

func newLoggedEcho(buf *bytes.Buffer) *echo.Echo {
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	e := echo.New()
	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))
	e.GET("/v1/sessions/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	return e
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLoggingMiddleware_SessionRoute(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc-123", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	entry := lastLogLine(t, &buf)
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "/v1/sessions/:id", entry["route"])
	assert.Equal(t, "abc-123", entry["session_id"])
	assert.EqualValues(t, http.StatusNoContent, entry["status"])
}

func TestLoggingMiddleware_UnknownRoute(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	entry := lastLogLine(t, &buf)
	assert.EqualValues(t, http.StatusNotFound, entry["status"])
	assert.NotContains(t, entry, "session_id")
	assert.NotEmpty(t, entry["request_id"])
}
