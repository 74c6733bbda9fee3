package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/cpandares/random-places/internal/app"
	"github.com/cpandares/random-places/internal/domain"
	"github.com/cpandares/random-places/internal/ports"
)

type Handler struct {
	sessions *app.SessionManager
	catalog  ports.Catalog
	logger   *slog.Logger
	upgrader websocket.Upgrader
	stream   StreamConfig
}

// NewHandler serves the session API. allowedOrigins also gates WebSocket
// upgrades; "*" allows any origin.
func NewHandler(sessions *app.SessionManager, catalog ports.Catalog, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		catalog:  catalog,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		stream: DefaultStreamConfig(),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/v1/categories", h.ListCategories)
	e.GET("/v1/regions", h.ListRegions)

	g := e.Group("/v1/sessions")
	g.POST("", h.CreateSession)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.DeleteSession)
	g.PUT("/:id/selection", h.UpdateSelection)
	g.POST("/:id/start", h.StartRoll)
	g.POST("/:id/stop", h.StopRoll)
	g.POST("/:id/reset-winner", h.ResetWinner)
	g.GET("/:id/winner", h.GetWinner)
	g.GET("/:id/stream", h.Stream)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, toCategories(h.catalog.Categories()))
}

func (h *Handler) ListRegions(c echo.Context) error {
	return c.JSON(http.StatusOK, toRegions(h.catalog.Regions()))
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	s, err := h.sessions.Create(c.Request().Context(), req.Region, req.Category)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResponse(s.State()))
}

func (h *Handler) GetSession(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(s.State()))
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateSelection(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}

	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	cur := s.State()
	if req.Region == "" {
		req.Region = cur.Region
	}
	if req.Category == "" {
		req.Category = cur.Category
	}

	if err := s.Select(c.Request().Context(), req.Region, req.Category); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(s.State()))
}

// StartRoll starts a roll when one is allowed. A refused start is not an
// error; the returned state shows whether the session is running.
func (h *Handler) StartRoll(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	s.Start()
	return c.JSON(http.StatusOK, toSessionResponse(s.State()))
}

func (h *Handler) StopRoll(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	s.Stop()
	return c.JSON(http.StatusOK, toSessionResponse(s.State()))
}

func (h *Handler) ResetWinner(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	s.ResetWinner()
	return c.JSON(http.StatusOK, toSessionResponse(s.State()))
}

func (h *Handler) GetWinner(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	w, err := s.Winner()
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, WinnerResponse{Place: w.Place, MapsURL: w.MapsURL})
}

func mapError(c echo.Context, err error) error {
	requestID, _ := c.Get(ctxRequestID).(string)

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnknownRegion), errors.Is(err, domain.ErrUnknownCategory):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNoWinner):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("internal error", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
