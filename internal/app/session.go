package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cpandares/random-places/internal/domain"
	"github.com/cpandares/random-places/internal/ports"
	"github.com/cpandares/random-places/internal/roller"
)

const (
	DefaultRegion   = "carabobo"
	DefaultCategory = "cena"

	NoticeDegraded = "Sin conexión a la API. Mostrando datos locales."
	NoticeEmpty    = "No hay lugares para esta categoría."

	defaultFetchError   = "Error al cargar lugares"
	malformedFetchError = "Respuesta inválida del servicio de lugares"
)

// Phase summarizes a session for display.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseEmpty   Phase = "empty"
	PhaseReady   Phase = "ready"
	PhaseRunning Phase = "running"
	PhaseSettled Phase = "settled"
)

// SessionState is the observable state of a session.
type SessionState struct {
	ID           string
	Region       string
	Category     string
	Loading      bool
	Error        bool
	ErrorMessage string
	Notice       string
	Candidates   []domain.Place
	Roller       roller.State
	Phase        Phase
}

// WinnerDetails is what the detail view shows once a run settles.
type WinnerDetails struct {
	Place   domain.Place
	MapsURL string
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Catalog  ports.Catalog
	Source   ports.CandidateSource
	Fallback ports.FallbackStore
	Clock    clockwork.Clock
	RNG      domain.RNG
	Logger   *slog.Logger
}

// Session coordinates the region/category selection, candidate loading and
// the roller engine of one user.
type Session struct {
	id       string
	catalog  ports.Catalog
	source   ports.CandidateSource
	fallback ports.FallbackStore
	logger   *slog.Logger
	clock    clockwork.Clock
	engine   *roller.Engine

	mu          sync.Mutex
	lastActive  time.Time
	region      string
	category    string
	remote      map[domain.CacheKey][]domain.Place
	local       []domain.Place
	loading     bool
	errMsg      string
	failed      bool
	gen         uint64
	cancelFetch context.CancelFunc
	closed      bool

	dirty   chan struct{}
	done    chan struct{}
	subsMu  sync.Mutex
	subs    map[chan SessionState]struct{}
	pumpEnd sync.WaitGroup
}

// NewSession builds an idle session. Call Select to load the first list.
func NewSession(id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:       id,
		catalog:  deps.Catalog,
		source:   deps.Source,
		fallback: deps.Fallback,
		logger:   logger.With("session_id", id),
		clock:    deps.Clock,
		remote:   make(map[domain.CacheKey][]domain.Place),
		dirty:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		subs:     make(map[chan SessionState]struct{}),
	}
	s.engine = roller.New(roller.Config{
		Clock:    deps.Clock,
		RNG:      deps.RNG,
		Logger:   s.logger,
		OnChange: s.markDirty,
	})
	s.lastActive = s.clock.Now()
	s.pumpEnd.Add(1)
	go s.pump()
	return s
}

// Touch marks the session as in use.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = s.clock.Now()
	s.mu.Unlock()
}

// IdleSince reports when the session was last used. Sessions with an open
// subscription are never idle.
func (s *Session) IdleSince() (time.Time, bool) {
	s.subsMu.Lock()
	watched := len(s.subs) > 0
	s.subsMu.Unlock()
	if watched {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, true
}

func (s *Session) ID() string { return s.id }

// SetRegion changes the region, keeping the category.
func (s *Session) SetRegion(ctx context.Context, region string) error {
	s.mu.Lock()
	category := s.category
	s.mu.Unlock()
	return s.Select(ctx, region, category)
}

// SetCategory changes the category, keeping the region.
func (s *Session) SetCategory(ctx context.Context, category string) error {
	s.mu.Lock()
	region := s.region
	s.mu.Unlock()
	return s.Select(ctx, region, category)
}

// Select switches to region and category. Any roll is cancelled and the
// winner cleared. A cached list is used right away; otherwise the candidate
// source is queried and the result applied unless a newer selection was made
// meanwhile. Fetch failures switch the session to the bundled fallback and
// are not returned. The fetch outlives ctx; only a newer selection or Close
// cancels it.
func (s *Session) Select(ctx context.Context, regionKey, categoryKey string) error {
	region, err := s.catalog.Region(regionKey)
	if err != nil {
		return err
	}
	category, err := s.catalog.Category(categoryKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastActive = s.clock.Now()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.gen > 0 && s.region == region.Key && s.category == category.Key {
		s.mu.Unlock()
		return nil
	}

	s.engine.Stop()
	s.engine.ResetWinner()
	s.region = region.Key
	s.category = category.Key
	s.errMsg = ""
	s.failed = false
	s.loading = true
	s.gen++
	gen := s.gen
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}

	key := domain.CacheKey{Region: region.Key, Category: category.Key}
	if _, ok := s.remote[key]; ok {
		s.loading = false
		s.applyLocked()
		s.mu.Unlock()
		s.markDirty()
		return nil
	}

	s.applyLocked()
	base := context.WithoutCancel(ctx)
	fetchCtx, cancel := context.WithCancel(base)
	s.cancelFetch = cancel
	s.mu.Unlock()
	s.markDirty()

	places, fetchErr := s.source.Fetch(fetchCtx, domain.PlaceQuery{
		Category:     category.Key,
		Categories:   category.UpstreamQuery(),
		Center:       region.Center,
		RadiusMeters: region.RadiusMeters,
	})
	cancel()

	var local []domain.Place
	if fetchErr != nil {
		local = s.loadFallback(base)
	}

	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "dropping stale fetch result", "key", key.String())
		return nil
	}
	s.cancelFetch = nil
	s.loading = false
	if fetchErr != nil {
		s.failed = true
		s.errMsg = fetchErrorMessage(fetchErr)
		s.local = local
		s.logger.WarnContext(ctx, "candidate fetch failed, using local places",
			"key", key.String(), "error", fetchErr)
	} else {
		s.remote[key] = places
		s.logger.InfoContext(ctx, "candidates loaded", "key", key.String(), "count", len(places))
	}
	s.applyLocked()
	s.mu.Unlock()
	s.markDirty()
	return nil
}

// Start begins a roll. Reports whether one started.
func (s *Session) Start() bool { return s.engine.Start() }

// Stop cancels a roll in progress.
func (s *Session) Stop() { s.engine.Stop() }

// ResetWinner clears the winner so another roll may start.
func (s *Session) ResetWinner() { s.engine.ResetWinner() }

// Winner returns the settled winner with a map link, or domain.ErrNoWinner.
func (s *Session) Winner() (WinnerDetails, error) {
	w := s.engine.State().Winner
	if w == nil {
		return WinnerDetails{}, domain.ErrNoWinner
	}
	return WinnerDetails{Place: *w, MapsURL: domain.MapsURL(*w)}, nil
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe streams session states, latest first. Slow readers miss
// intermediate states. The channel closes when cancel is called or the
// session closes.
func (s *Session) Subscribe() (<-chan SessionState, func()) {
	ch := make(chan SessionState, 1)
	s.subsMu.Lock()
	select {
	case <-s.done:
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	s.subs[ch] = struct{}{}
	offer(ch, s.State())
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.subsMu.Unlock()
			s.Touch()
		})
	}
}

// Close tears the session down: pending fetches and timers are cancelled
// and subscriptions end.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.mu.Unlock()

	s.engine.Close()
	close(s.done)
	s.pumpEnd.Wait()

	s.subsMu.Lock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.subsMu.Unlock()
}

func (s *Session) applyLocked() {
	key := domain.CacheKey{Region: s.region, Category: s.category}
	s.engine.SetCandidates(domain.ResolveCandidates(s.remote, key, s.failed, s.local))
	s.engine.SetLocked(s.loading)
}

func (s *Session) stateLocked() SessionState {
	key := domain.CacheKey{Region: s.region, Category: s.category}
	candidates := domain.ResolveCandidates(s.remote, key, s.failed, s.local)
	rs := s.engine.State()

	st := SessionState{
		ID:           s.id,
		Region:       s.region,
		Category:     s.category,
		Loading:      s.loading,
		Error:        s.failed,
		ErrorMessage: s.errMsg,
		Candidates:   candidates,
		Roller:       rs,
	}
	if s.failed {
		st.Notice = NoticeDegraded
	}

	switch {
	case s.loading:
		st.Phase = PhaseLoading
	case rs.Running:
		st.Phase = PhaseRunning
	case rs.Winner != nil:
		st.Phase = PhaseSettled
	case len(candidates) == 0:
		st.Phase = PhaseEmpty
		if st.Notice == "" {
			st.Notice = NoticeEmpty
		}
	default:
		st.Phase = PhaseReady
	}
	return st
}

func (s *Session) loadFallback(ctx context.Context) []domain.Place {
	places, err := s.fallback.Places(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "load local places", "error", err)
		return nil
	}
	return places
}

func (s *Session) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// pump turns change signals into state snapshots for subscribers.
func (s *Session) pump() {
	defer s.pumpEnd.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			st := s.State()
			s.subsMu.Lock()
			for ch := range s.subs {
				offer(ch, st)
			}
			s.subsMu.Unlock()
		}
	}
}

// offer replaces any unread state in ch with st.
func offer(ch chan SessionState, st SessionState) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// fetchErrorMessage is the text shown to clients. Upstream error details
// stay in the logs.
func fetchErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		return domain.ErrMissingAPIKey.Error()
	case errors.Is(err, domain.ErrMalformedResponse):
		return malformedFetchError
	default:
		return defaultFetchError
	}
}
