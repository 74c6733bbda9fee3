// Package roller implements the timed random draw over a candidate list.
//
// A run flashes random candidates on a short period, counts elapsed seconds
// and, once the deadline passes, stops and draws the winner. The final draw
// is independent of whatever candidate was last flashed.
package roller

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cpandares/random-places/internal/domain"
)

const (
	FlickerPeriod = 120 * time.Millisecond
	ElapsedPeriod = 250 * time.Millisecond
	RunDuration   = 10 * time.Second

	// MaxDisplayElapsed caps the elapsed seconds shown to the user.
	MaxDisplayElapsed = 10
)

// State is a snapshot of the engine.
type State struct {
	Running        bool          `json:"running"`
	Current        *domain.Place `json:"current"`
	Winner         *domain.Place `json:"winner"`
	Elapsed        int           `json:"elapsed"`
	ElapsedDisplay int           `json:"elapsed_display"`
}

// Config wires an Engine. Clock and RNG are required.
type Config struct {
	Clock  clockwork.Clock
	RNG    domain.RNG
	Logger *slog.Logger
	// OnChange, if set, is called after every state change without any
	// engine lock held. It must not block.
	OnChange func()
}

// run owns the timers of one start-to-winner cycle.
type run struct {
	startedAt time.Time
	flicker   clockwork.Ticker
	elapsed   clockwork.Ticker
	deadline  clockwork.Timer
	done      chan struct{}
}

func (r *run) cancel() {
	r.flicker.Stop()
	r.elapsed.Stop()
	r.deadline.Stop()
	close(r.done)
}

// Engine is safe for concurrent use.
type Engine struct {
	clock    clockwork.Clock
	rng      domain.RNG
	logger   *slog.Logger
	onChange func()

	mu         sync.Mutex
	candidates []domain.Place
	ids        []string
	locked     bool
	closed     bool
	active     *run
	current    *domain.Place
	winner     *domain.Place
	elapsed    int
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		clock:    cfg.Clock,
		rng:      cfg.RNG,
		logger:   logger,
		onChange: cfg.OnChange,
	}
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Running:        e.active != nil,
		Current:        clonePlace(e.current),
		Winner:         clonePlace(e.winner),
		Elapsed:        e.elapsed,
		ElapsedDisplay: min(e.elapsed, MaxDisplayElapsed),
	}
}

// SetCandidates installs the list drawn from. A list that differs from the
// installed one stops any run and clears the flashed candidate; the winner
// is kept for display until cleared externally.
func (e *Engine) SetCandidates(list []domain.Place) {
	e.mu.Lock()
	if e.closed || e.sameList(list) {
		e.mu.Unlock()
		return
	}
	e.candidates = list
	e.ids = placeIDs(list)
	e.stopLocked()
	e.current = nil
	e.mu.Unlock()
	e.notify()
}

// SetLocked blocks new runs while locked. It does not affect a run in progress.
func (e *Engine) SetLocked(locked bool) {
	e.mu.Lock()
	e.locked = locked
	e.mu.Unlock()
}

// Start begins a run. It is a no-op, reporting false, when there are no
// candidates, a winner is already set, the engine is locked or running, or
// the engine was closed.
func (e *Engine) Start() bool {
	e.mu.Lock()
	if e.closed || e.locked || e.active != nil || e.winner != nil || len(e.candidates) == 0 {
		e.mu.Unlock()
		return false
	}

	r := &run{
		startedAt: e.clock.Now(),
		flicker:   e.clock.NewTicker(FlickerPeriod),
		elapsed:   e.clock.NewTicker(ElapsedPeriod),
		deadline:  e.clock.NewTimer(RunDuration),
		done:      make(chan struct{}),
	}
	e.active = r
	e.winner = nil
	e.elapsed = 0
	count := len(e.candidates)
	e.mu.Unlock()

	e.logger.Debug("roll started", "candidates", count)
	go e.loop(r)
	e.notify()
	return true
}

// Stop cancels the running cycle, if any. Current and winner are kept.
func (e *Engine) Stop() {
	e.mu.Lock()
	stopped := e.stopLocked()
	e.mu.Unlock()
	if stopped {
		e.notify()
	}
}

// ResetWinner clears the winner so a new run may start.
func (e *Engine) ResetWinner() {
	e.mu.Lock()
	if e.closed || e.winner == nil {
		e.mu.Unlock()
		return
	}
	e.winner = nil
	e.mu.Unlock()
	e.notify()
}

// Close cancels pending timers. No state changes after Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.closed = true
}

func (e *Engine) loop(r *run) {
	for {
		select {
		case <-r.done:
			return
		case <-r.flicker.Chan():
			e.flicker(r)
		case <-r.elapsed.Chan():
			e.tick(r)
		case <-r.deadline.Chan():
			e.finish(r)
			return
		}
	}
}

func (e *Engine) flicker(r *run) {
	e.mu.Lock()
	if e.active != r {
		e.mu.Unlock()
		return
	}
	p, ok := domain.Draw(e.candidates, e.rng)
	if ok {
		e.current = &p
	}
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) tick(r *run) {
	e.mu.Lock()
	if e.active != r {
		e.mu.Unlock()
		return
	}
	elapsed := int(e.clock.Since(r.startedAt) / time.Second)
	changed := elapsed != e.elapsed
	e.elapsed = elapsed
	e.mu.Unlock()
	if changed {
		e.notify()
	}
}

// finish stops the run and then draws the winner, so no flicker can land
// after the winner is published.
func (e *Engine) finish(r *run) {
	e.mu.Lock()
	if e.active != r {
		e.mu.Unlock()
		return
	}
	e.stopLocked()
	p, ok := domain.Draw(e.candidates, e.rng)
	if ok {
		e.winner = &p
	}
	e.mu.Unlock()

	if ok {
		e.logger.Debug("roll settled", "winner_id", p.ID, "winner", p.Name)
	}
	e.notify()
}

// stopLocked detaches and cancels the active run. Reports whether a run was active.
func (e *Engine) stopLocked() bool {
	if e.active == nil {
		return false
	}
	e.active.cancel()
	e.active = nil
	return true
}

// sameList reports whether list is the installed list: same backing array,
// same length, and the same IDs as when it was installed.
func (e *Engine) sameList(list []domain.Place) bool {
	if len(list) != len(e.candidates) {
		return false
	}
	if len(list) == 0 {
		return e.candidates != nil
	}
	if &list[0] != &e.candidates[0] {
		return false
	}
	for i, p := range list {
		if p.ID != e.ids[i] {
			return false
		}
	}
	return true
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

func placeIDs(list []domain.Place) []string {
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	return ids
}

func clonePlace(p *domain.Place) *domain.Place {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
