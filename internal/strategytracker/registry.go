package strategytracker

import (
	"sync"

	"github.com/traderterminal/core/internal/ids"
)

// Registry owns one Tracker per strategy ID, created lazily on first
// lookup so the router and API layer never have to special-case a
// strategy nobody has configured ahead of time (spec §9: unknown
// strategies default to paper). Implements internal/router's
// StrategyTrackers interface.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
	cfg      Config
	clock    ids.Clock

	// OnModeChange, if set, fires for every transition emitted by any
	// tracker the registry creates, so callers can wire a single
	// subscription (persistence, notifications) instead of one per
	// strategy.
	OnModeChange func(strategyID string, t ModeTransition)
}

// NewRegistry creates a Registry that lazily creates trackers with cfg and
// clock.
func NewRegistry(cfg Config, clock ids.Clock) *Registry {
	if clock == nil {
		clock = ids.RealClock{}
	}
	return &Registry{trackers: make(map[string]*Tracker), cfg: cfg, clock: clock}
}

// Lookup returns the tracker for strategyID, creating it (in ModePaper) on
// first access.
func (r *Registry) Lookup(strategyID string) (*Tracker, bool) {
	r.mu.RLock()
	t, ok := r.trackers[strategyID]
	r.mu.RUnlock()
	if ok {
		return t, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[strategyID]; ok {
		return t, true
	}
	t = New(strategyID, r.cfg, r.clock)
	t.OnModeChange = func(tr ModeTransition) {
		if r.OnModeChange != nil {
			r.OnModeChange(strategyID, tr)
		}
	}
	r.trackers[strategyID] = t
	return t, true
}

// Restore installs a tracker pre-seeded at mode (startup replay from
// internal/store strategy snapshots), replacing any tracker already
// registered for strategyID.
func (r *Registry) Restore(strategyID string, mode Mode) *Tracker {
	t := NewWithMode(strategyID, r.cfg, r.clock, mode)
	t.OnModeChange = func(tr ModeTransition) {
		if r.OnModeChange != nil {
			r.OnModeChange(strategyID, tr)
		}
	}
	r.mu.Lock()
	r.trackers[strategyID] = t
	r.mu.Unlock()
	return t
}

// All returns every strategy ID currently tracked, for the
// GET /api/strategies/summaries endpoint.
func (r *Registry) All() map[string]*Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Tracker, len(r.trackers))
	for id, t := range r.trackers {
		out[id] = t
	}
	return out
}
