// Package strategytracker implements the windowed strategy performance
// tracker (spec §4.6): per-strategy trade sets, trailing win-rate/
// profit-factor/drawdown metrics, and the live/paper/suspended mode
// transition table. Grounded on the teacher's internal/risk.Manager
// consecutive-loss counting (RecordTradeResult), generalized from a single
// global cooldown counter into per-strategy completed-set bookkeeping with
// a deterministic mode-transition table instead of a cooldown timer.
package strategytracker

import (
	"sync"
	"time"

	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
)

// Mode is a strategy's current execution mode.
type Mode string

const (
	ModeLive      Mode = "live"
	ModePaper     Mode = "paper"
	ModeSuspended Mode = "suspended"
)

// TradeResult is one closed trade's outcome fed into the tracker.
type TradeResult struct {
	PnL money.D
	At  time.Time
}

// Set is a fixed-size group of trades, per spec §4.6.
type Set struct {
	Trades      []TradeResult
	ModeAtStart Mode
	SetNumber   int
}

// winRate returns the fraction of trades in the set with positive PnL.
func (s Set) winRate() float64 {
	if len(s.Trades) == 0 {
		return 0
	}
	wins := 0
	for _, tr := range s.Trades {
		if tr.PnL.IsPositive() {
			wins++
		}
	}
	return float64(wins) / float64(len(s.Trades))
}

// ModeTransition records one mode change with its trigger (spec §4.6:
// "recorded with reason, triggering-set numbers, and the window of
// win-rates examined").
type ModeTransition struct {
	From, To  Mode
	At        time.Time
	Reason    string
	SetNumber int
	Eligible  bool // true when the transition is only a live-eligibility signal, not an applied mode change
}

// Config tunes the set size, trailing window, and transition thresholds.
type Config struct {
	SetSize                     int
	EvaluationWindow            int
	MinWinRate                  float64
	ConsecutiveFailureThreshold int
	ConsecutiveSuccessThreshold int
	MinLifetimePaperTrades      int
}

// DefaultConfig matches spec §4.6's default set size of 20.
var DefaultConfig = Config{
	SetSize:                     20,
	EvaluationWindow:            20,
	MinWinRate:                  0.40,
	ConsecutiveFailureThreshold: 3,
	ConsecutiveSuccessThreshold: 3,
	MinLifetimePaperTrades:      100,
}

// Tracker owns one strategy's performance history and mode.
type Tracker struct {
	mu sync.Mutex

	strategyID string
	cfg        Config
	clock      ids.Clock

	mode           Mode
	history        []TradeResult
	currentSet     Set
	setCounter     int
	completedSets  []Set
	transitions    []ModeTransition
	lifetimePaper  int

	OnModeChange func(ModeTransition)
}

// New creates a Tracker starting in ModePaper, per spec §9's default of
// routing unknown/new strategies to paper until earning promotion.
func New(strategyID string, cfg Config, clock ids.Clock) *Tracker {
	if clock == nil {
		clock = ids.RealClock{}
	}
	if cfg.SetSize <= 0 {
		cfg = DefaultConfig
	}
	t := &Tracker{
		strategyID: strategyID,
		cfg:        cfg,
		clock:      clock,
		mode:       ModePaper,
	}
	t.currentSet = Set{ModeAtStart: t.mode, SetNumber: 1}
	t.setCounter = 1
	return t
}

// NewWithMode creates a Tracker whose starting mode is restored from
// persisted state (e.g. on process restart) rather than defaulting to
// paper. Used by Registry.Restore for startup replay and by tests that need to
// exercise a strategy already in live or suspended mode.
func NewWithMode(strategyID string, cfg Config, clock ids.Clock, mode Mode) *Tracker {
	t := New(strategyID, cfg, clock)
	t.mode = mode
	t.currentSet.ModeAtStart = mode
	return t
}

// Mode returns the strategy's current execution mode.
func (t *Tracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// RecordTrade appends a trade result, closing the current set if it has
// reached SetSize, and evaluates the mode transition table (spec §4.6). It
// returns the transition applied, if any; nil means no change this trade,
// preserving the "at most one transition per trade" invariant since a
// second call this trade never happens — RecordTrade is one call per trade.
func (t *Tracker) RecordTrade(result TradeResult) *ModeTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, result)
	t.currentSet.Trades = append(t.currentSet.Trades, result)
	if t.mode == ModePaper {
		t.lifetimePaper++
	}

	if len(t.currentSet.Trades) >= t.cfg.SetSize {
		t.completedSets = append(t.completedSets, t.currentSet)
		t.setCounter++
		t.currentSet = Set{ModeAtStart: t.mode, SetNumber: t.setCounter}
	}

	return t.decide()
}

// decide applies the deterministic mode-transition table. Caller must hold t.mu.
func (t *Tracker) decide() *ModeTransition {
	window := t.trailingWindow()
	winRate := windowWinRate(window)

	switch t.mode {
	case ModeLive:
		if len(window) >= t.cfg.EvaluationWindow && winRate < t.cfg.MinWinRate {
			return t.transition(ModePaper, "protect_capital", false)
		}
		if t.consecutiveSetOutcome(false) >= t.cfg.ConsecutiveFailureThreshold {
			return t.transition(ModeSuspended, "kill_switch", false)
		}
	case ModePaper:
		if t.consecutiveSetOutcome(true) >= t.cfg.ConsecutiveSuccessThreshold && t.lifetimePaper >= t.cfg.MinLifetimePaperTrades {
			// Promotion requires explicit operator approval: emit an
			// eligibility signal without actually moving the mode (spec §4.6
			// invariant: "promotion to live ... produces only an eligible
			// signal, not an automatic mode change").
			return t.eligibleSignal("promotion_eligible")
		}
	case ModeSuspended:
		// Manual only; no automatic transition out of suspended.
	}
	return nil
}

// trailingWindow returns the last EvaluationWindow trades across set
// boundaries, per spec §4.6 ("may span sets").
func (t *Tracker) trailingWindow() []TradeResult {
	n := len(t.history)
	w := t.cfg.EvaluationWindow
	if w <= 0 || w > n {
		w = n
	}
	return t.history[n-w:]
}

func windowWinRate(window []TradeResult) float64 {
	if len(window) == 0 {
		return 0
	}
	wins := 0
	for _, tr := range window {
		if tr.PnL.IsPositive() {
			wins++
		}
	}
	return float64(wins) / float64(len(window))
}

// consecutiveSetOutcome counts trailing completed sets (most recent first)
// whose pass/fail outcome matches want, stopping at the first mismatch.
func (t *Tracker) consecutiveSetOutcome(want bool) int {
	count := 0
	for i := len(t.completedSets) - 1; i >= 0; i-- {
		passed := t.completedSets[i].winRate() >= t.cfg.MinWinRate
		if passed != want {
			break
		}
		count++
	}
	return count
}

func (t *Tracker) transition(to Mode, reason string, eligible bool) *ModeTransition {
	from := t.mode
	t.mode = to
	tr := ModeTransition{
		From:      from,
		To:        to,
		At:        t.clock.Now(),
		Reason:    reason,
		SetNumber: t.setCounter,
		Eligible:  eligible,
	}
	t.transitions = append(t.transitions, tr)
	if t.OnModeChange != nil {
		t.OnModeChange(tr)
	}
	return &tr
}

func (t *Tracker) eligibleSignal(reason string) *ModeTransition {
	tr := ModeTransition{
		From:      t.mode,
		To:        ModeLive,
		At:        t.clock.Now(),
		Reason:    reason,
		SetNumber: t.setCounter,
		Eligible:  true,
	}
	t.transitions = append(t.transitions, tr)
	if t.OnModeChange != nil {
		t.OnModeChange(tr)
	}
	return &tr
}

// PromoteToLive applies an operator-approved live promotion. It is the only
// path from paper to live (spec §4.6 invariant).
func (t *Tracker) PromoteToLive(reason string) *ModeTransition {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != ModePaper {
		return nil
	}
	return t.transition(ModeLive, reason, false)
}

// Resume applies an operator override out of suspended, to either paper or live.
func (t *Tracker) Resume(to Mode, reason string) *ModeTransition {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != ModeSuspended {
		return nil
	}
	return t.transition(to, reason, false)
}

// Transitions returns the full mode-change history.
func (t *Tracker) Transitions() []ModeTransition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ModeTransition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// LifetimePaperTrades returns the count of trades recorded while in paper mode.
func (t *Tracker) LifetimePaperTrades() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lifetimePaper
}
