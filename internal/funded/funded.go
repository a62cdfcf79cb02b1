// Package funded implements the funded-account rule engine (spec §4.5) as a
// pure evaluate function. Grounded on the teacher's internal/risk.Manager —
// daily loss limit derivation and drawdown evaluation reappear here; its
// consecutive-loss counting lives in internal/strategytracker — but reshaped from an imperative
// Allow-with-side-effects API (the teacher mutates Manager state inline on
// every call) into evaluate(state, rules, order, now) -> Verdict, a pure
// function with no hidden state so the router can call it without owning a
// lock and so RiskViolation records are a caller decision, not a side
// effect buried in the rule check.
package funded

import (
	"time"

	"github.com/traderterminal/core/internal/money"
)

// Verdict is the outcome of evaluating one proposed order against an
// account's funded rules.
type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictWarn    Verdict = "warn"
	VerdictViolate Verdict = "violate"
)

// AccountStatus mirrors spec §4.5's active/violated/paused lifecycle.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusViolated AccountStatus = "violated"
	StatusPaused   AccountStatus = "paused"
)

// TimeWindow is one permitted trading window, expressed in minutes since
// UTC midnight, inclusive of Open and exclusive of Close.
type TimeWindow struct {
	OpenMinute  int
	CloseMinute int
}

func (w TimeWindow) contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	return minute >= w.OpenMinute && minute < w.CloseMinute
}

// NewsEvent is a configured blackout window's center time; orders within
// ±2 minutes of it are rejected when NewsBlackoutEnabled is set.
type NewsEvent struct {
	At time.Time
}

// Rules is the configured rule set for one funded account (spec §4.5).
type Rules struct {
	MaxDailyLoss            money.D
	TrailingDrawdownLimit    money.D
	MaxContracts             money.D
	MaxConcurrentPositions   int
	AllowedHours             []TimeWindow // empty means unrestricted
	RestrictedSymbols        map[string]bool
	NewsBlackoutEnabled      bool
	NewsEvents               []NewsEvent
}

// AccountState is the account's current standing, as maintained by the
// broker tracker and strategy tracker (spec §4.5).
type AccountState struct {
	Status              AccountStatus
	DailyRealizedPnL     money.D
	DailyUnrealizedPnL   money.D
	PeakEquity           money.D
	CurrentEquity        money.D
	OpenContracts        money.D
	OpenPositionCount    int
}

// ProposedOrder is the minimal shape evaluate needs from an order under
// consideration, independent of the broker.Order type so this package has
// no dependency on the broker package.
type ProposedOrder struct {
	Symbol           string
	Qty              money.D
	WorstCaseSlippage money.D // worst-case adverse move the fill could realize
}

// Result is evaluate's full output: the verdict plus the reason code to
// record on a RiskViolation when the verdict is not ok.
type Result struct {
	Verdict Verdict
	Reason  string // errs.Code* constant when Verdict != ok
}

func ok() Result { return Result{Verdict: VerdictOK} }

func violate(reason string) Result {
	return Result{Verdict: VerdictViolate, Reason: reason}
}

// Evaluate is the pure function from spec §4.5:
// evaluate(account_state, rules, proposed_order, now) -> {ok|warn|violate}.
// Rules are checked in the order the spec lists them; the first violated
// rule wins. An already-violated account refuses every order outright.
func Evaluate(state AccountState, rules Rules, order ProposedOrder, now time.Time) Result {
	if state.Status != StatusActive {
		return violate("account_violated")
	}

	worstCasePnL := state.DailyRealizedPnL.Add(state.DailyUnrealizedPnL).Sub(order.WorstCaseSlippage)
	if !rules.MaxDailyLoss.IsZero() && worstCasePnL.LessThan(rules.MaxDailyLoss.Neg()) {
		return violate("daily_loss_cap")
	}

	if !rules.TrailingDrawdownLimit.IsZero() {
		drawdown := state.CurrentEquity.Sub(state.PeakEquity)
		if drawdown.LessThan(rules.TrailingDrawdownLimit.Neg()) {
			return violate("trailing_drawdown")
		}
	}

	if !rules.MaxContracts.IsZero() {
		projected := state.OpenContracts.Add(order.Qty)
		if projected.GreaterThan(rules.MaxContracts) {
			return violate("max_contracts")
		}
	}

	if rules.MaxConcurrentPositions > 0 && state.OpenPositionCount >= rules.MaxConcurrentPositions {
		return violate("max_concurrent_positions")
	}

	if len(rules.AllowedHours) > 0 {
		allowed := false
		for _, w := range rules.AllowedHours {
			if w.contains(now) {
				allowed = true
				break
			}
		}
		if !allowed {
			return violate("outside_allowed_hours")
		}
	}

	if rules.RestrictedSymbols[order.Symbol] {
		return violate("restricted_symbol")
	}

	if rules.NewsBlackoutEnabled {
		for _, ev := range rules.NewsEvents {
			delta := now.Sub(ev.At)
			if delta < 0 {
				delta = -delta
			}
			if delta <= 2*time.Minute {
				return violate("news_blackout")
			}
		}
	}

	return ok()
}

// NextStatus applies a Result to the account's status per spec §4.5: a
// violate verdict transitions active -> violated; all other verdicts leave
// status unchanged (recovery from violated requires a human acknowledgement
// that resets status to paused, which this package does not perform itself).
func NextStatus(current AccountStatus, r Result) AccountStatus {
	if r.Verdict == VerdictViolate && current == StatusActive {
		return StatusViolated
	}
	return current
}
