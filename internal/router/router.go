// Package router implements the C7 decision engine (spec §4.2): turning an
// Alert into a {backend, account_id, effective_mode} decision and handing
// the resulting order off to the resolved Broker Capability. The five
// decision rules are evaluated in order, first match wins, exactly as
// spec.md lists them.
package router

import (
	"context"
	"fmt"

	"github.com/traderterminal/core/internal/accountgroup"
	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/errs"
	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/papersim"
	"github.com/traderterminal/core/internal/strategytracker"
)

// Decision is the router's output for one alert.
type Decision struct {
	Backend       string
	AccountID     string
	EffectiveMode string // live | paper
	ModeOverride  bool
	OrderID       string
	ClampedQty    bool
	// Order is the final submitted order (post-clamp, post-ack), for callers
	// that persist the alert_id -> order_id correspondence (spec §4.2).
	Order broker.Order
}

// StrategyTrackers resolves a strategy_id to its performance tracker.
// Missing strategies are treated as having no mode override, per spec §4.2
// ("if strategy_id is present and its current_mode is paper or suspended").
type StrategyTrackers interface {
	Lookup(strategyID string) (*strategytracker.Tracker, bool)
}

// FundedState supplies the current account state and rule set consulted by
// the funded rule engine (spec §4.2 rule 4, §4.5).
type FundedState interface {
	StateFor(accountID string) (funded.AccountState, funded.Rules, bool)
}

// Router ties accountgroup resolution, the strategy overlay, the funded
// rule engine, and the broker registry into the single decision pipeline
// spec §4.2 describes.
type Router struct {
	groups     *accountgroup.Registry
	strategies StrategyTrackers
	funded     FundedState
	backends   *broker.Registry
	paperSim   *papersim.Simulator

	OnModeOverride func(alertID, strategyID string)
}

// New wires a Router from its dependencies.
func New(groups *accountgroup.Registry, strategies StrategyTrackers, fundedState FundedState, backends *broker.Registry, paperSim *papersim.Simulator) *Router {
	return &Router{groups: groups, strategies: strategies, funded: fundedState, backends: backends, paperSim: paperSim}
}

// Route evaluates the five decision rules and, on success, submits the
// resulting order to the resolved Broker Capability.
func (r *Router) Route(ctx context.Context, a alert.Alert) (Decision, error) {
	// Rule 1: unknown account group.
	group, ok := r.groups.Resolve(a.AccountGroup)
	if !ok {
		return Decision{}, errs.New(errs.KindIngressRejection, errs.CodeUnknownAccountGroup, a.AlertID, fmt.Sprintf("unknown account group %q", a.AccountGroup))
	}

	effectiveMode := "live"
	modeOverride := false
	backendName := group.BackendRef

	// Rule 2: paper-prefix routing.
	if group.IsPaperPrefix() {
		effectiveMode = "paper"
		backendName = papersim.Name
	} else if a.StrategyID != "" && r.strategies != nil {
		// Rule 3: strategy mode overlay.
		if tr, found := r.strategies.Lookup(a.StrategyID); found {
			mode := tr.Mode()
			if mode == strategytracker.ModePaper || mode == strategytracker.ModeSuspended {
				effectiveMode = "paper"
				backendName = papersim.Name
				modeOverride = true
				if r.OnModeOverride != nil {
					r.OnModeOverride(a.AlertID, a.StrategyID)
				}
			}
		}
	}

	accountID := group.LiveAccountID
	if effectiveMode == "paper" {
		accountID = a.AccountGroup
	}

	// Rule 4: funded rule engine.
	qty := a.Quantity
	clamped := false
	if r.funded != nil {
		if state, rules, has := r.funded.StateFor(accountID); has {
			worstCaseSlippage := money.Zero
			if r.paperSim != nil {
				worstCaseSlippage = r.paperSim.EstimateWorstCaseSlippage(a.Symbol, qty)
			}
			result := funded.Evaluate(state, rules, funded.ProposedOrder{Symbol: a.Symbol, Qty: qty, WorstCaseSlippage: worstCaseSlippage}, a.ReceivedAt)
			if result.Verdict == funded.VerdictViolate {
				return Decision{}, errs.New(errs.KindRiskViolation, result.Reason, a.AlertID, "funded rule engine rejected order")
			}

			// Rule 5: size clamping.
			if !rules.MaxContracts.IsZero() {
				room := rules.MaxContracts.Sub(state.OpenContracts)
				if room.LessThanOrEqual(money.Zero) {
					return Decision{}, errs.New(errs.KindRiskViolation, errs.CodeSizeClampExceeded, a.AlertID, "no remaining exposure room")
				}
				if qty.GreaterThan(room) {
					qty = room
					clamped = true
				}
			}
		}
	}

	backend, ok := r.backends.Resolve(backendName)
	if !ok {
		return Decision{}, errs.New(errs.KindPermanentBroker, "unknown_backend", a.AlertID, fmt.Sprintf("no backend registered for %q", backendName))
	}

	order := broker.Order{
		AlertID:      a.AlertID,
		StrategyID:   a.StrategyID,
		AccountID:    accountID,
		Symbol:       a.Symbol,
		Side:         sideFor(a.Action),
		Qty:          qty,
		Type:         string(a.OrderType),
		Limit:        a.Price,
		Stop:         a.StopPrice,
		ModeOverride: modeOverride,
	}

	ack, err := backend.Submit(ctx, order)
	if err != nil {
		return Decision{}, errs.Wrap(errs.KindTransientBroker, "submit_failed", a.AlertID, err)
	}
	order.Backend = backendName
	order.OrderID = ack.OrderID
	order.Status = ack.Status

	return Decision{
		Backend:       backendName,
		AccountID:     accountID,
		EffectiveMode: effectiveMode,
		ModeOverride:  modeOverride,
		OrderID:       ack.OrderID,
		ClampedQty:    clamped,
		Order:         order,
	}, nil
}

func sideFor(action alert.Action) string {
	switch action {
	case alert.ActionBuy:
		return "BUY"
	case alert.ActionSell, alert.ActionClose, alert.ActionExit:
		return "SELL"
	default:
		return "BUY"
	}
}
