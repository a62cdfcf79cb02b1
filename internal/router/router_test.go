package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/traderterminal/core/internal/accountgroup"
	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/errs"
	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/papersim"
	"github.com/traderterminal/core/internal/strategytracker"
)

type fakeStrategies struct {
	trackers map[string]*strategytracker.Tracker
}

func (f fakeStrategies) Lookup(id string) (*strategytracker.Tracker, bool) {
	tr, ok := f.trackers[id]
	return tr, ok
}

type fakeFunded struct {
	state funded.AccountState
	rules funded.Rules
	has   bool
}

func (f fakeFunded) StateFor(accountID string) (funded.AccountState, funded.Rules, bool) {
	return f.state, f.rules, f.has
}

func testGroups(t *testing.T) *accountgroup.Registry {
	t.Helper()
	reg := accountgroup.NewRegistry()
	return reg
}

func withGroups(groups ...accountgroup.Group) *accountgroup.Registry {
	reg := accountgroup.NewRegistry()
	for _, g := range groups {
		reg.Add(g)
	}
	return reg
}

func TestRouteRejectsUnknownAccountGroup(t *testing.T) {
	reg := testGroups(t)
	backends := broker.NewRegistry()
	r := New(reg, fakeStrategies{}, fakeFunded{}, backends, nil)

	_, err := r.Route(context.Background(), alert.Alert{
		AlertID: "a1", AccountGroup: "does_not_exist", Symbol: "ES", Action: alert.ActionBuy,
		Quantity: money.FromFloat(1), OrderType: alert.OrderTypeMarket, ReceivedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected unknown account group error")
	}
}

func TestRouteSendsPaperPrefixToSimulator(t *testing.T) {
	reg := withGroups(accountgroup.Group{Key: "paper_simulator", BackendRef: "paper_simulator"})
	clock := ids.FixedClock{At: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	sim := papersim.New(papersim.Config{
		InitialBalance: money.FromFloat(50000),
		Specs: map[string]papersim.SymbolSpec{
			"ES": {TickSize: money.FromFloat(0.25), BaseSlippageTicks: money.FromFloat(1), AvgVolume: money.FromFloat(4), Multiplier: money.FromFloat(50)},
		},
	}, clock, ids.DefaultEquitySession)
	sim.OnQuote("ES", papersim.Quote{Bid: money.FromFloat(4999.75), Ask: money.FromFloat(5000.25)})

	backends := broker.NewRegistry()
	backends.Register(sim)

	r := New(reg, fakeStrategies{}, fakeFunded{}, backends, sim)
	decision, err := r.Route(context.Background(), alert.Alert{
		AlertID: "a1", AccountGroup: "paper_simulator", Symbol: "ES", Action: alert.ActionBuy,
		Quantity: money.FromFloat(1), OrderType: alert.OrderTypeMarket, ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.EffectiveMode != "paper" || decision.Backend != papersim.Name {
		t.Fatalf("decision = %+v, want paper/paper_simulator", decision)
	}
}

func TestRouteOverridesToPaperWhenStrategySuspended(t *testing.T) {
	reg := withGroups(accountgroup.Group{Key: "topstep", BackendRef: "paper_simulator", LiveAccountID: "acct-live"})
	tr := strategytracker.NewWithMode("s1", strategytracker.DefaultConfig, nil, strategytracker.ModeSuspended)
	strategies := fakeStrategies{trackers: map[string]*strategytracker.Tracker{"s1": tr}}

	clock := ids.FixedClock{At: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	sim := papersim.New(papersim.Config{
		InitialBalance: money.FromFloat(50000),
		Specs: map[string]papersim.SymbolSpec{
			"ES": {TickSize: money.FromFloat(0.25), BaseSlippageTicks: money.FromFloat(1), AvgVolume: money.FromFloat(4), Multiplier: money.FromFloat(50)},
		},
	}, clock, ids.DefaultEquitySession)
	sim.OnQuote("ES", papersim.Quote{Bid: money.FromFloat(4999.75), Ask: money.FromFloat(5000.25)})

	backends := broker.NewRegistry()
	backends.Register(sim)

	r := New(reg, strategies, fakeFunded{}, backends, sim)
	overridden := false
	r.OnModeOverride = func(alertID, strategyID string) { overridden = true }

	decision, err := r.Route(context.Background(), alert.Alert{
		AlertID: "a1", AccountGroup: "topstep", StrategyID: "s1", Symbol: "ES", Action: alert.ActionBuy,
		Quantity: money.FromFloat(1), OrderType: alert.OrderTypeMarket, ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !decision.ModeOverride || decision.EffectiveMode != "paper" {
		t.Fatalf("decision = %+v, want mode_override to paper", decision)
	}
	if !overridden {
		t.Fatal("expected OnModeOverride callback to fire")
	}
}

func TestRouteRejectsOnFundedViolation(t *testing.T) {
	reg := withGroups(accountgroup.Group{Key: "topstep", BackendRef: "paper_simulator", LiveAccountID: "acct-live"})
	fundedState := fakeFunded{
		has:   true,
		state: funded.AccountState{Status: funded.StatusActive, DailyRealizedPnL: money.FromFloat(-990), CurrentEquity: money.FromFloat(49010), PeakEquity: money.FromFloat(50000)},
		rules: funded.Rules{MaxDailyLoss: money.FromFloat(1000)},
	}

	clock := ids.FixedClock{At: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	sim := papersim.New(papersim.Config{
		InitialBalance: money.FromFloat(50000),
		Specs: map[string]papersim.SymbolSpec{
			"ES": {TickSize: money.FromFloat(0.25), BaseSlippageTicks: money.FromFloat(50), AvgVolume: money.FromFloat(1), Multiplier: money.FromFloat(1)},
		},
	}, clock, ids.DefaultEquitySession)

	backends := broker.NewRegistry()
	r := New(reg, fakeStrategies{}, fundedState, backends, sim)

	_, err := r.Route(context.Background(), alert.Alert{
		AlertID: "a1", AccountGroup: "topstep", Symbol: "ES", Action: alert.ActionBuy,
		Quantity: money.FromFloat(1), OrderType: alert.OrderTypeMarket, ReceivedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected daily loss cap rejection")
	}
	var e *errs.E
	if !errors.As(err, &e) {
		t.Fatalf("expected *errs.E, got %T: %v", err, err)
	}
	if e.Code != errs.CodeDailyLossCap {
		t.Fatalf("code = %q, want %q", e.Code, errs.CodeDailyLossCap)
	}
}
