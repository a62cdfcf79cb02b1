package broker

import (
	"context"
	"sync"

	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
)

// StubAdapter models the Broker Capability interface for a named venue
// without any vendor SDK dependency, per spec §1 ("vendor SDK specifics
// beyond the capability interface" are out of scope). It tracks idempotency
// keys, acknowledges orders immediately, and publishes fills on a
// per-account broadcast channel — enough surface for the router, funded
// rule engine, and strategy tracker to exercise against a live-shaped
// backend in tests and in dry-run operation.
type StubAdapter struct {
	name string

	mu            sync.Mutex
	idempotency   map[string]Ack // (accountID, alertID) -> prior ack
	trackers      map[string]*Tracker
	subscribers   map[string][]chan Fill
	health        Health
	clock         ids.Clock
	onFill        func(accountID string, f Fill, o Order, realizedDelta money.D)
}

// NewStubAdapter creates a stub for the named venue.
func NewStubAdapter(name string, clock ids.Clock) *StubAdapter {
	if clock == nil {
		clock = ids.RealClock{}
	}
	return &StubAdapter{
		name:        name,
		idempotency: make(map[string]Ack),
		trackers:    make(map[string]*Tracker),
		subscribers: make(map[string][]chan Fill),
		health:      Health{Connected: true, LastOK: clock.Now()},
		clock:       clock,
	}
}

func (a *StubAdapter) Name() string { return a.name }

func (a *StubAdapter) trackerFor(accountID string) *Tracker {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[accountID]
	if !ok {
		t = NewTracker(accountID)
		t.OnFill = func(f Fill, o Order, realizedDelta money.D) {
			if a.onFill != nil {
				a.onFill(accountID, f, o, realizedDelta)
			}
		}
		a.trackers[accountID] = t
	}
	return t
}

// SetFillListener installs fn to be called once per applied fill across
// every account this adapter tracks, carrying the realized P&L delta the
// fill produced. Every tracker reads the listener when a fill is applied,
// so trackers created before the call use fn as well.
func (a *StubAdapter) SetFillListener(fn func(accountID string, f Fill, o Order, realizedDelta money.D)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFill = fn
}

func idempotencyKey(accountID, alertID string) string {
	return accountID + "|" + alertID
}

// Submit places an order, idempotent on (account_id, alert_id) retries per
// spec §4.3.
func (a *StubAdapter) Submit(ctx context.Context, order Order) (Ack, error) {
	key := idempotencyKey(order.AccountID, order.AlertID)

	a.mu.Lock()
	if prior, ok := a.idempotency[key]; ok {
		a.mu.Unlock()
		return prior, nil
	}
	a.mu.Unlock()

	if order.OrderID == "" {
		order.OrderID = ids.NewPrefixedID("ord")
	}
	order.Backend = a.name
	order.Status = StatusWorking

	tracker := a.trackerFor(order.AccountID)
	tracker.RegisterOrder(order)

	ack := Ack{OrderID: order.OrderID, Status: StatusWorking}
	a.mu.Lock()
	a.idempotency[key] = ack
	a.health.LastOK = a.clock.Now()
	a.mu.Unlock()
	return ack, nil
}

// Cancel marks an order cancelled if it exists and is not already terminal.
func (a *StubAdapter) Cancel(ctx context.Context, orderID string) (CancelResult, error) {
	a.mu.Lock()
	trackers := make([]*Tracker, 0, len(a.trackers))
	for _, t := range a.trackers {
		trackers = append(trackers, t)
	}
	a.mu.Unlock()

	for _, t := range trackers {
		if o, ok := t.Order(orderID); ok {
			if o.Status.Terminal() {
				return CancelAlreadyTerminal, nil
			}
			t.UpdateStatus(orderID, StatusCancelled)
			return CancelOK, nil
		}
	}
	return CancelNotFound, nil
}

// Flatten cancels every active order for an account, best-effort: failures
// to cancel individual orders do not stop the sweep. It submits no closing
// orders, so the account's open positions are left unchanged.
func (a *StubAdapter) Flatten(ctx context.Context, accountID string) error {
	tracker := a.trackerFor(accountID)
	for _, o := range tracker.ActiveOrders() {
		_, _ = a.Cancel(ctx, o.OrderID)
	}
	return nil
}

// SubscribeFills returns a fresh channel registered to receive future fills
// for accountID. lastSeenFillID is accepted for interface symmetry with a
// real venue's resumable stream; the stub has no durable backlog to replay
// from, since it holds no fills the caller has not already seen via the
// tracker it owns.
func (a *StubAdapter) SubscribeFills(ctx context.Context, accountID, lastSeenFillID string) (<-chan Fill, error) {
	ch := make(chan Fill, 256)
	a.mu.Lock()
	a.subscribers[accountID] = append(a.subscribers[accountID], ch)
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.mu.Lock()
		defer a.mu.Unlock()
		subs := a.subscribers[accountID]
		for i, c := range subs {
			if c == ch {
				a.subscribers[accountID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// PublishFill is used by tests and the paper simulator's live-sandbox
// hybrid mode to push a fill into the adapter's tracker and notify
// subscribers.
func (a *StubAdapter) PublishFill(f Fill, accountID string) error {
	tracker := a.trackerFor(accountID)
	if err := tracker.ApplyFill(f); err != nil {
		return err
	}
	a.mu.Lock()
	subs := append([]chan Fill{}, a.subscribers[accountID]...)
	a.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- f:
		default:
		}
	}
	return nil
}

// AccountSnapshot returns the cached balances+positions view.
func (a *StubAdapter) AccountSnapshot(ctx context.Context, accountID string) (AccountSnapshot, error) {
	tracker := a.trackerFor(accountID)
	return AccountSnapshot{
		AccountID:  accountID,
		BalanceUSD: money.Zero,
		Positions:  tracker.Positions(),
		AsOf:       a.clock.Now(),
	}, nil
}

// Health reports adapter connectivity.
func (a *StubAdapter) Health() Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.health
}

// MarkDegraded flips the adapter's health to disconnected, used by the
// router when an internal_invariant failure requires disabling a backend
// without terminating the process (spec §7).
func (a *StubAdapter) MarkDegraded(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.health = Health{Connected: false, LastOK: a.health.LastOK, LastError: reason}
}

// Known backend names (spec §4.3).
const (
	BackendTradovate = "tradovate"
	BackendTastytrade = "tastytrade"
	BackendSchwab     = "schwab"
	BackendTopstepX   = "topstepx"
)
