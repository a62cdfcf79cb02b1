package broker

import (
	"sync"
	"time"

	"github.com/traderterminal/core/internal/money"
)

// Tracker owns orders, fills, and derived positions for a single account.
// Per spec §5 ("one writer task per account serializes all state
// mutations"), exactly one goroutine should mutate a given Tracker; reads
// are safe from any goroutine via the snapshot-returning methods below.
//
// Adapted from the position-accounting shape of a CLOB execution tracker:
// average-cost long/short transitions, realized P&L on partial closes, and
// position flips all follow the same bookkeeping here, generalized from a
// single-asset USDC model to the multi-asset-class model this spec needs.
type Tracker struct {
	mu        sync.RWMutex
	accountID string
	orders    map[string]*Order
	fills     []Fill
	positions map[string]*Position
	// OnFill fires once per applied fill with the realized P&L delta that
	// fill produced (zero when the fill only opened or added to a position).
	// The strategy performance tracker wires this (via the listener each
	// Capability implementation exposes) to feed closed trades into
	// strategytracker.Tracker.RecordTrade.
	OnFill func(Fill, Order, money.D)
}

// NewTracker creates a Tracker for one account.
func NewTracker(accountID string) *Tracker {
	return &Tracker{
		accountID: accountID,
		orders:    make(map[string]*Order),
		positions: make(map[string]*Position),
	}
}

// RegisterOrder records a newly submitted order.
func (t *Tracker) RegisterOrder(o Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	if o.Status == "" {
		o.Status = StatusPending
	}
	cp := o
	t.orders[o.OrderID] = &cp
}

// UpdateStatus transitions an order's status (e.g. working, rejected).
// Returns false if the order does not exist or is already terminal — per
// spec §8, "terminal status ⇒ no further fills ever appear" so callers
// must not apply updates past a terminal state.
func (t *Tracker) UpdateStatus(orderID string, status OrderStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[orderID]
	if !ok || o.Status.Terminal() {
		return false
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return true
}

// ApplyFill records a fill and updates the owning order + derived position.
// Returns an error if the fill would push filled quantity past the order's
// requested quantity (spec §8 invariant: Σ fill.qty ≤ order.qty).
func (t *Tracker) ApplyFill(f Fill) error {
	t.mu.Lock()
	o, ok := t.orders[f.OrderID]
	if !ok {
		t.mu.Unlock()
		return errOrderNotFound(f.OrderID)
	}
	if o.Status.Terminal() && o.Status != StatusPartial {
		t.mu.Unlock()
		return errTerminalOrder(f.OrderID)
	}
	newFilled := o.FilledQty.Add(f.Qty)
	if newFilled.GreaterThan(o.Qty) {
		t.mu.Unlock()
		return errOverfill(f.OrderID)
	}

	// Running average fill price.
	if o.FilledQty.IsZero() {
		o.AvgFillPrice = f.Price
	} else {
		totalNotional := o.AvgFillPrice.Mul(o.FilledQty).Add(f.Price.Mul(f.Qty))
		o.AvgFillPrice = totalNotional.Div(newFilled)
	}
	o.FilledQty = newFilled
	if newFilled.Equal(o.Qty) {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartial
	}
	o.UpdatedAt = time.Now().UTC()

	t.fills = append(t.fills, f)
	realizedDelta := t.updatePosition(o.Symbol, o.Side, f)
	cb := t.OnFill
	orderCopy := *o
	t.mu.Unlock()

	if cb != nil {
		cb(f, orderCopy, realizedDelta)
	}
	return nil
}

// updatePosition adjusts the position for a fill and returns the realized
// P&L this specific fill produced (zero unless it closed existing
// quantity). Caller must hold t.mu.
func (t *Tracker) updatePosition(symbol, side string, f Fill) money.D {
	pos, ok := t.positions[symbol]
	if !ok {
		pos = &Position{AccountID: t.accountID, Symbol: symbol, Multiplier: money.FromFloat(1)}
		t.positions[symbol] = pos
	}
	pos.TotalFills++

	signedQty := f.Qty
	if side == "SELL" {
		signedQty = f.Qty.Neg()
	}

	realizedDelta := money.Zero

	switch {
	case pos.NetQty.Sign() == 0, sameSign(pos.NetQty, signedQty):
		// Opening or adding to a position in the same direction: blend cost basis.
		totalCost := pos.AvgEntryPrice.Mul(pos.NetQty).Add(f.Price.Mul(signedQty))
		pos.NetQty = pos.NetQty.Add(signedQty)
		if !pos.NetQty.IsZero() {
			pos.AvgEntryPrice = totalCost.Div(pos.NetQty)
		}
	default:
		// Closing, possibly flipping, an existing position: realize P&L on
		// the closed portion first.
		closingQty := money.Min(f.Qty, money.Abs(pos.NetQty))
		sign := money.FromFloat(1)
		if pos.NetQty.Sign() < 0 {
			sign = money.FromFloat(-1)
		}
		realizedDelta = f.Price.Sub(pos.AvgEntryPrice).Mul(closingQty).Mul(sign)
		pos.RealizedPnL = pos.RealizedPnL.Add(realizedDelta)
		pos.NetQty = pos.NetQty.Add(signedQty)

		remaining := f.Qty.Sub(closingQty)
		if remaining.Sign() > 0 {
			// Flipped through zero: the remainder opens a new position at
			// this fill's price.
			if side == "SELL" {
				pos.NetQty = remaining.Neg()
			} else {
				pos.NetQty = remaining
			}
			pos.AvgEntryPrice = f.Price
		} else if pos.NetQty.IsZero() {
			pos.AvgEntryPrice = money.Zero
		}
	}
	return realizedDelta
}

func sameSign(a, b money.D) bool {
	return (a.Sign() >= 0 && b.Sign() >= 0) || (a.Sign() <= 0 && b.Sign() <= 0)
}

// Position returns a snapshot of one symbol's position (zero value if none).
func (t *Tracker) Position(symbol string) Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.positions[symbol]; ok {
		return *p
	}
	return Position{AccountID: t.accountID, Symbol: symbol}
}

// Positions returns a snapshot of all positions.
func (t *Tracker) Positions() map[string]Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Position, len(t.positions))
	for k, v := range t.positions {
		out[k] = *v
	}
	return out
}

// Order returns a snapshot of one order.
func (t *Tracker) Order(orderID string) (Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// ActiveOrders returns all non-terminal orders.
func (t *Tracker) ActiveOrders() []Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Order
	for _, o := range t.orders {
		if !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// TotalRealizedPnL sums realized P&L across all positions.
func (t *Tracker) TotalRealizedPnL() money.D {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := money.Zero
	for _, p := range t.positions {
		total = total.Add(p.RealizedPnL)
	}
	return total
}

// RecentFills returns the last N fills, most recent first.
func (t *Tracker) RecentFills(limit int) []Fill {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.fills)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Fill, limit)
	for i := 0; i < limit; i++ {
		out[i] = t.fills[n-1-i]
	}
	return out
}
