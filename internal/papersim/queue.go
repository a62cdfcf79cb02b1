package papersim

import (
	"sort"

	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/money"
)

// restingOrder is an order parked against a symbol's book, waiting for a
// quote tick to satisfy its limit/stop condition (spec §4.4).
type restingOrder struct {
	order broker.Order
	seq   int64
}

// restingBook holds every resting order for one symbol, keyed on price then
// FIFO on insertion order, per spec §4.4 ("per-symbol priority queue keyed
// on price, then FIFO on insertion counter").
type restingBook struct {
	orders []restingOrder
}

func (b *restingBook) push(o restingOrder) {
	b.orders = append(b.orders, o)
}

func (b *restingBook) remove(orderID string) {
	out := b.orders[:0]
	for _, o := range b.orders {
		if o.order.OrderID != orderID {
			out = append(out, o)
		}
	}
	b.orders = out
}

// triggered returns the subset of resting orders whose condition is
// satisfied by quote, in match priority order (best price first, then
// earliest insertion), and removes them from the book.
func (b *restingBook) triggered(quote Quote) []restingOrder {
	var hit []restingOrder
	var rest []restingOrder
	for _, o := range b.orders {
		if isTriggered(o.order, quote) {
			hit = append(hit, o)
		} else {
			rest = append(rest, o)
		}
	}
	b.orders = rest

	sort.SliceStable(hit, func(i, j int) bool {
		pi, pj := priceOf(hit[i].order), priceOf(hit[j].order)
		if !pi.Equal(pj) {
			return pi.LessThan(pj)
		}
		return hit[i].seq < hit[j].seq
	})
	return hit
}

// priceOf returns the order's limiting price for priority ordering: buys
// rank best-price-first ascending on their limit/stop, sells descending —
// achieved by negating sell-side prices so a single ascending sort serves
// both sides.
func priceOf(o broker.Order) money.D {
	var p money.D
	switch {
	case o.Limit != nil:
		p = *o.Limit
	case o.Stop != nil:
		p = *o.Stop
	default:
		p = money.Zero
	}
	if o.Side == "SELL" {
		return p.Neg()
	}
	return p
}

func isTriggered(o broker.Order, q Quote) bool {
	switch o.Type {
	case "market":
		// Queued while the session was closed or no quote was cached; any
		// quote evaluated in an open session fills it.
		return true
	case "limit":
		if o.Limit == nil {
			return false
		}
		if o.Side == "BUY" {
			return q.Ask.LessThanOrEqual(*o.Limit)
		}
		return q.Bid.GreaterThanOrEqual(*o.Limit)
	case "stop":
		if o.Stop == nil {
			return false
		}
		if o.Side == "BUY" {
			return q.Ask.GreaterThanOrEqual(*o.Stop)
		}
		return q.Bid.LessThanOrEqual(*o.Stop)
	case "stop_limit":
		if o.Stop == nil || o.Limit == nil {
			return false
		}
		armed := false
		if o.Side == "BUY" {
			armed = q.Ask.GreaterThanOrEqual(*o.Stop)
		} else {
			armed = q.Bid.LessThanOrEqual(*o.Stop)
		}
		if !armed {
			return false
		}
		if o.Side == "BUY" {
			return q.Ask.LessThanOrEqual(*o.Limit)
		}
		return q.Bid.GreaterThanOrEqual(*o.Limit)
	default:
		return false
	}
}
