package broker

import (
	"testing"

	"github.com/traderterminal/core/internal/money"
)

func TestApplyFillBuildsLongPositionAndRealizesPnL(t *testing.T) {
	tr := NewTracker("acct-1")
	tr.RegisterOrder(Order{OrderID: "o1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(2)})

	if err := tr.ApplyFill(Fill{OrderID: "o1", Qty: money.FromFloat(1), Price: money.FromFloat(100)}); err != nil {
		t.Fatalf("fill 1: %v", err)
	}
	if err := tr.ApplyFill(Fill{OrderID: "o1", Qty: money.FromFloat(1), Price: money.FromFloat(102)}); err != nil {
		t.Fatalf("fill 2: %v", err)
	}

	pos := tr.Position("ES")
	if !pos.NetQty.Equal(money.FromFloat(2)) {
		t.Fatalf("net qty = %s, want 2", pos.NetQty)
	}
	if !pos.AvgEntryPrice.Equal(money.FromFloat(101)) {
		t.Fatalf("avg entry = %s, want 101", pos.AvgEntryPrice)
	}

	o, _ := tr.Order("o1")
	if o.Status != StatusFilled {
		t.Fatalf("status = %s, want filled", o.Status)
	}

	// Close half the position for a realized gain.
	tr.RegisterOrder(Order{OrderID: "o2", Symbol: "ES", Side: "SELL", Qty: money.FromFloat(1)})
	if err := tr.ApplyFill(Fill{OrderID: "o2", Qty: money.FromFloat(1), Price: money.FromFloat(105)}); err != nil {
		t.Fatalf("closing fill: %v", err)
	}
	pos = tr.Position("ES")
	if !pos.NetQty.Equal(money.FromFloat(1)) {
		t.Fatalf("net qty after close = %s, want 1", pos.NetQty)
	}
	wantPnL := money.FromFloat(105).Sub(money.FromFloat(101))
	if !pos.RealizedPnL.Equal(wantPnL) {
		t.Fatalf("realized pnl = %s, want %s", pos.RealizedPnL, wantPnL)
	}
}

func TestApplyFillRejectsOverfill(t *testing.T) {
	tr := NewTracker("acct-1")
	tr.RegisterOrder(Order{OrderID: "o1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(1)})
	if err := tr.ApplyFill(Fill{OrderID: "o1", Qty: money.FromFloat(1), Price: money.FromFloat(100)}); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := tr.ApplyFill(Fill{OrderID: "o1", Qty: money.FromFloat(1), Price: money.FromFloat(100)}); err == nil {
		t.Fatal("expected no fills to land on a terminal order")
	}
}

func TestApplyFillRejectsExceedingOrderQty(t *testing.T) {
	tr := NewTracker("acct-1")
	tr.RegisterOrder(Order{OrderID: "o1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(1)})
	if err := tr.ApplyFill(Fill{OrderID: "o1", Qty: money.FromFloat(2), Price: money.FromFloat(100)}); err == nil {
		t.Fatal("expected overfill rejection")
	}
}

func TestPositionFlipsThroughZero(t *testing.T) {
	tr := NewTracker("acct-1")
	tr.RegisterOrder(Order{OrderID: "o1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(1)})
	_ = tr.ApplyFill(Fill{OrderID: "o1", Qty: money.FromFloat(1), Price: money.FromFloat(100)})

	tr.RegisterOrder(Order{OrderID: "o2", Symbol: "ES", Side: "SELL", Qty: money.FromFloat(3)})
	if err := tr.ApplyFill(Fill{OrderID: "o2", Qty: money.FromFloat(3), Price: money.FromFloat(110)}); err != nil {
		t.Fatalf("flip fill: %v", err)
	}
	pos := tr.Position("ES")
	if !pos.NetQty.Equal(money.FromFloat(-2)) {
		t.Fatalf("net qty after flip = %s, want -2", pos.NetQty)
	}
	if !pos.AvgEntryPrice.Equal(money.FromFloat(110)) {
		t.Fatalf("avg entry after flip = %s, want 110", pos.AvgEntryPrice)
	}
}
