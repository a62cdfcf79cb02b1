package broker

import (
	"context"
	"testing"

	"github.com/traderterminal/core/internal/money"
)

func TestSubmitIsIdempotentOnRetry(t *testing.T) {
	a := NewStubAdapter(BackendTradovate, nil)
	order := Order{AccountID: "acct-1", AlertID: "alert-1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(1)}

	ack1, err := a.Submit(context.Background(), order)
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	ack2, err := a.Submit(context.Background(), order)
	if err != nil {
		t.Fatalf("submit 2 (retry): %v", err)
	}
	if ack1.OrderID != ack2.OrderID {
		t.Fatalf("retry produced a different order: %s vs %s", ack1.OrderID, ack2.OrderID)
	}
}

func TestCancelTerminalOrder(t *testing.T) {
	a := NewStubAdapter(BackendSchwab, nil)
	order := Order{AccountID: "acct-1", AlertID: "alert-1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(1)}
	ack, _ := a.Submit(context.Background(), order)

	tracker := a.trackerFor("acct-1")
	_ = tracker.ApplyFill(Fill{OrderID: ack.OrderID, Qty: money.FromFloat(1), Price: money.FromFloat(100)})

	res, err := a.Cancel(context.Background(), ack.OrderID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res != CancelAlreadyTerminal {
		t.Fatalf("cancel result = %s, want already_terminal", res)
	}
}

func TestCancelNotFound(t *testing.T) {
	a := NewStubAdapter(BackendSchwab, nil)
	res, err := a.Cancel(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res != CancelNotFound {
		t.Fatalf("cancel result = %s, want not_found", res)
	}
}
