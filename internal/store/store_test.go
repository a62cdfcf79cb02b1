package store

import (
	"testing"
	"time"

	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/strategytracker"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", &ids.FixedClock{At: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAlertIsIdempotentOnDuplicateAlertID(t *testing.T) {
	s := testStore(t)
	a := alert.Alert{AlertID: "alert_1", Symbol: "ES", Action: alert.ActionBuy, Quantity: money.FromFloat(1), AccountGroup: "paper_simulator"}

	if err := s.RecordAlert(a); err != nil {
		t.Fatalf("record alert: %v", err)
	}
	if err := s.RecordAlert(a); err != nil {
		t.Fatalf("record alert (retry): %v", err)
	}

	rows, err := s.LoadAlerts()
	if err != nil {
		t.Fatalf("load alerts: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d alert rows, want 1", len(rows))
	}
}

func TestLoadLatestOrdersFoldsToHighestSeq(t *testing.T) {
	s := testStore(t)
	base := broker.Order{OrderID: "ord_1", AccountID: "acct-1", Symbol: "ES", Side: "BUY", Qty: money.FromFloat(2)}

	pending := base
	pending.Status = broker.StatusPending
	if err := s.RecordOrderEvent(pending); err != nil {
		t.Fatalf("record pending: %v", err)
	}

	filled := base
	filled.Status = broker.StatusFilled
	filled.FilledQty = money.FromFloat(2)
	filled.AvgFillPrice = money.FromFloat(5000)
	if err := s.RecordOrderEvent(filled); err != nil {
		t.Fatalf("record filled: %v", err)
	}

	rows, err := s.LoadLatestOrders()
	if err != nil {
		t.Fatalf("load latest orders: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d order rows, want 1", len(rows))
	}
	if rows[0].Status != string(broker.StatusFilled) {
		t.Fatalf("got status %s, want filled", rows[0].Status)
	}
	if !rows[0].FilledQty.Equal(money.FromFloat(2)) {
		t.Fatalf("got filled qty %s, want 2", rows[0].FilledQty)
	}
}

func TestRecordFillIsIdempotentOnDuplicateFillID(t *testing.T) {
	s := testStore(t)
	f := broker.Fill{FillID: "fill_1", OrderID: "ord_1", Qty: money.FromFloat(1), Price: money.FromFloat(5000)}

	if err := s.RecordFill("acct-1", f); err != nil {
		t.Fatalf("record fill: %v", err)
	}
	if err := s.RecordFill("acct-1", f); err != nil {
		t.Fatalf("record fill (retry): %v", err)
	}

	rows, err := s.LoadFills("ord_1")
	if err != nil {
		t.Fatalf("load fills: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d fill rows, want 1", len(rows))
	}
}

func TestStrategySnapshotsFoldToLatestPerStrategy(t *testing.T) {
	s := testStore(t)
	if err := s.RecordStrategySnapshot("strat-1", strategytracker.ModePaper, 1, 5); err != nil {
		t.Fatalf("record snapshot 1: %v", err)
	}
	if err := s.RecordStrategySnapshot("strat-1", strategytracker.ModeLive, 2, 30); err != nil {
		t.Fatalf("record snapshot 2: %v", err)
	}

	latest, err := s.LoadStrategySnapshots()
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	got, ok := latest["strat-1"]
	if !ok {
		t.Fatal("expected a snapshot for strat-1")
	}
	if got.Mode != string(strategytracker.ModeLive) || got.LifetimePaper != 30 {
		t.Fatalf("got %+v, want mode=live lifetime_paper=30", got)
	}
}

func TestModeTransitionsAreAppendOnly(t *testing.T) {
	s := testStore(t)
	tr := strategytracker.ModeTransition{From: strategytracker.ModeLive, To: strategytracker.ModePaper, Reason: "poor_win_rate", SetNumber: 4}
	if err := s.RecordModeTransition("strat-1", tr); err != nil {
		t.Fatalf("record transition: %v", err)
	}

	rows, err := s.LoadModeTransitions("strat-1")
	if err != nil {
		t.Fatalf("load transitions: %v", err)
	}
	if len(rows) != 1 || rows[0].ToMode != string(strategytracker.ModePaper) {
		t.Fatalf("got %+v, want one transition to paper", rows)
	}
}

func TestRecordRiskViolationPersistsRejection(t *testing.T) {
	s := testStore(t)
	r := funded.Result{Verdict: funded.VerdictViolate, Reason: "daily_loss_cap"}
	if err := s.RecordRiskViolation("acct-1", "ES", money.FromFloat(3), r); err != nil {
		t.Fatalf("record violation: %v", err)
	}

	rows, err := s.LoadRiskViolations("acct-1")
	if err != nil {
		t.Fatalf("load violations: %v", err)
	}
	if len(rows) != 1 || rows[0].Reason != "daily_loss_cap" {
		t.Fatalf("got %+v, want one daily_loss_cap violation", rows)
	}
}
