// Package store implements the C10 persistence layer (spec §4.7): an
// append-only, WAL-ordered record of every alert, order-state transition,
// fill, strategy snapshot, mode transition, and risk violation the engine
// produces. Every table carries a monotonic Seq (the gorm auto-increment
// primary key) so startup replay can fold a stream down to its latest state
// by taking the highest Seq per entity, the same pattern the teacher uses
// for its own SQLite-backed trade ledger.
package store

import (
	"time"

	"github.com/traderterminal/core/internal/money"
)

// AlertRecord is the immutable ingress record, one row per accepted alert.
type AlertRecord struct {
	Seq          uint64 `gorm:"primaryKey;autoIncrement"`
	AlertID      string `gorm:"uniqueIndex"`
	ReceivedAt   time.Time
	SourceIP     string
	Symbol       string
	Action       string
	Quantity     money.D `gorm:"type:decimal(20,8)"`
	OrderType    string
	Price        *money.D `gorm:"type:decimal(20,8)"`
	StopPrice    *money.D `gorm:"type:decimal(20,8)"`
	AccountGroup string   `gorm:"index"`
	StrategyID   string   `gorm:"index"`
	Timeframe    string
	Comment      string
	PayloadHash  string
}

// OrderRecord is one snapshot of an order's state. An order that transitions
// pending -> working -> filled produces three rows sharing OrderID; replay
// folds to the row with the highest Seq per OrderID.
type OrderRecord struct {
	Seq          uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID      string `gorm:"index"`
	AlertID      string `gorm:"index"`
	StrategyID   string `gorm:"index"`
	AccountID    string `gorm:"index"`
	Backend      string
	Symbol       string
	Side         string
	Qty          money.D `gorm:"type:decimal(20,8)"`
	Type         string
	Limit        *money.D `gorm:"type:decimal(20,8)"`
	Stop         *money.D `gorm:"type:decimal(20,8)"`
	Status       string   `gorm:"index"`
	FilledQty    money.D  `gorm:"type:decimal(20,8)"`
	AvgFillPrice money.D  `gorm:"type:decimal(20,8)"`
	ModeOverride bool
	RecordedAt   time.Time
}

// FillRecord is one atomic execution against an order.
type FillRecord struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	FillID     string `gorm:"uniqueIndex"`
	OrderID    string `gorm:"index"`
	AccountID  string `gorm:"index"`
	Qty        money.D `gorm:"type:decimal(20,8)"`
	Price      money.D `gorm:"type:decimal(20,8)"`
	Commission money.D `gorm:"type:decimal(20,8)"`
	Fees       money.D `gorm:"type:decimal(20,8)"`
	Slippage   money.D `gorm:"type:decimal(20,8)"`
	Ts         time.Time
}

// StrategySnapshotRecord captures a strategy tracker's state at a point in
// time; replay folds to the highest-Seq row per StrategyID to restore a
// tracker's mode without replaying its entire trade history.
type StrategySnapshotRecord struct {
	Seq           uint64 `gorm:"primaryKey;autoIncrement"`
	StrategyID    string `gorm:"index"`
	Mode          string
	SetNumber     int
	LifetimePaper int
	RecordedAt    time.Time
}

// ModeTransitionRecord is an append-only log of every mode change or
// eligibility signal a strategy tracker emits.
type ModeTransitionRecord struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	StrategyID string `gorm:"index"`
	FromMode   string
	ToMode     string
	Reason     string
	SetNumber  int
	Eligible   bool
	At         time.Time
}

// RiskViolationRecord is an append-only log of every non-ok funded-account
// rule-engine verdict, kept for audit even when the order it blocked never
// reached a backend.
type RiskViolationRecord struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"index"`
	Symbol    string
	Qty       money.D `gorm:"type:decimal(20,8)"`
	Verdict   string
	Reason    string
	At        time.Time
}
