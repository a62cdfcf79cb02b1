package broker

import (
	"time"

	"github.com/traderterminal/core/internal/money"
)

// OrderStatus is the lifecycle state of an Order (spec §3).
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusWorking   OrderStatus = "working"
	StatusPartial   OrderStatus = "partial"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
	StatusExpired   OrderStatus = "expired"
)

// Terminal reports whether status is a terminal state; once terminal, no
// further fills may ever appear against the order (spec §8 invariant).
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// Order is a request submitted to a backend (spec §3).
type Order struct {
	OrderID       string
	AlertID       string
	StrategyID    string
	AccountID     string
	Backend       string
	Symbol        string
	Side          string // BUY | SELL
	Qty           money.D
	Type          string // market | limit | stop | stop_limit
	Limit         *money.D
	Stop          *money.D
	Status        OrderStatus
	FilledQty     money.D
	AvgFillPrice  money.D
	ModeOverride  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fill is a single atomic execution against an order (spec §3).
type Fill struct {
	FillID     string
	OrderID    string
	Qty        money.D
	Price      money.D
	Commission money.D
	Fees       money.D
	Slippage   money.D
	Ts         time.Time
}

// Position is the derived per (account, symbol) holding (spec §3).
type Position struct {
	AccountID     string
	Symbol        string
	NetQty        money.D
	AvgEntryPrice money.D
	RealizedPnL   money.D
	Multiplier    money.D
	TotalFills    int
}

// UnrealizedPnL computes mark-to-market P&L given the current mark price.
func (p Position) UnrealizedPnL(mark money.D) money.D {
	mult := p.Multiplier
	if mult.IsZero() {
		mult = money.FromFloat(1)
	}
	return mark.Sub(p.AvgEntryPrice).Mul(p.NetQty).Mul(mult)
}

// AccountSnapshot is the read-through-cached view of an externally owned
// broker account (spec §3: "externally owned resources ... are
// read-through-cached and reconciled on reconnect").
type AccountSnapshot struct {
	AccountID   string
	BalanceUSD  money.D
	BuyingPower money.D
	Positions   map[string]Position
	AsOf        time.Time
}

// Health reports adapter connectivity (spec §4.3).
type Health struct {
	Connected bool
	LastOK    time.Time
	LastError string
}

// CancelResult enumerates cancel() outcomes (spec §4.3).
type CancelResult string

const (
	CancelOK             CancelResult = "ok"
	CancelNotFound       CancelResult = "not_found"
	CancelAlreadyTerminal CancelResult = "already_terminal"
)
