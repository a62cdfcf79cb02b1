// Package alert defines the canonical, immutable ingress record that flows
// from the webhook handler through the router.
package alert

import (
	"fmt"
	"time"

	"github.com/traderterminal/core/internal/money"
)

// Action enumerates the canonical alert actions.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
	ActionExit  Action = "exit"
)

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionClose, ActionExit:
		return true
	default:
		return false
	}
}

// OrderType enumerates the canonical order types an alert may request.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
		return true
	default:
		return false
	}
}

// Alert is the immutable, validated ingress record described in spec §3.
// alert_id is content-addressed (see internal/ids.AlertID) so retries of the
// same webhook payload within the idempotency window are safe to replay.
type Alert struct {
	AlertID      string
	ReceivedAt   time.Time
	SourceIP     string
	Symbol       string
	Action       Action
	Quantity     money.D
	OrderType    OrderType
	Price        *money.D
	StopPrice    *money.D
	AccountGroup string
	StrategyID   string
	Timeframe    string
	Comment      string
	Extras       map[string]any
	PayloadHash  string
}

// Validate enforces the field invariants named in spec §3: quantity > 0 and
// action/order_type within their enums.
func (a Alert) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !a.Action.Valid() {
		return fmt.Errorf("invalid action %q", a.Action)
	}
	if a.Quantity.Sign() <= 0 {
		return fmt.Errorf("quantity must be > 0, got %s", a.Quantity.String())
	}
	if a.OrderType != "" && !a.OrderType.Valid() {
		return fmt.Errorf("invalid order_type %q", a.OrderType)
	}
	if a.AccountGroup == "" {
		return fmt.Errorf("account_group is required")
	}
	return nil
}
