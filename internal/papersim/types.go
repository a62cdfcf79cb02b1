// Package papersim implements the in-process deterministic matching engine
// (spec §4.4) behind the same broker.Capability interface a live venue
// adapter implements, so the router cannot distinguish a paper fill from a
// live one. Adapted from the teacher's internal/paper/simulator.go, which
// modeled a single AMM asset priced in USDC; generalized here to a
// multi-account, multi-symbol, multi-session futures/equity book with
// session-aware liquidity, volatility-scaled slippage, and per-asset-class
// commission tables.
package papersim

import (
	"github.com/traderterminal/core/internal/money"
)

// AssetClass selects the commission/fee convention applied to a fill.
type AssetClass string

const (
	AssetClassFutures AssetClass = "futures"
	AssetClassEquity  AssetClass = "equity"
)

// SymbolSpec carries the per-symbol constants the matching formula needs.
// Populated from configuration at startup; there is no discovery of these
// from a live venue since the simulator never talks to one.
type SymbolSpec struct {
	AssetClass        AssetClass
	TickSize          money.D
	BaseSlippageTicks money.D
	AvgVolume         money.D // reference trade size for the sqrt(qty/avg_vol) term
	Multiplier        money.D // contract multiplier; 1 for equities
	CommissionPerUnit money.D // per-contract (futures) or per-share (equities)
	CommissionMin     money.D // equities-style minimum ticket commission; zero for futures
	FeePerUnit        money.D // regulatory + exchange fees, flat per unit
}

// Quote is the latest observed top-of-book for a symbol.
type Quote struct {
	Bid money.D
	Ask money.D
}

// Mid returns the reference match price p_ref.
func (q Quote) Mid() money.D {
	return q.Bid.Add(q.Ask).Div(money.FromFloat(2))
}

// Config configures one Simulator instance (spec §4.4, §9 reset semantics).
type Config struct {
	InitialBalance money.D
	Specs          map[string]SymbolSpec
}
