package papersim

import (
	"math"
	"time"

	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
)

// liquidityFactor is the per-session table from spec §4.4. Closed-session
// orders never reach the matching formula — they are queued until the next
// session opens — so it carries no entry.
var liquidityFactor = map[ids.Session]float64{
	ids.SessionRegular:  1.0,
	ids.SessionExtended: 1.8,
}

// volatilityWindow implements the "last 30 seconds of observed range" input
// to the slippage formula (spec §4.4). One instance tracks one symbol.
type volatilityWindow struct {
	window time.Duration
	ticks  []priceTick
}

type priceTick struct {
	at    time.Time
	price money.D
}

func newVolatilityWindow() *volatilityWindow {
	return &volatilityWindow{window: 30 * time.Second}
}

// Observe records a new reference price at time now, dropping ticks that
// have fallen out of the rolling window.
func (v *volatilityWindow) Observe(now time.Time, price money.D) {
	v.ticks = append(v.ticks, priceTick{at: now, price: price})
	cutoff := now.Add(-v.window)
	i := 0
	for i < len(v.ticks) && v.ticks[i].at.Before(cutoff) {
		i++
	}
	v.ticks = v.ticks[i:]
}

// Multiplier derives volatility_mult from the tracked range, normalized by
// tickSize: fewer than two observations or a range of zero yields 1.0 (spec
// §4.4: "1.0 if unknown"), and each tick of range adds 0.1, capped at 5.0.
func (v *volatilityWindow) Multiplier(tickSize money.D) money.D {
	if len(v.ticks) < 2 || tickSize.IsZero() {
		return money.FromFloat(1)
	}
	lo, hi := v.ticks[0].price, v.ticks[0].price
	for _, t := range v.ticks[1:] {
		if t.price.LessThan(lo) {
			lo = t.price
		}
		if t.price.GreaterThan(hi) {
			hi = t.price
		}
	}
	rangeTicks, _ := hi.Sub(lo).Div(tickSize).Float64()
	mult := 1 + rangeTicks/10
	if mult < 1 {
		mult = 1
	}
	if mult > 5 {
		mult = 5
	}
	return money.FromFloat(mult)
}

// slippageTicks implements spec §4.4's
// base_slippage(symbol) * liquidity_factor * volatility_mult * sqrt(qty/avg_vol).
func slippageTicks(spec SymbolSpec, session ids.Session, volMult money.D, qty money.D) money.D {
	base, _ := spec.BaseSlippageTicks.Float64()
	liq := liquidityFactor[session]
	vol, _ := volMult.Float64()
	avgVol, _ := spec.AvgVolume.Float64()
	q, _ := qty.Float64()
	sizeRatio := 1.0
	if avgVol > 0 {
		sizeRatio = math.Sqrt(q / avgVol)
	}
	return money.FromFloat(base * liq * vol * sizeRatio)
}
