package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/papersim"
	"github.com/traderterminal/core/internal/strategytracker"
)

// ToFundedRules converts the YAML-friendly FundedRulesConfig into
// internal/funded.Rules, the shape the rule engine actually evaluates
// against.
func (c FundedRulesConfig) ToFundedRules() (funded.Rules, error) {
	rules := funded.Rules{
		MaxDailyLoss:           money.FromFloat(c.MaxDailyLoss),
		TrailingDrawdownLimit:  money.FromFloat(c.TrailingDrawdownLimit),
		MaxContracts:           money.FromFloat(c.MaxContracts),
		MaxConcurrentPositions: c.MaxConcurrentPositions,
		NewsBlackoutEnabled:    c.NewsBlackoutEnabled,
	}
	if len(c.RestrictedSymbols) > 0 {
		rules.RestrictedSymbols = make(map[string]bool, len(c.RestrictedSymbols))
		for _, sym := range c.RestrictedSymbols {
			rules.RestrictedSymbols[sym] = true
		}
	}
	for _, w := range c.AllowedHours {
		open, err := parseHHMM(w.Open)
		if err != nil {
			return funded.Rules{}, fmt.Errorf("allowed_hours.open: %w", err)
		}
		closeMin, err := parseHHMM(w.Close)
		if err != nil {
			return funded.Rules{}, fmt.Errorf("allowed_hours.close: %w", err)
		}
		rules.AllowedHours = append(rules.AllowedHours, funded.TimeWindow{OpenMinute: open, CloseMinute: closeMin})
	}
	return rules, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	return h*60 + m, nil
}

// ToPapersimConfig converts PapersimConfig into internal/papersim.Config.
func (c PapersimConfig) ToPapersimConfig() papersim.Config {
	cfg := papersim.Config{
		InitialBalance: money.FromFloat(c.InitialBalanceUSD),
		Specs:          make(map[string]papersim.SymbolSpec, len(c.Symbols)),
	}
	for symbol, s := range c.Symbols {
		cfg.Specs[symbol] = papersim.SymbolSpec{
			AssetClass:        papersim.AssetClass(s.AssetClass),
			TickSize:          money.FromFloat(s.TickSize),
			BaseSlippageTicks: money.FromFloat(s.BaseSlippageTicks),
			AvgVolume:         money.FromFloat(s.AvgVolume),
			Multiplier:        money.FromFloat(s.Multiplier),
			CommissionPerUnit: money.FromFloat(s.CommissionPerUnit),
			CommissionMin:     money.FromFloat(s.CommissionMin),
			FeePerUnit:        money.FromFloat(s.FeePerUnit),
		}
	}
	return cfg
}

// ToStrategyTrackerConfig converts StrategyTrackerConfig into
// internal/strategytracker.Config.
func (c StrategyTrackerConfig) ToStrategyTrackerConfig() strategytracker.Config {
	return strategytracker.Config{
		SetSize:                     c.SetSize,
		EvaluationWindow:            c.EvaluationWindow,
		MinWinRate:                  c.MinWinRate,
		ConsecutiveFailureThreshold: c.ConsecutiveFailureThreshold,
		ConsecutiveSuccessThreshold: c.ConsecutiveSuccessThreshold,
		MinLifetimePaperTrades:      c.MinLifetimePaperTrades,
	}
}
