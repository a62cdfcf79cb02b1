package config

import "testing"

func TestFundedRulesConfigConvertsAllowedHours(t *testing.T) {
	c := FundedRulesConfig{
		MaxContracts:           5,
		MaxConcurrentPositions: 2,
		RestrictedSymbols:      []string{"NQ", "RTY"},
		AllowedHours:           []TimeWindowYAML{{Open: "09:30", Close: "16:00"}},
	}
	rules, err := c.ToFundedRules()
	if err != nil {
		t.Fatalf("ToFundedRules: %v", err)
	}
	if len(rules.AllowedHours) != 1 {
		t.Fatalf("got %d allowed hours, want 1", len(rules.AllowedHours))
	}
	if rules.AllowedHours[0].OpenMinute != 9*60+30 || rules.AllowedHours[0].CloseMinute != 16*60 {
		t.Fatalf("got %+v, want 09:30-16:00 in minutes", rules.AllowedHours[0])
	}
	if !rules.RestrictedSymbols["NQ"] || !rules.RestrictedSymbols["RTY"] {
		t.Fatalf("got %+v, want NQ and RTY restricted", rules.RestrictedSymbols)
	}
}

func TestFundedRulesConfigRejectsBadTimeFormat(t *testing.T) {
	c := FundedRulesConfig{AllowedHours: []TimeWindowYAML{{Open: "930", Close: "16:00"}}}
	if _, err := c.ToFundedRules(); err == nil {
		t.Fatal("expected an error for a malformed open time")
	}
}

func TestPapersimConfigConvertsSymbolSpecs(t *testing.T) {
	c := PapersimConfig{
		InitialBalanceUSD: 50000,
		Symbols: map[string]SymbolSpecConfig{
			"ES": {AssetClass: "futures", TickSize: 0.25, AvgVolume: 1000, Multiplier: 50},
		},
	}
	cfg := c.ToPapersimConfig()
	if !cfg.InitialBalance.Equal(cfg.InitialBalance) {
		t.Fatal("sanity check failed")
	}
	spec, ok := cfg.Specs["ES"]
	if !ok {
		t.Fatal("expected an ES spec")
	}
	if spec.TickSize.InexactFloat64() != 0.25 {
		t.Fatalf("got tick size %s, want 0.25", spec.TickSize)
	}
}
