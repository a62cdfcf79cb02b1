package config

import "testing"

func TestApplyRolloutPhasePaper(t *testing.T) {
	cfg := Default()
	cfg.TradingMode = "live"
	cfg.DryRun = true

	if err := ApplyRolloutPhase(&cfg, "paper"); err != nil {
		t.Fatalf("ApplyRolloutPhase: %v", err)
	}
	if cfg.TradingMode != "paper" {
		t.Fatalf("expected paper mode, got %q", cfg.TradingMode)
	}
	if cfg.DryRun {
		t.Fatal("expected dry_run=false for paper phase")
	}
}

func TestApplyRolloutPhaseShadow(t *testing.T) {
	cfg := Default()
	cfg.TradingMode = "paper"
	cfg.DryRun = false

	if err := ApplyRolloutPhase(&cfg, "shadow"); err != nil {
		t.Fatalf("ApplyRolloutPhase: %v", err)
	}
	if cfg.TradingMode != "live" {
		t.Fatalf("expected live mode, got %q", cfg.TradingMode)
	}
	if !cfg.DryRun {
		t.Fatal("expected dry_run=true for shadow phase")
	}
}

func TestApplyRolloutPhaseLiveSmallClampsFundedAccounts(t *testing.T) {
	cfg := Default()
	cfg.FundedAccounts = map[string]FundedRulesConfig{
		"topstep-1": {MaxContracts: 10},
		"apex-2":    {MaxContracts: 0},
	}

	if err := ApplyRolloutPhase(&cfg, "live-small"); err != nil {
		t.Fatalf("ApplyRolloutPhase: %v", err)
	}
	if cfg.TradingMode != "live" || cfg.DryRun {
		t.Fatalf("expected live/dry_run=false, got mode=%q dry_run=%v", cfg.TradingMode, cfg.DryRun)
	}
	if cfg.FundedAccounts["topstep-1"].MaxContracts != 1 {
		t.Fatalf("expected topstep-1 clamped to 1, got %f", cfg.FundedAccounts["topstep-1"].MaxContracts)
	}
	if cfg.FundedAccounts["apex-2"].MaxContracts != 1 {
		t.Fatalf("expected apex-2 (<=0 after clamp rule) raised to 1, got %f", cfg.FundedAccounts["apex-2"].MaxContracts)
	}
}

func TestApplyRolloutPhaseLive(t *testing.T) {
	cfg := Default()
	cfg.TradingMode = "paper"
	cfg.DryRun = true

	if err := ApplyRolloutPhase(&cfg, "live"); err != nil {
		t.Fatalf("ApplyRolloutPhase: %v", err)
	}
	if cfg.TradingMode != "live" {
		t.Fatalf("expected live mode, got %q", cfg.TradingMode)
	}
	if cfg.DryRun {
		t.Fatal("expected dry_run=false for live phase")
	}
}

func TestApplyRolloutPhaseUnknown(t *testing.T) {
	cfg := Default()
	if err := ApplyRolloutPhase(&cfg, "unknown-phase"); err == nil {
		t.Fatal("expected error for unknown rollout phase")
	}
}
