package config

import (
	"fmt"
	"strings"
)

// ApplyRolloutPhase applies a staged rollout preset to cfg, the same
// staged-promotion idiom as the teacher's ApplyRolloutPhase but setting
// this engine's trading_mode/dry_run flags rather than a single strategy's
// order sizing. Supported phases:
//   - paper:      trading_mode=paper, dry_run off
//   - shadow:     trading_mode=live, dry_run on
//   - live-small: trading_mode=live, dry_run off, every funded account's
//     max_contracts clamped to 1 (an unset value also becomes 1)
//   - live:       trading_mode=live, dry_run off, per-account values as-is
// The router reads neither flag: alerts are routed by account group and
// strategy mode in every phase. cmd/terminal logs both at startup and
// skips the shutdown flatten when dry_run is on.
func ApplyRolloutPhase(cfg *Config, phase string) error {
	p := strings.ToLower(strings.TrimSpace(phase))
	if p == "" {
		return nil
	}

	switch p {
	case "paper":
		cfg.TradingMode = "paper"
		cfg.DryRun = false
	case "shadow", "live-dryrun", "live-dry-run":
		cfg.TradingMode = "live"
		cfg.DryRun = true
	case "live-small", "small":
		cfg.TradingMode = "live"
		cfg.DryRun = false
		for id, rules := range cfg.FundedAccounts {
			clampMaxFloat(&rules.MaxContracts, 1)
			cfg.FundedAccounts[id] = rules
		}
	case "live":
		cfg.TradingMode = "live"
		cfg.DryRun = false
	default:
		return fmt.Errorf("unknown rollout phase %q (supported: paper|shadow|live-small|live)", phase)
	}

	return nil
}

func clampMaxFloat(v *float64, max float64) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}
