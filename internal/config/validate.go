package config

import (
	"fmt"
	"strings"
)

// Validate checks high-impact runtime configuration constraints, adapted
// from the teacher's config.Validate.
func (c Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.TradingMode))
	if mode != "" && mode != "paper" && mode != "live" {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}

	if c.AccountGroupsFile == "" {
		return fmt.Errorf("account_groups_file is required")
	}

	if c.Ingress.RateLimitPerMinute <= 0 {
		return fmt.Errorf("ingress.rate_limit_per_minute must be > 0, got %d", c.Ingress.RateLimitPerMinute)
	}
	if c.Ingress.RateLimitBurst <= 0 {
		return fmt.Errorf("ingress.rate_limit_burst must be > 0, got %d", c.Ingress.RateLimitBurst)
	}
	if c.Ingress.MaxBodyBytes <= 0 {
		return fmt.Errorf("ingress.max_body_bytes must be > 0, got %d", c.Ingress.MaxBodyBytes)
	}
	if c.Ingress.QueueCapacity <= 0 {
		return fmt.Errorf("ingress.queue_capacity must be > 0, got %d", c.Ingress.QueueCapacity)
	}
	if c.Ingress.ReplayWindow <= 0 {
		return fmt.Errorf("ingress.replay_window must be > 0, got %s", c.Ingress.ReplayWindow)
	}
	if c.Ingress.IdempotencyWindow <= 0 {
		return fmt.Errorf("ingress.idempotency_window must be > 0, got %s", c.Ingress.IdempotencyWindow)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if c.Papersim.InitialBalanceUSD <= 0 {
		return fmt.Errorf("papersim.initial_balance_usd must be > 0, got %f", c.Papersim.InitialBalanceUSD)
	}

	st := c.StrategyTracker
	if st.SetSize <= 0 {
		return fmt.Errorf("strategy_tracker.set_size must be > 0, got %d", st.SetSize)
	}
	if st.EvaluationWindow <= 0 {
		return fmt.Errorf("strategy_tracker.evaluation_window must be > 0, got %d", st.EvaluationWindow)
	}
	if st.MinWinRate < 0 || st.MinWinRate > 1 {
		return fmt.Errorf("strategy_tracker.min_win_rate must be within [0,1], got %f", st.MinWinRate)
	}
	if st.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("strategy_tracker.consecutive_failure_threshold must be > 0, got %d", st.ConsecutiveFailureThreshold)
	}
	if st.ConsecutiveSuccessThreshold <= 0 {
		return fmt.Errorf("strategy_tracker.consecutive_success_threshold must be > 0, got %d", st.ConsecutiveSuccessThreshold)
	}
	if st.MinLifetimePaperTrades < 0 {
		return fmt.Errorf("strategy_tracker.min_lifetime_paper_trades must be >= 0, got %d", st.MinLifetimePaperTrades)
	}

	for acctID, rules := range c.FundedAccounts {
		if rules.MaxContracts < 0 {
			return fmt.Errorf("funded_accounts.%s.max_contracts must be >= 0, got %f", acctID, rules.MaxContracts)
		}
		if rules.MaxConcurrentPositions < 0 {
			return fmt.Errorf("funded_accounts.%s.max_concurrent_positions must be >= 0, got %d", acctID, rules.MaxConcurrentPositions)
		}
	}

	return nil
}
