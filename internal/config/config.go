// Package config loads the engine's YAML configuration and overlays
// environment variables on top of it, in the teacher's config.go pattern
// (internal/_ref_config/config.go): a Default(), a LoadFile(path), and an
// ApplyEnv() that lets deployment secrets and overrides win over the file.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	TradingMode  string `yaml:"trading_mode"` // paper | live; logged at startup, not read by the router
	DryRun       bool   `yaml:"dry_run"`

	AccountGroupsFile string `yaml:"account_groups_file"`

	Ingress         IngressConfig         `yaml:"ingress"`
	Store           StoreConfig           `yaml:"store"`
	API             APIConfig             `yaml:"api"`
	Telegram        TelegramConfig        `yaml:"telegram"`
	Papersim        PapersimConfig        `yaml:"papersim"`
	StrategyTracker StrategyTrackerConfig `yaml:"strategy_tracker"`
	FundedAccounts  map[string]FundedRulesConfig `yaml:"funded_accounts"`
}

// IngressConfig mirrors internal/ingress.Config.
type IngressConfig struct {
	SharedSecret       string        `yaml:"shared_secret"`
	ReplayWindow       time.Duration `yaml:"replay_window"`
	IdempotencyWindow  time.Duration `yaml:"idempotency_window"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	QueueCapacity      int           `yaml:"queue_capacity"`
}

// StoreConfig points at the SQLite WAL-ordered event log.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// APIConfig configures the REST control-plane surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// TelegramConfig configures operator notifications.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// PapersimConfig configures the paper-trading account seeded on startup.
type PapersimConfig struct {
	InitialBalanceUSD float64                    `yaml:"initial_balance_usd"`
	Symbols           map[string]SymbolSpecConfig `yaml:"symbols"`
}

// SymbolSpecConfig mirrors internal/papersim.SymbolSpec with plain float64
// fields for YAML ergonomics; internal/config converts these to decimal.
type SymbolSpecConfig struct {
	AssetClass        string  `yaml:"asset_class"`
	TickSize          float64 `yaml:"tick_size"`
	BaseSlippageTicks float64 `yaml:"base_slippage_ticks"`
	AvgVolume         float64 `yaml:"avg_volume"`
	Multiplier        float64 `yaml:"multiplier"`
	CommissionPerUnit float64 `yaml:"commission_per_unit"`
	CommissionMin     float64 `yaml:"commission_min"`
	FeePerUnit        float64 `yaml:"fee_per_unit"`
}

// StrategyTrackerConfig mirrors internal/strategytracker.Config.
type StrategyTrackerConfig struct {
	SetSize                     int           `yaml:"set_size"`
	EvaluationWindow            int           `yaml:"evaluation_window"`
	MinWinRate                  float64       `yaml:"min_win_rate"`
	ConsecutiveFailureThreshold int           `yaml:"consecutive_failure_threshold"`
	ConsecutiveSuccessThreshold int           `yaml:"consecutive_success_threshold"`
	MinLifetimePaperTrades      int           `yaml:"min_lifetime_paper_trades"`
}

// FundedRulesConfig mirrors internal/funded.Rules with YAML-friendly types.
type FundedRulesConfig struct {
	MaxDailyLoss           float64          `yaml:"max_daily_loss"`
	TrailingDrawdownLimit  float64          `yaml:"trailing_drawdown_limit"`
	MaxContracts           float64          `yaml:"max_contracts"`
	MaxConcurrentPositions int              `yaml:"max_concurrent_positions"`
	AllowedHours           []TimeWindowYAML `yaml:"allowed_hours"`
	RestrictedSymbols      []string         `yaml:"restricted_symbols"`
	NewsBlackoutEnabled    bool             `yaml:"news_blackout_enabled"`
}

// TimeWindowYAML is an [open, close) window expressed as "HH:MM" strings.
type TimeWindowYAML struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// Default returns the engine's baseline configuration, matching the
// teacher's convention of a conservative, paper-mode-first default.
func Default() Config {
	return Config{
		LogLevel:    "info",
		TradingMode: "paper",
		DryRun:      true,
		Ingress: IngressConfig{
			ReplayWindow:       5 * time.Minute,
			IdempotencyWindow:  24 * time.Hour,
			RateLimitPerMinute: 50,
			RateLimitBurst:     10,
			MaxBodyBytes:       64 * 1024,
			QueueCapacity:      1024,
		},
		Store: StoreConfig{
			Path: "data/terminal.db",
		},
		API: APIConfig{
			Addr: ":8080",
		},
		Papersim: PapersimConfig{
			InitialBalanceUSD: 50000,
		},
		StrategyTracker: StrategyTrackerConfig{
			SetSize:                     20,
			EvaluationWindow:            20,
			MinWinRate:                  0.40,
			ConsecutiveFailureThreshold: 3,
			ConsecutiveSuccessThreshold: 3,
			MinLifetimePaperTrades:      100,
		},
	}
}

// LoadFile reads a YAML config file, overlaying it onto Default().
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays deployment environment variables onto cfg, winning over
// whatever the YAML file set. Credential material belongs in internal/creds,
// not here; these are operational knobs only.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TERMINAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINAL_TRADING_MODE")); v != "" {
		c.TradingMode = strings.ToLower(v)
	}
	if v := os.Getenv("TERMINAL_DRY_RUN"); v != "" {
		c.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("TERMINAL_ACCOUNT_GROUPS_FILE"); v != "" {
		c.AccountGroupsFile = v
	}
	if v := os.Getenv("TERMINAL_INGRESS_SHARED_SECRET"); v != "" {
		c.Ingress.SharedSecret = v
	}
	if v := os.Getenv("TERMINAL_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("TERMINAL_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
		c.Telegram.Enabled = true
	}
}
