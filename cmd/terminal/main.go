// Command terminal is the engine's real entrypoint: it wires every
// component — ingress, router, funded rule engine, strategy tracker,
// broker registry, paper simulator, event bus, persistence, notifications,
// and the REST control plane — into one running process. Adapted from the
// teacher's cmd/_ref_trader wiring idiom (flag-based config path, signal
// handling, a shutdown label that flattens/cancels before exit), rewired
// around this engine's webhook-driven dispatch loop instead of a WS
// orderbook polling loop.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/traderterminal/core/internal/accountgroup"
	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/api"
	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/config"
	"github.com/traderterminal/core/internal/creds"
	"github.com/traderterminal/core/internal/errs"
	"github.com/traderterminal/core/internal/eventbus"
	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/ingress"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/notify"
	"github.com/traderterminal/core/internal/papersim"
	"github.com/traderterminal/core/internal/router"
	"github.com/traderterminal/core/internal/store"
	"github.com/traderterminal/core/internal/strategytracker"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	rollout := flag.String("rollout", "", "optional rollout phase override: paper|shadow|live-small|live")
	credsFile := flag.String("creds-file", "", "path to the encrypted credential file written by setup-keys (optional)")
	flag.Parse()

	setupLogging()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *cfgPath).Msg("config file unreadable, falling back to defaults")
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	if *rollout != "" {
		if err := config.ApplyRolloutPhase(&cfg, *rollout); err != nil {
			log.Fatal().Err(err).Msg("invalid rollout phase")
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	applyLogLevel(cfg.LogLevel)

	log.Info().Str("trading_mode", cfg.TradingMode).Bool("dry_run", cfg.DryRun).Msg("terminal starting")

	if *credsFile != "" {
		passphrase := os.Getenv("TERMINAL_CREDS_PASSPHRASE")
		if passphrase == "" {
			log.Fatal().Msg("TERMINAL_CREDS_PASSPHRASE is required when -creds-file is set")
		}
		if _, err := creds.New(*credsFile, passphrase); err != nil {
			log.Fatal().Err(err).Msg("open credential store")
		}
		log.Info().Str("file", *credsFile).Msg("credential store opened")
	}

	groups, err := accountgroup.Load(cfg.AccountGroupsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.AccountGroupsFile).Msg("load account groups")
	}

	clock := ids.RealClock{}

	backends := broker.NewRegistry()
	registerBackends(backends, groups, clock)

	paperCfg := cfg.Papersim.ToPapersimConfig()
	paperSim := papersim.New(paperCfg, clock, ids.DefaultEquitySession)
	backends.Register(paperSim)

	fundedStore := funded.NewAccountStore()
	seedFundedAccounts(fundedStore, groups, cfg)

	st, err := store.Open(cfg.Store.Path, clock)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("open store")
	}
	defer st.Close()

	bus := eventbus.New(clock)
	bus.OnLagged = func(topic, subscriberID string) {
		log.Warn().Str("topic", topic).Str("subscriber", subscriberID).Msg("subscriber dropped for lagging")
	}

	notifier, err := notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("create telegram notifier")
	}
	if notifier.Enabled() {
		log.Info().Msg("telegram notifications enabled")
	}

	strategies := strategytracker.NewRegistry(cfg.StrategyTracker.ToStrategyTrackerConfig(), clock)
	strategies.OnModeChange = func(strategyID string, t strategytracker.ModeTransition) {
		if err := st.RecordModeTransition(strategyID, t); err != nil {
			log.Error().Err(err).Str("strategy_id", strategyID).Msg("persist mode transition")
		}
		if tr, ok := strategies.Lookup(strategyID); ok {
			if err := st.RecordStrategySnapshot(strategyID, tr.Mode(), t.SetNumber, tr.LifetimePaperTrades()); err != nil {
				log.Error().Err(err).Str("strategy_id", strategyID).Msg("persist strategy snapshot")
			}
		}
		bus.Publish("strategies/"+strategyID, "mode_transition", t)
		if err := notifier.NotifyModeChange(notify.ModeChangeData{
			StrategyID: strategyID,
			From:       string(t.From),
			To:         string(t.To),
			Reason:     t.Reason,
			SetNumber:  t.SetNumber,
			Eligible:   t.Eligible,
		}); err != nil {
			log.Error().Err(err).Msg("notify mode transition")
		}
	}

	replayStrategyState(st, strategies)
	wireStrategyFillListener(backends, paperSim, strategies)

	rtr := router.New(groups, strategies, fundedStore, backends, paperSim)
	rtr.OnModeOverride = func(alertID, strategyID string) {
		log.Info().Str("alert_id", alertID).Str("strategy_id", strategyID).Msg("strategy mode overlay routed to paper")
	}

	ing := ingress.New(mapIngressConfig(cfg), clock, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatchLoop(ctx, ing, rtr, fundedStore, st, bus, notifier)
	go fillReconciliationLoop(ctx, groups, backends, fundedStore, st, bus)

	server := api.NewServer(cfg.API.Addr, api.Deps{
		Ingress:    ing,
		Router:     rtr,
		Groups:     groups,
		Backends:   backends,
		Funded:     fundedStore,
		Strategies: strategies,
		PaperSim:   paperSim,
		Store:      st,
		Bus:        bus,
		Clock:      clock,
		Logger:     log.Logger,
	})
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start api server")
	}
	log.Info().Str("addr", cfg.API.Addr).Msg("api server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("api server shutdown")
	}

	if !cfg.DryRun {
		flattenAll(backends, groups)
	}
	log.Info().Msg("terminal stopped")
}

// setupLogging mirrors the console-writer idiom the rest of the example
// pack uses for a human-readable stderr stream during local/dev runs.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func applyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		log.Warn().Str("log_level", level).Msg("unrecognized log level, keeping info")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

func mapIngressConfig(cfg config.Config) ingress.Config {
	return ingress.Config{
		SharedSecret:       cfg.Ingress.SharedSecret,
		ReplayWindow:       cfg.Ingress.ReplayWindow,
		IdempotencyWindow:  cfg.Ingress.IdempotencyWindow,
		RateLimitPerMinute: cfg.Ingress.RateLimitPerMinute,
		RateLimitBurst:     cfg.Ingress.RateLimitBurst,
		MaxBodyBytes:       cfg.Ingress.MaxBodyBytes,
		QueueCapacity:      cfg.Ingress.QueueCapacity,
	}
}

// registerBackends populates the broker registry with a stub adapter for
// every distinct backend_ref named by a configured account group, so the
// router never resolves a backend nobody asked for.
func registerBackends(backends *broker.Registry, groups *accountgroup.Registry, clock ids.Clock) {
	seen := make(map[string]bool)
	for _, g := range groups.All() {
		if g.IsPaperPrefix() || g.BackendRef == "" || seen[g.BackendRef] {
			continue
		}
		seen[g.BackendRef] = true
		switch g.BackendRef {
		case broker.BackendTradovate:
			backends.Register(broker.NewTradovateAdapter(clock))
		case broker.BackendTastytrade:
			backends.Register(broker.NewTastytradeAdapter(clock))
		case broker.BackendSchwab:
			backends.Register(broker.NewSchwabAdapter(clock))
		case broker.BackendTopstepX:
			backends.Register(broker.NewTopstepXAdapter(clock))
		default:
			log.Warn().Str("backend_ref", g.BackendRef).Msg("unknown backend_ref, registering a generic stub")
			backends.Register(broker.NewStubAdapter(g.BackendRef, clock))
		}
	}
}

// seedFundedAccounts configures the funded rule engine for every account
// group whose risk_profile_ref names a configured funded-rules block.
func seedFundedAccounts(fundedStore *funded.AccountStore, groups *accountgroup.Registry, cfg config.Config) {
	for _, g := range groups.All() {
		if g.RiskProfileRef == "" {
			continue
		}
		rulesCfg, ok := cfg.FundedAccounts[g.RiskProfileRef]
		if !ok {
			log.Warn().Str("account_group", g.Key).Str("risk_profile_ref", g.RiskProfileRef).Msg("risk profile not found, skipping funded rules")
			continue
		}
		rules, err := rulesCfg.ToFundedRules()
		if err != nil {
			log.Error().Err(err).Str("risk_profile_ref", g.RiskProfileRef).Msg("parse funded rules")
			continue
		}
		fundedStore.Configure(accountIDFor(g), rules)
	}
}

func accountIDFor(g accountgroup.Group) string {
	if g.IsPaperPrefix() {
		return g.Key
	}
	return g.LiveAccountID
}

// replayStrategyState restores each strategy's last persisted mode so a
// restart does not reset every strategy back to paper.
func replayStrategyState(st *store.Store, strategies *strategytracker.Registry) {
	snapshots, err := st.LoadStrategySnapshots()
	if err != nil {
		log.Error().Err(err).Msg("load strategy snapshots")
		return
	}
	for strategyID, snap := range snapshots {
		strategies.Restore(strategyID, strategytracker.Mode(snap.Mode))
	}
	log.Info().Int("count", len(snapshots)).Msg("restored strategy mode snapshots")
}

// wireStrategyFillListener feeds every account-owned Tracker's realized
// fills into the strategy performance tracker (spec §4.6's "C6 update" step
// of the control flow), so a closed trade's P&L reaches
// strategytracker.Tracker.RecordTrade instead of ending at persistence.
// Alerts without a strategy_id, and fills that only open or add to a
// position (realizedDelta zero), produce no trade record.
func wireStrategyFillListener(backends *broker.Registry, paperSim *papersim.Simulator, strategies *strategytracker.Registry) {
	onFill := func(accountID string, f broker.Fill, o broker.Order, realizedDelta money.D) {
		if o.StrategyID == "" || realizedDelta.IsZero() {
			return
		}
		tr, _ := strategies.Lookup(o.StrategyID)
		tr.RecordTrade(strategytracker.TradeResult{PnL: realizedDelta, At: f.Ts})
	}
	for _, b := range backends.All() {
		if sa, ok := b.(*broker.StubAdapter); ok {
			sa.SetFillListener(onFill)
		}
	}
	if paperSim != nil {
		paperSim.SetFillListener(onFill)
	}
}

// dispatchLoop drains the ingress queue, routes each alert, and persists
// the outcome — the webhook-driven analogue of the teacher's WS event loop.
func dispatchLoop(ctx context.Context, ing *ingress.Ingress, rtr *router.Router, fundedStore *funded.AccountStore, st *store.Store, bus *eventbus.Bus, notifier *notify.Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-ing.Queue():
			if !ok {
				return
			}
			if err := st.RecordAlert(a); err != nil {
				log.Error().Err(err).Str("alert_id", a.AlertID).Msg("persist alert")
			}
			bus.Publish("alerts", "received", a)

			decision, err := rtr.Route(ctx, a)
			if err != nil {
				handleRouteError(a, err, st, notifier)
				continue
			}
			if err := st.RecordOrderEvent(decision.Order); err != nil {
				log.Error().Err(err).Str("order_id", decision.OrderID).Msg("persist order event")
			}
			log.Info().
				Str("alert_id", a.AlertID).
				Str("backend", decision.Backend).
				Str("account_id", decision.AccountID).
				Str("effective_mode", decision.EffectiveMode).
				Bool("clamped", decision.ClampedQty).
				Msg("order routed")
			bus.Publish("orders/"+decision.AccountID, "routed", decision)
		}
	}
}

// handleRouteError logs and, for risk-rule rejections, persists and
// notifies on a routing failure. e.CorrelationID is the rejected alert's ID
// (per errs.New's convention, not the account ID), so the account group key
// on the alert itself is the best available label for the persisted record.
func handleRouteError(a alert.Alert, err error, st *store.Store, notifier *notify.Notifier) {
	var e *errs.E
	if !errors.As(err, &e) {
		log.Error().Err(err).Str("alert_id", a.AlertID).Msg("route alert")
		return
	}
	log.Warn().Str("alert_id", a.AlertID).Str("kind", string(e.Kind)).Str("code", e.Code).Msg("alert rejected")
	if e.Kind != errs.KindRiskViolation {
		return
	}
	result := funded.Result{Verdict: funded.VerdictViolate, Reason: e.Code}
	if err := st.RecordRiskViolation(a.AccountGroup, a.Symbol, a.Quantity, result); err != nil {
		log.Error().Err(err).Msg("persist risk violation")
	}
	if err := notifier.NotifyRiskViolation(notify.RiskViolationData{
		AccountID: a.AccountGroup,
		Symbol:    a.Symbol,
		Verdict:   string(result.Verdict),
		Reason:    result.Reason,
	}); err != nil {
		log.Error().Err(err).Msg("notify risk violation")
	}
}

// fillReconciliationLoop subscribes to every configured account's fill
// stream and persists each fill plus its running position update, the
// consumer side of the one-goroutine-per-account ownership the broker
// Capability interface's SubscribeFills is shaped for. Runs until ctx is
// cancelled at shutdown.
func fillReconciliationLoop(ctx context.Context, groups *accountgroup.Registry, backends *broker.Registry, fundedStore *funded.AccountStore, st *store.Store, bus *eventbus.Bus) {
	var wg sync.WaitGroup
	started := make(map[string]bool)
	for _, g := range groups.All() {
		backendName := g.BackendRef
		if g.IsPaperPrefix() {
			backendName = papersim.Name
		}
		accountID := accountIDFor(g)
		key := backendName + "|" + accountID
		if started[key] {
			continue
		}
		started[key] = true

		backend, ok := backends.Resolve(backendName)
		if !ok {
			continue
		}
		fills, err := backend.SubscribeFills(ctx, accountID, "")
		if err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("subscribe fills")
			continue
		}

		wg.Add(1)
		go func(backend broker.Capability, accountID string, fills <-chan broker.Fill) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case f, ok := <-fills:
					if !ok {
						return
					}
					if err := st.RecordFill(accountID, f); err != nil {
						log.Error().Err(err).Str("account_id", accountID).Msg("persist fill")
					}
					refreshOpenExposure(ctx, backend, accountID, fundedStore)
					bus.Publish("fills/"+accountID, "fill", f)
				}
			}
		}(backend, accountID, fills)
	}
	wg.Wait()
}

// refreshOpenExposure recomputes an account's open-contracts and
// open-position-count from the backend's position book after a fill, since
// a single Fill record carries no side information to accumulate
// incrementally.
func refreshOpenExposure(ctx context.Context, backend broker.Capability, accountID string, fundedStore *funded.AccountStore) {
	snapshot, err := backend.AccountSnapshot(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("refresh account snapshot")
		return
	}
	state, _, has := fundedStore.StateFor(accountID)
	if !has {
		return
	}
	openContracts := money.Zero
	openPositions := 0
	for _, pos := range snapshot.Positions {
		if pos.NetQty.IsZero() {
			continue
		}
		openPositions++
		openContracts = openContracts.Add(money.Abs(pos.NetQty))
	}
	state.OpenContracts = openContracts
	state.OpenPositionCount = openPositions
	fundedStore.UpdateState(accountID, state)
}

// flattenAll closes every open position across every configured account on
// a live, non-dry-run shutdown, mirroring the teacher's cancel-all-orders
// shutdown step.
func flattenAll(backends *broker.Registry, groups *accountgroup.Registry) {
	log.Info().Msg("flattening all open positions before exit")
	ctx := context.Background()
	for _, g := range groups.All() {
		backendName := g.BackendRef
		if g.IsPaperPrefix() {
			backendName = papersim.Name
		}
		backend, ok := backends.Resolve(backendName)
		if !ok {
			continue
		}
		if err := backend.Flatten(ctx, accountIDFor(g)); err != nil {
			log.Error().Err(err).Str("account_group", g.Key).Msg("flatten on shutdown")
		}
	}
}
