// Package api implements the REST control plane (spec §6): the inbound
// webhook endpoint, the manual order/account/strategy surface the operator
// dashboard drives, and the status probe. Grounded on the teacher's
// api.Server — AppState interface, http.ServeMux, writeJSON helper — but
// rebuilt on Go 1.25's method-and-wildcard mux patterns since this domain's
// endpoints are parameterized ({feed}, {acct}, {id}) in a way the teacher's
// flat /api/* surface never needed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/traderterminal/core/internal/accountgroup"
	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/errs"
	"github.com/traderterminal/core/internal/eventbus"
	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/ingress"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/papersim"
	"github.com/traderterminal/core/internal/router"
	"github.com/traderterminal/core/internal/store"
	"github.com/traderterminal/core/internal/strategytracker"
)

// Deps wires every component the API surface fronts. Every field is
// required except PaperSim, which is nil when the deployment never
// registers the simulator backend.
type Deps struct {
	Ingress    *ingress.Ingress
	Router     *router.Router
	Groups     *accountgroup.Registry
	Backends   *broker.Registry
	Funded     *funded.AccountStore
	Strategies *strategytracker.Registry
	PaperSim   *papersim.Simulator
	Store      *store.Store
	Bus        *eventbus.Bus
	Clock      ids.Clock
	Logger     zerolog.Logger
}

// Server is the control-plane HTTP surface.
type Server struct {
	httpServer *http.Server
	deps       Deps
	startedAt  time.Time
}

// NewServer builds a Server bound to addr with every route registered.
func NewServer(addr string, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = ids.RealClock{}
	}
	s := &Server{deps: deps, startedAt: deps.Clock.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/tradingview", s.handleWebhook)
	mux.HandleFunc("GET /webhook/test", s.handleWebhookTest)
	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/accounts/{feed}/{acct}/positions", s.handleAccountPositions)
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("POST /api/orders", s.handleCreateOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/funded-accounts", s.handleFundedAccounts)
	mux.HandleFunc("POST /api/funded-accounts/{provider}/{acct}/flatten-positions", s.handleFlattenPositions)
	mux.HandleFunc("POST /api/funded-accounts/{acct}/pause", s.handlePauseFundedAccount)
	mux.HandleFunc("POST /api/funded-accounts/{acct}/resume", s.handleResumeFundedAccount)
	mux.HandleFunc("POST /api/paper-trading/accounts/{id}/reset", s.handlePaperReset)
	mux.HandleFunc("GET /api/strategies/summaries", s.handleStrategySummaries)
	mux.HandleFunc("POST /api/strategies/{id}/mode", s.handleSetStrategyMode)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.deps.Logger.Info().Str("addr", s.httpServer.Addr).Msg("api server listening")
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error().Err(err).Msg("api server stopped")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Error().Err(err).Msg("api: failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, e *errs.E) {
	s.writeJSON(w, status, e)
}

func sourceIPFrom(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// POST /webhook/tradingview — spec §6, the inbound signal feed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, ingress.Result{Status: "rejected", Reason: "body_read_failed"})
		return
	}

	// spec §6 header is "X-Webhook-Signature: sha256=<hex>"; verifyHMAC
	// compares against a bare hex digest.
	sig := strings.TrimPrefix(r.Header.Get("X-Webhook-Signature"), "sha256=")

	result := s.deps.Ingress.Handle(sourceIPFrom(r), r.Header.Get("Content-Type"), body, sig)
	if result.Status != "received" {
		s.writeJSON(w, http.StatusBadRequest, result)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// GET /webhook/test — liveness probe.
func (s *Server) handleWebhookTest(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "uptime_s": time.Since(s.startedAt).Seconds()})
}

// GET /api/accounts — every configured account group.
func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	groups := s.deps.Groups.All()
	type accountEntry struct {
		Key           string `json:"key"`
		Backend       string `json:"backend"`
		LiveAccountID string `json:"live_account_id"`
		PaperPrefix   bool   `json:"paper_prefix"`
	}
	entries := make([]accountEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, accountEntry{Key: g.Key, Backend: g.BackendRef, LiveAccountID: g.LiveAccountID, PaperPrefix: g.IsPaperPrefix()})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"accounts": entries})
}

// GET /api/accounts/{feed}/{acct}/positions — read-through to the resolved
// backend's cached AccountSnapshot.
func (s *Server) handleAccountPositions(w http.ResponseWriter, r *http.Request) {
	feed := r.PathValue("feed")
	acct := r.PathValue("acct")

	backend, ok := s.deps.Backends.Resolve(feed)
	if !ok {
		s.writeError(w, http.StatusNotFound, errs.New(errs.KindConfigMissing, "unknown_backend", "", "no backend registered for "+feed))
		return
	}
	snap, err := backend.AccountSnapshot(r.Context(), acct)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, errs.Wrap(errs.KindTransientBroker, "snapshot_failed", "", err))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GET /api/orders — every order's latest persisted state.
func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request) {
	records, err := s.deps.Store.LoadLatestOrders()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errs.Wrap(errs.KindPersistenceFailure, "load_orders_failed", "", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"orders": records})
}

// createOrderRequest mirrors the webhook body shape (spec §6) so manual
// order entry from the dashboard reuses the exact same router path as a
// TradingView alert.
type createOrderRequest struct {
	Symbol       string   `json:"symbol"`
	Action       string   `json:"action"`
	Quantity     float64  `json:"quantity"`
	OrderType    string   `json:"order_type"`
	Price        *float64 `json:"price"`
	StopPrice    *float64 `json:"stop_price"`
	AccountGroup string   `json:"account_group"`
	Strategy     string   `json:"strategy"`
}

// POST /api/orders — manual order submission, routed exactly like an
// ingress alert but without transport auth (this endpoint is
// operator-authenticated at the reverse proxy, per spec §6 scope).
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errs.New(errs.KindIngressRejection, errs.CodeSchemaInvalid, "", "invalid request body"))
		return
	}

	now := s.deps.Clock.Now()
	a := alert.Alert{
		AlertID:      ids.NewPrefixedID("manual"),
		ReceivedAt:   now,
		SourceIP:     sourceIPFrom(r),
		Symbol:       req.Symbol,
		Action:       alert.Action(strings.ToLower(req.Action)),
		Quantity:     money.FromFloat(req.Quantity),
		OrderType:    alert.OrderType(orDefaultStr(req.OrderType, "market")),
		AccountGroup: req.AccountGroup,
		StrategyID:   req.Strategy,
	}
	if req.Price != nil {
		p := money.FromFloat(*req.Price)
		a.Price = &p
	}
	if req.StopPrice != nil {
		p := money.FromFloat(*req.StopPrice)
		a.StopPrice = &p
	}
	if err := a.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, errs.New(errs.KindIngressRejection, errs.CodeSchemaInvalid, a.AlertID, err.Error()))
		return
	}

	decision, err := s.deps.Router.Route(r.Context(), a)
	if err != nil {
		var e *errs.E
		if errors.As(err, &e) {
			s.writeError(w, statusForKind(e.Kind), e)
			return
		}
		s.writeError(w, http.StatusInternalServerError, errs.Wrap(errs.KindInternalInvariant, "route_failed", a.AlertID, err))
		return
	}
	if err := s.deps.Store.RecordOrderEvent(decision.Order); err != nil {
		s.deps.Logger.Error().Err(err).Str("order_id", decision.OrderID).Msg("persist order event")
	}
	s.writeJSON(w, http.StatusOK, decision)
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindIngressRejection, errs.KindRiskViolation:
		return http.StatusBadRequest
	case errs.KindConfigMissing:
		return http.StatusNotFound
	case errs.KindAuthFailure:
		return http.StatusUnauthorized
	case errs.KindTransientBroker, errs.KindPermanentBroker:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DELETE /api/orders/{id} — cancels an order on the backend it was last
// recorded against.
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	records, err := s.deps.Store.LoadLatestOrders()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errs.Wrap(errs.KindPersistenceFailure, "load_orders_failed", "", err))
		return
	}
	rec, ok := findOrderRecord(records, orderID)
	if !ok {
		s.writeError(w, http.StatusNotFound, errs.New(errs.KindConfigMissing, "unknown_order", orderID, "no such order"))
		return
	}

	backend, ok := s.deps.Backends.Resolve(rec.Backend)
	if !ok {
		s.writeError(w, http.StatusNotFound, errs.New(errs.KindConfigMissing, "unknown_backend", orderID, "no backend registered for "+rec.Backend))
		return
	}
	result, err := backend.Cancel(r.Context(), orderID)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, errs.Wrap(errs.KindTransientBroker, "cancel_failed", orderID, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "result": result})
}

func findOrderRecord(records []store.OrderRecord, orderID string) (store.OrderRecord, bool) {
	for _, rec := range records {
		if rec.OrderID == orderID {
			return rec, true
		}
	}
	return store.OrderRecord{}, false
}

// GET /api/funded-accounts — every configured funded account's state.
func (s *Server) handleFundedAccounts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"accounts": s.deps.Funded.All()})
}

// POST /api/funded-accounts/{provider}/{acct}/flatten-positions — closes
// every open position for acct at provider with market orders.
func (s *Server) handleFlattenPositions(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	acct := r.PathValue("acct")

	backend, ok := s.deps.Backends.Resolve(provider)
	if !ok {
		s.writeError(w, http.StatusNotFound, errs.New(errs.KindConfigMissing, "unknown_backend", "", "no backend registered for "+provider))
		return
	}
	if err := backend.Flatten(r.Context(), acct); err != nil {
		s.writeError(w, http.StatusBadGateway, errs.Wrap(errs.KindTransientBroker, "flatten_failed", acct, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"account_id": acct, "flattened": true})
}

// POST /api/funded-accounts/{acct}/pause — operator-driven pause,
// independent of any rule-engine verdict.
func (s *Server) handlePauseFundedAccount(w http.ResponseWriter, r *http.Request) {
	acct := r.PathValue("acct")
	if !s.deps.Funded.Pause(acct) {
		s.writeError(w, http.StatusNotFound, errs.New(errs.KindConfigMissing, "unknown_account", acct, "no such funded account"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"account_id": acct, "status": funded.StatusPaused})
}

// POST /api/funded-accounts/{acct}/resume — only succeeds from paused; a
// violated account needs a fresh configuration, not a resume.
func (s *Server) handleResumeFundedAccount(w http.ResponseWriter, r *http.Request) {
	acct := r.PathValue("acct")
	if !s.deps.Funded.Resume(acct) {
		s.writeError(w, http.StatusConflict, errs.New(errs.KindConfigMissing, "resume_not_allowed", acct, "account is not paused"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"account_id": acct, "status": funded.StatusActive})
}

// POST /api/paper-trading/accounts/{id}/reset — wipes one paper account's
// balance, positions, and resting orders back to its configured start.
func (s *Server) handlePaperReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.deps.PaperSim == nil {
		s.writeError(w, http.StatusNotFound, errs.New(errs.KindConfigMissing, "paper_sim_not_configured", id, "paper simulator backend is not registered"))
		return
	}
	s.deps.PaperSim.Reset(id)
	s.writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "reset": true})
}

// GET /api/strategies/summaries — every tracked strategy's mode and
// win-rate bookkeeping.
func (s *Server) handleStrategySummaries(w http.ResponseWriter, _ *http.Request) {
	trackers := s.deps.Strategies.All()
	type summary struct {
		StrategyID    string `json:"strategy_id"`
		Mode          string `json:"mode"`
		LifetimePaper int    `json:"lifetime_paper_trades"`
	}
	summaries := make([]summary, 0, len(trackers))
	for id, tr := range trackers {
		summaries = append(summaries, summary{StrategyID: id, Mode: string(tr.Mode()), LifetimePaper: tr.LifetimePaperTrades()})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"strategies": summaries})
}

type setModeRequest struct {
	NewMode string `json:"new_mode"`
	Reason  string `json:"reason"`
}

// POST /api/strategies/{id}/mode — the only path by which a strategy's
// mode actually changes to live; a tracker's own eligibility signal never
// applies itself (spec §4.4's "mode remains paper until explicit
// POST .../mode").
func (s *Server) handleSetStrategyMode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errs.New(errs.KindIngressRejection, errs.CodeSchemaInvalid, id, "invalid request body"))
		return
	}

	tr, _ := s.deps.Strategies.Lookup(id)
	var transition *strategytracker.ModeTransition
	switch strategytracker.Mode(req.NewMode) {
	case strategytracker.ModeLive:
		transition = tr.PromoteToLive(orDefaultStr(req.Reason, "operator_promotion"))
	case strategytracker.ModePaper, strategytracker.ModeSuspended:
		transition = tr.Resume(strategytracker.Mode(req.NewMode), orDefaultStr(req.Reason, "operator_action"))
	default:
		s.writeError(w, http.StatusBadRequest, errs.New(errs.KindIngressRejection, errs.CodeSchemaInvalid, id, "unknown mode "+req.NewMode))
		return
	}
	if transition == nil {
		s.writeError(w, http.StatusConflict, errs.New(errs.KindIngressRejection, "mode_transition_not_allowed", id, "requested transition is not valid from the current mode"))
		return
	}
	s.writeJSON(w, http.StatusOK, transition)
}

// GET /api/status — connectivity summary (spec §6).
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	feeds := map[string]bool{}
	for _, b := range s.deps.Backends.All() {
		feeds[b.Name()] = b.Health().Connected
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"datahub": true,
		"feeds":   feeds,
		"ts":      s.deps.Clock.Now(),
	})
}
