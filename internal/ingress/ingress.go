// Package ingress implements the C8 webhook ingress pipeline (spec §4.1):
// replay-window check, per-IP rate limiting, HMAC transport auth, payload
// hygiene scanning, schema coercion into internal/alert.Alert, idempotency,
// and a bounded hand-off to the router. Every step surfaces a
// machine-readable rejection code from internal/errs and never blocks the
// HTTP handler, per spec.
package ingress

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/errs"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
)

// Config tunes the ingress pipeline (spec §4.1 defaults noted inline).
type Config struct {
	SharedSecret        string        // HMAC-SHA256 secret; empty enables "development mode"
	ReplayWindow        time.Duration // default 5 minutes
	IdempotencyWindow   time.Duration // default 24 hours
	RateLimitPerMinute  int           // default 50
	RateLimitBurst      int           // default 10
	MaxBodyBytes        int64         // default 64 KiB
	QueueCapacity       int           // default 1024
}

// DefaultConfig matches spec §4.1's stated defaults.
var DefaultConfig = Config{
	ReplayWindow:       5 * time.Minute,
	IdempotencyWindow:  24 * time.Hour,
	RateLimitPerMinute: 50,
	RateLimitBurst:     10,
	MaxBodyBytes:       64 * 1024,
	QueueCapacity:      1024,
}

// Result is the HTTP-facing outcome of one ingress attempt (spec §4.1:
// "{status: received|rejected, alert_id?, reason?}").
type Result struct {
	Status  string `json:"status"`
	AlertID string `json:"alert_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type cachedResult struct {
	result Result
	at     time.Time
}

// rawAlert is the wire shape schema coercion maps into internal/alert.Alert.
// Unknown fields flow into Extras via a second decode pass.
type rawAlert struct {
	Symbol       string          `json:"symbol"`
	Action       string          `json:"action"`
	Quantity     json.Number     `json:"quantity"`
	OrderType    string          `json:"order_type"`
	Price        json.Number     `json:"price"`
	StopPrice    json.Number     `json:"stop_price"`
	AccountGroup string          `json:"account_group"`
	Strategy     string          `json:"strategy"`
	Timeframe    string          `json:"timeframe"`
	Comment      string          `json:"comment"`
	Ts           *time.Time      `json:"ts"`
}

// Ingress owns the bounded inbound channel (spec §4.1 step 7) and all the
// per-request state (rate limiter, idempotency cache) the pipeline needs.
type Ingress struct {
	cfg    Config
	clock  ids.Clock
	limiter *perIPLimiter
	logger zerolog.Logger

	mu   sync.Mutex
	seen map[string]cachedResult

	queue chan alert.Alert
}

// New creates an Ingress with a bounded inbound channel of capacity
// cfg.QueueCapacity (spec §4.1 step 7: "capacity 1024").
func New(cfg Config, clock ids.Clock, logger zerolog.Logger) *Ingress {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig.QueueCapacity
	}
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = DefaultConfig.ReplayWindow
	}
	if cfg.IdempotencyWindow <= 0 {
		cfg.IdempotencyWindow = DefaultConfig.IdempotencyWindow
	}
	if clock == nil {
		clock = ids.RealClock{}
	}
	return &Ingress{
		cfg:     cfg,
		clock:   clock,
		limiter: newPerIPLimiter(orDefault(cfg.RateLimitPerMinute, DefaultConfig.RateLimitPerMinute), orDefault(cfg.RateLimitBurst, DefaultConfig.RateLimitBurst)),
		logger:  logger,
		seen:    make(map[string]cachedResult),
		queue:   make(chan alert.Alert, cfg.QueueCapacity),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Queue returns the channel the router consumes accepted alerts from.
func (i *Ingress) Queue() <-chan alert.Alert {
	return i.queue
}

// Handle runs the full pipeline from spec §4.1 over one raw webhook POST.
func (i *Ingress) Handle(sourceIP string, contentType string, body []byte, signature string) Result {
	now := i.clock.Now()

	// Step 4 (size/content-type half): reject before touching the body further.
	if contentType != "" && !isJSONContentType(contentType) {
		return i.reject(errs.CodeSchemaInvalid, "content-type must be application/json")
	}
	if int64(len(body)) > i.effectiveMaxBody() {
		return i.reject(errs.CodeSchemaInvalid, "payload exceeds maximum size")
	}

	// Step 2: rate limit.
	if !i.limiter.Allow(sourceIP, now) {
		return i.reject(errs.CodeRateLimited, "rate limit exceeded")
	}

	// Step 3: transport auth.
	if i.cfg.SharedSecret == "" {
		i.logger.Warn().Str("source_ip", sourceIP).Msg("ingress running without a shared secret (development mode)")
	} else if !verifyHMAC(i.cfg.SharedSecret, body, signature) {
		return i.reject(errs.CodeBadSignature, "signature verification failed")
	}

	// Step 4 (deep scan half).
	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return i.reject(errs.CodeSchemaInvalid, "body is not valid JSON")
	}
	if scanSuspect(stringFields(generic)) {
		return i.reject(errs.CodePayloadSuspect, "payload failed hygiene scan")
	}

	// Step 5: schema coercion.
	a, err := i.coerce(body, sourceIP, now)
	if err != nil {
		return i.reject(errs.CodeSchemaInvalid, err.Error())
	}

	// Step 1: replay window, now that we have a parsed ts (if any).
	if a.rawTs != nil {
		if d := now.Sub(*a.rawTs); d > i.cfg.ReplayWindow || d < -i.cfg.ReplayWindow {
			return i.reject(errs.CodeReplay, "received_at outside the replay window of the declared ts")
		}
	}

	// Step 6: idempotency.
	window := i.cfg.IdempotencyWindow
	if window <= 0 {
		window = DefaultConfig.IdempotencyWindow
	}
	alertID := ids.AlertID(canonicalize(body), now, window)
	a.Alert.AlertID = alertID

	i.mu.Lock()
	if cached, ok := i.seen[alertID]; ok && now.Sub(cached.at) < window {
		i.mu.Unlock()
		return cached.result
	}
	i.mu.Unlock()

	// Step 7: bounded enqueue, never blocking.
	select {
	case i.queue <- a.Alert:
		result := Result{Status: "received", AlertID: alertID}
		i.mu.Lock()
		i.seen[alertID] = cachedResult{result: result, at: now}
		i.mu.Unlock()
		return result
	default:
		return i.reject(errs.CodeQueueFull, "inbound queue is full")
	}
}

func (i *Ingress) effectiveMaxBody() int64 {
	if i.cfg.MaxBodyBytes <= 0 {
		return DefaultConfig.MaxBodyBytes
	}
	return i.cfg.MaxBodyBytes
}

func (i *Ingress) reject(code, reason string) Result {
	i.logger.Info().Str("code", code).Str("reason", reason).Msg("ingress rejected alert")
	return Result{Status: "rejected", Reason: code}
}

// coercedAlert carries the parsed ts alongside the canonical Alert since
// Alert itself has no raw-ts field (only received_at survives into the
// canonical record per spec §3).
type coercedAlert struct {
	Alert alert.Alert
	rawTs *time.Time
}

func (i *Ingress) coerce(body []byte, sourceIP string, now time.Time) (coercedAlert, error) {
	var raw rawAlert
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return coercedAlert{}, fmt.Errorf("decode alert: %w", err)
	}

	var extras map[string]any
	_ = json.Unmarshal(body, &extras)
	for _, known := range []string{"symbol", "action", "quantity", "order_type", "price", "stop_price", "account_group", "strategy", "timeframe", "comment", "ts"} {
		delete(extras, known)
	}

	qty, err := money.ParseJSONNumber(raw.Quantity)
	if err != nil {
		return coercedAlert{}, fmt.Errorf("parse quantity: %w", err)
	}

	a := alert.Alert{
		ReceivedAt:   now,
		SourceIP:     sourceIP,
		Symbol:       raw.Symbol,
		Action:       alert.Action(raw.Action),
		Quantity:     qty,
		OrderType:    alert.OrderType(raw.OrderType),
		AccountGroup: raw.AccountGroup,
		StrategyID:   raw.Strategy,
		Timeframe:    raw.Timeframe,
		Comment:      raw.Comment,
		Extras:       extras,
		PayloadHash:  hashHex(body),
	}
	if raw.Price != "" {
		p, err := money.ParseJSONNumber(raw.Price)
		if err != nil {
			return coercedAlert{}, fmt.Errorf("parse price: %w", err)
		}
		a.Price = &p
	}
	if raw.StopPrice != "" {
		p, err := money.ParseJSONNumber(raw.StopPrice)
		if err != nil {
			return coercedAlert{}, fmt.Errorf("parse stop_price: %w", err)
		}
		a.StopPrice = &p
	}
	if err := a.Validate(); err != nil {
		return coercedAlert{}, err
	}

	return coercedAlert{Alert: a, rawTs: raw.Ts}, nil
}

func canonicalize(body []byte) []byte {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return canon
}

func hashHex(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%x", sum)
}

func verifyHMAC(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)
	expectedHex := fmt.Sprintf("%x", expected)
	return subtle.ConstantTimeCompare([]byte(expectedHex), []byte(signature)) == 1
}

func isJSONContentType(ct string) bool {
	return bytes.HasPrefix([]byte(ct), []byte("application/json"))
}
