// Package errs defines the closed set of error kinds surfaced to clients and
// logs, per the error-handling design in the specification.
package errs

import "fmt"

// Kind is a machine-readable error classification. Kinds are stable strings
// so they can travel across the HTTP boundary and into persisted records.
type Kind string

const (
	KindIngressRejection    Kind = "ingress_rejection"
	KindConfigMissing       Kind = "config_missing"
	KindAuthFailure         Kind = "auth_failure"
	KindTransientBroker     Kind = "transient_broker_error"
	KindPermanentBroker     Kind = "permanent_broker_error"
	KindRiskViolation       Kind = "risk_violation"
	KindSimulatorInconsist  Kind = "simulator_inconsistency"
	KindPersistenceFailure  Kind = "persistence_failure"
	KindInternalInvariant   Kind = "internal_invariant"
)

// Rejection codes used in ingress responses (spec §4.1 failure model).
const (
	CodeRateLimited    = "rate_limited"
	CodeBadSignature   = "bad_signature"
	CodeSchemaInvalid  = "schema_invalid"
	CodeReplay         = "replay"
	CodePayloadSuspect = "payload_suspect"
	CodeQueueFull      = "queue_full"
)

// Router/domain rejection codes (spec §4.2, §4.5).
const (
	CodeUnknownAccountGroup = "unknown_account_group"
	CodeSizeClampExceeded   = "size_clamp_exceeded"
	CodeDailyLossCap        = "daily_loss_cap"
	CodeTrailingDrawdown    = "trailing_drawdown"
	CodeMaxContracts        = "max_contracts"
	CodeMaxConcurrentPos    = "max_concurrent_positions"
	CodeOutsideHours        = "outside_allowed_hours"
	CodeRestrictedSymbol    = "restricted_symbol"
	CodeNewsBlackout        = "news_blackout"
	CodeAccountViolated     = "account_violated"
)

// E is the structured error surfaced to HTTP clients and persisted for audit.
type E struct {
	Kind          Kind   `json:"kind"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	cause         error
}

func (e *E) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *E) Unwrap() error { return e.cause }

// New builds a structured error with the given kind, code, and message.
func New(kind Kind, code, correlationID, message string) *E {
	return &E{Kind: kind, Code: code, Message: message, CorrelationID: correlationID}
}

// Wrap attaches a structured kind/code to an underlying error for logging
// and client responses.
func Wrap(kind Kind, code, correlationID string, cause error) *E {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &E{Kind: kind, Code: code, Message: msg, CorrelationID: correlationID, cause: cause}
}
