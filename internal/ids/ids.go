// Package ids provides monotonic clock access, identifier generation, and
// trading-session classification shared across the engine.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Session classifies a point in time relative to a venue's trading calendar.
type Session string

const (
	SessionRegular  Session = "regular"
	SessionExtended Session = "extended"
	SessionClosed   Session = "closed"
)

// Clock is the source of truth for "now" across the engine. Production code
// uses RealClock; tests inject a fixed or steppable clock so matching and
// mode-transition logic stays deterministic.
type Clock interface {
	Now() time.Time
}

// RealClock returns wall-clock time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Useful in tests.
type FixedClock struct {
	At time.Time
}

func (f FixedClock) Now() time.Time { return f.At }

// NewID returns a fresh random identifier (order IDs, fill IDs, correlation IDs).
func NewID() string {
	return uuid.NewString()
}

// NewPrefixedID returns a random identifier with a readable component prefix,
// e.g. "ord_3e5d...".
func NewPrefixedID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// AlertID derives a stable, content-addressed identifier for an ingress
// payload so that retries of the same payload are idempotent. Per spec,
// alert_id is a function of the canonical payload bytes and the receipt
// time bucketed to the idempotency window, NOT of a random nonce.
func AlertID(canonicalPayload []byte, receivedAt time.Time, window time.Duration) string {
	bucket := receivedAt.UTC().Truncate(window)
	h := sha256.New()
	h.Write(canonicalPayload)
	h.Write([]byte(bucket.Format(time.RFC3339)))
	sum := h.Sum(nil)
	return "alert_" + hex.EncodeToString(sum[:16])
}

// RegularSession describes a venue's regular-hours trading window in minutes
// since midnight, compared by Classify against t's own wall clock.
type RegularSession struct {
	OpenMinute      int
	CloseMinute     int
	ExtendedOpenMin int
	ExtendedCloseMin int
}

// DefaultEquitySession holds the US equities regular (09:30-16:00) and
// extended (04:00-20:00) hours as Eastern-time wall-clock minutes. Classify
// compares them against t's wall clock in whatever location t carries, so a
// UTC t is classified as if these were UTC hours. No configuration setting
// overrides these windows.
var DefaultEquitySession = RegularSession{
	OpenMinute:       9*60 + 30,
	CloseMinute:      16 * 60,
	ExtendedOpenMin:  4 * 60,
	ExtendedCloseMin: 20 * 60,
}

// Classify returns the session in effect for t (interpreted as minutes since
// local midnight in the caller's chosen timezone — callers normalize t
// before calling Classify).
func (s RegularSession) Classify(t time.Time) Session {
	minute := t.Hour()*60 + t.Minute()
	switch {
	case minute >= s.OpenMinute && minute < s.CloseMinute:
		return SessionRegular
	case minute >= s.ExtendedOpenMin && minute < s.ExtendedCloseMin:
		return SessionExtended
	default:
		return SessionClosed
	}
}
