package broker

import "github.com/traderterminal/core/internal/ids"

// NewTradovateAdapter, NewTastytradeAdapter, NewSchwabAdapter, and
// NewTopstepXAdapter are the four live/sandbox capability variants named in
// spec §4.3. Each wraps StubAdapter — per spec §1 vendor SDK wire protocols
// are out of scope, so these model the capability surface (idempotent
// submit, cancel, flatten, resumable fill stream, health) rather than a
// specific venue's REST/FIX encoding.

func NewTradovateAdapter(clock ids.Clock) *StubAdapter {
	return NewStubAdapter(BackendTradovate, clock)
}

func NewTastytradeAdapter(clock ids.Clock) *StubAdapter {
	return NewStubAdapter(BackendTastytrade, clock)
}

func NewSchwabAdapter(clock ids.Clock) *StubAdapter {
	return NewStubAdapter(BackendSchwab, clock)
}

func NewTopstepXAdapter(clock ids.Clock) *StubAdapter {
	return NewStubAdapter(BackendTopstepX, clock)
}
