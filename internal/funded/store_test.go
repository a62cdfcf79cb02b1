package funded

import (
	"testing"

	"github.com/traderterminal/core/internal/money"
)

func TestAccountStoreStateForReturnsFalseForUnknownAccount(t *testing.T) {
	s := NewAccountStore()
	_, _, ok := s.StateFor("acct-1")
	if ok {
		t.Fatal("expected no state for an unconfigured account")
	}
}

func TestAccountStoreConfigureSeedsActiveStatus(t *testing.T) {
	s := NewAccountStore()
	s.Configure("acct-1", Rules{MaxContracts: money.FromFloat(5)})

	state, rules, ok := s.StateFor("acct-1")
	if !ok {
		t.Fatal("expected configured account to be found")
	}
	if state.Status != StatusActive {
		t.Fatalf("got status %s, want active", state.Status)
	}
	if !rules.MaxContracts.Equal(money.FromFloat(5)) {
		t.Fatalf("got max contracts %s, want 5", rules.MaxContracts)
	}
}

func TestAccountStoreApplyVerdictMarksViolated(t *testing.T) {
	s := NewAccountStore()
	s.Configure("acct-1", Rules{})
	s.ApplyVerdict("acct-1", Result{Verdict: VerdictViolate, Reason: "daily_loss_cap"})

	state, _, _ := s.StateFor("acct-1")
	if state.Status != StatusViolated {
		t.Fatalf("got status %s, want violated", state.Status)
	}
}

func TestAccountStorePauseThenResume(t *testing.T) {
	s := NewAccountStore()
	s.Configure("acct-1", Rules{})

	if !s.Pause("acct-1") {
		t.Fatal("expected pause to succeed for a configured account")
	}
	state, _, _ := s.StateFor("acct-1")
	if state.Status != StatusPaused {
		t.Fatalf("got status %s, want paused", state.Status)
	}

	if !s.Resume("acct-1") {
		t.Fatal("expected resume to succeed from paused")
	}
	state, _, _ = s.StateFor("acct-1")
	if state.Status != StatusActive {
		t.Fatalf("got status %s, want active", state.Status)
	}
}

func TestAccountStoreResumeFailsFromViolated(t *testing.T) {
	s := NewAccountStore()
	s.Configure("acct-1", Rules{})
	s.ApplyVerdict("acct-1", Result{Verdict: VerdictViolate, Reason: "daily_loss_cap"})

	if s.Resume("acct-1") {
		t.Fatal("expected resume to refuse a violated account")
	}
}

func TestAccountStoreUpdateStateThenAll(t *testing.T) {
	s := NewAccountStore()
	s.Configure("acct-1", Rules{})
	s.UpdateState("acct-1", AccountState{Status: StatusActive, OpenContracts: money.FromFloat(3)})

	all := s.All()
	state, ok := all["acct-1"]
	if !ok {
		t.Fatal("expected acct-1 in All()")
	}
	if !state.OpenContracts.Equal(money.FromFloat(3)) {
		t.Fatalf("got open contracts %s, want 3", state.OpenContracts)
	}
}
