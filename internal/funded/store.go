package funded

import "sync"

// accountRecord pairs a funded account's live state with its configured
// rule set — the store's unit of mutation.
type accountRecord struct {
	state AccountState
	rules Rules
}

// AccountStore holds every configured funded account's current state and
// rules, providing the read path internal/router's FundedState interface
// needs plus the write paths the API layer's pause/resume/flatten-positions
// endpoints drive. A mutex-guarded map is sufficient here (unlike
// internal/accountgroup's copy-on-write registry) because account state
// changes on every fill, far more often than the account table itself
// changes shape.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*accountRecord
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*accountRecord)}
}

// Configure registers or replaces the rule set for accountID, seeding
// AccountState as active if the account is new.
func (s *AccountStore) Configure(accountID string, rules Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[accountID]
	if !ok {
		rec = &accountRecord{state: AccountState{Status: StatusActive}}
		s.accounts[accountID] = rec
	}
	rec.rules = rules
}

// StateFor implements internal/router's FundedState interface.
func (s *AccountStore) StateFor(accountID string) (AccountState, Rules, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.accounts[accountID]
	if !ok {
		return AccountState{}, Rules{}, false
	}
	return rec.state, rec.rules, true
}

// UpdateState replaces accountID's live state (daily PnL, equity,
// open-position counters), as maintained by the broker tracker after
// every fill.
func (s *AccountStore) UpdateState(accountID string, state AccountState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[accountID]
	if !ok {
		rec = &accountRecord{}
		s.accounts[accountID] = rec
	}
	rec.state = state
}

// ApplyVerdict transitions accountID's status per NextStatus after
// Evaluate returns r, so a violate verdict is durably reflected in
// subsequent StateFor calls without the caller having to read-modify-write.
func (s *AccountStore) ApplyVerdict(accountID string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[accountID]
	if !ok {
		return
	}
	rec.state.Status = NextStatus(rec.state.Status, r)
}

// Pause puts accountID into StatusPaused (operator action via
// POST /api/funded-accounts/{acct}/pause), independent of any rule
// violation.
func (s *AccountStore) Pause(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[accountID]
	if !ok {
		return false
	}
	rec.state.Status = StatusPaused
	return true
}

// Resume returns accountID to StatusActive (operator action via
// POST /api/funded-accounts/{acct}/resume). Only valid from paused; a
// violated account requires a fresh Configure, not a Resume, since
// trailing-drawdown breaches are not meant to be waved through.
func (s *AccountStore) Resume(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[accountID]
	if !ok || rec.state.Status != StatusPaused {
		return false
	}
	rec.state.Status = StatusActive
	return true
}

// All returns every configured account ID and its current state, for the
// GET /api/funded-accounts endpoint.
func (s *AccountStore) All() map[string]AccountState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]AccountState, len(s.accounts))
	for id, rec := range s.accounts {
		out[id] = rec.state
	}
	return out
}
