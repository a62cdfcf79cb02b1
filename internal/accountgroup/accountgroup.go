// Package accountgroup loads and hot-reloads the AccountGroup registry
// (spec §3) — the configuration entity mapping a webhook's account_group
// key to a backend reference, optional live account id, and funded-rule
// profile. Adapted from the teacher's internal/config package's YAML+env
// loading shape, generalized with spf13/viper so the registry can be
// hot-reloaded from disk (via viper's fsnotify-backed WatchConfig) without
// restarting the process, per the rest of the example pack's config
// conventions.
package accountgroup

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Group is one configured account group (spec §3's AccountGroup entity).
type Group struct {
	Key            string
	BackendRef     string
	LiveAccountID  string
	RiskProfileRef string
}

// IsPaperPrefix reports whether this group's key starts with "paper_",
// which routes it straight to the Paper Simulator regardless of backend_ref
// (spec §4.2 rule 2).
func (g Group) IsPaperPrefix() bool {
	return strings.HasPrefix(g.Key, "paper_")
}

// Registry is a copy-on-write snapshot of configured account groups,
// matching the single-writer/copy-on-write-read concurrency shape used
// throughout this engine (spec §5).
type Registry struct {
	mu     sync.RWMutex
	groups map[string]Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]Group)}
}

// Resolve looks up a group by its account_group key.
func (r *Registry) Resolve(key string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[key]
	return g, ok
}

// All returns a snapshot of every configured group.
func (r *Registry) All() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out
}

// replace swaps in a freshly loaded set of groups atomically.
func (r *Registry) replace(groups map[string]Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = groups
}

// Add registers or overwrites a single group. Used by callers that build a
// registry programmatically (tests, or a setup CLI) rather than from a
// YAML file via Load.
func (r *Registry) Add(g Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groups == nil {
		r.groups = make(map[string]Group)
	}
	r.groups[g.Key] = g
}

type fileGroup struct {
	Key            string `mapstructure:"key"`
	BackendRef     string `mapstructure:"backend_ref"`
	LiveAccountID  string `mapstructure:"live_account_id"`
	RiskProfileRef string `mapstructure:"risk_profile_ref"`
}

type fileConfig struct {
	AccountGroups []fileGroup `mapstructure:"account_groups"`
}

func toGroups(fc fileConfig) map[string]Group {
	groups := make(map[string]Group, len(fc.AccountGroups))
	for _, fg := range fc.AccountGroups {
		groups[fg.Key] = Group{
			Key:            fg.Key,
			BackendRef:     fg.BackendRef,
			LiveAccountID:  fg.LiveAccountID,
			RiskProfileRef: fg.RiskProfileRef,
		}
	}
	return groups
}

// Load reads the account-group registry from a YAML file and begins
// watching it for changes, swapping in the new registry atomically on each
// edit. The returned Registry is immediately usable; watching runs in the
// background for the life of the process.
func Load(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read account group config: %w", err)
	}

	reg := NewRegistry()
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("unmarshal account group config: %w", err)
	}
	reg.replace(toGroups(fc))

	v.OnConfigChange(func(e viper.ConfigEvent) {
		var updated fileConfig
		if err := v.Unmarshal(&updated); err != nil {
			return
		}
		reg.replace(toGroups(updated))
	})
	v.WatchConfig()

	return reg, nil
}
