package accountgroup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPaperPrefix(t *testing.T) {
	cases := map[string]bool{
		"paper_simulator": true,
		"paper_sandbox":   true,
		"topstep":         false,
		"main":            false,
	}
	for key, want := range cases {
		g := Group{Key: key}
		if got := g.IsPaperPrefix(); got != want {
			t.Errorf("IsPaperPrefix(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestLoadReadsAccountGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "account_groups.yaml")
	contents := `
account_groups:
  - key: paper_simulator
    backend_ref: paper_simulator
  - key: topstep
    backend_ref: topstepx
    live_account_id: "12345"
    risk_profile_ref: topstep_50k
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	g, ok := reg.Resolve("topstep")
	if !ok {
		t.Fatal("expected topstep group to resolve")
	}
	if g.BackendRef != "topstepx" || g.LiveAccountID != "12345" || g.RiskProfileRef != "topstep_50k" {
		t.Fatalf("unexpected group: %+v", g)
	}

	if _, ok := reg.Resolve("unknown_group"); ok {
		t.Fatal("unknown group should not resolve")
	}

	if len(reg.All()) != 2 {
		t.Fatalf("All() returned %d groups, want 2", len(reg.All()))
	}
}
