package creds

import (
	"path/filepath"
	"testing"
)

func TestEnvPrecedence(t *testing.T) {
	s, err := New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.BindEnv("tradovate:main", "TT_TEST_SECRET")
	t.Setenv("TT_TEST_SECRET", "env-value")

	v, err := s.Get("tradovate:main")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "env-value" {
		t.Fatalf("want env-value, got %q", v)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")
	s, err := New(path, "test-passphrase")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Put("topstepx:main", "shh"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := New(path, "test-passphrase")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, err := reopened.Get("topstepx:main")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if v != "shh" {
		t.Fatalf("want shh, got %q", v)
	}
}

func TestGetNotFound(t *testing.T) {
	s, _ := New("", "")
	if _, err := s.Get("unknown"); err == nil {
		t.Fatal("expected ErrNotFound")
	}
}
