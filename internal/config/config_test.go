package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"JUG_DIR", "JUG_STORE", "JUG_WAIT_CYCLES", "JUG_WAIT_CYCLE_SECONDS", "JUG_AGGRESSIVE_UNLOAD", "JUG_DEBUG", "JUG_KEEP_GOING"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()
	if cfg.Dir != "." {
		t.Fatalf("expected default dir '.', got %q", cfg.Dir)
	}
	if cfg.WaitCycles != 100 {
		t.Fatalf("expected default wait cycles 100, got %d", cfg.WaitCycles)
	}
	if !cfg.KeepGoing {
		t.Fatalf("expected keep-going to default true")
	}
	if cfg.AggressiveUnload {
		t.Fatalf("expected aggressive-unload to default false")
	}
	if cfg.ConnString() != "." {
		t.Fatalf("expected conn string to fall back to dir, got %q", cfg.ConnString())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JUG_STORE", "kv://localhost:4222/jug")
	t.Setenv("JUG_WAIT_CYCLES", "7")
	t.Setenv("JUG_DEBUG", "true")
	cfg := FromEnv()
	if cfg.WaitCycles != 7 {
		t.Fatalf("expected 7 wait cycles, got %d", cfg.WaitCycles)
	}
	if !cfg.Debug {
		t.Fatalf("expected debug true")
	}
	if cfg.ConnString() != "kv://localhost:4222/jug" {
		t.Fatalf("expected store override to win, got %q", cfg.ConnString())
	}
}
