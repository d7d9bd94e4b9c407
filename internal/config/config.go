// Package config collects the environment-driven defaults shared by the
// scheduler, store selector, and CLI, layered the way the teacher's
// getEnvDefault/os.Getenv pattern does: environment first, explicit flag
// overrides at the call site.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-wide runtime configuration, populated once from
// the environment at startup.
type Config struct {
	// Dir is the directory backend's root when JUG_STORE is unset.
	Dir string
	// Store is a store.Select connection string; empty defers to Dir.
	Store string
	// WaitCycles bounds stalled scheduler passes before giving up.
	WaitCycles int
	// WaitCycleTime is the sleep between stalled passes.
	WaitCycleTime time.Duration
	// AggressiveUnload evicts a task's dependency cone after execution.
	AggressiveUnload bool
	// Debug recomputes and checks each task's hash around Run.
	Debug bool
	// KeepGoing continues past a task failure instead of aborting.
	KeepGoing bool
}

// FromEnv builds a Config from JUG_* environment variables, falling back
// to the same defaults scheduler.DefaultConfig uses.
func FromEnv() Config {
	return Config{
		Dir:              getEnvDefault("JUG_DIR", "."),
		Store:            os.Getenv("JUG_STORE"),
		WaitCycles:       getEnvIntDefault("JUG_WAIT_CYCLES", 100),
		WaitCycleTime:    time.Duration(getEnvIntDefault("JUG_WAIT_CYCLE_SECONDS", 12)) * time.Second,
		AggressiveUnload: getEnvBoolDefault("JUG_AGGRESSIVE_UNLOAD", false),
		Debug:            getEnvBoolDefault("JUG_DEBUG", false),
		KeepGoing:        getEnvBoolDefault("JUG_KEEP_GOING", true),
	}
}

// ConnString returns the store.Select connection string this
// configuration resolves to: Store if set, otherwise Dir.
func (c Config) ConnString() string {
	if c.Store != "" {
		return c.Store
	}
	return c.Dir
}

func getEnvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBoolDefault(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
