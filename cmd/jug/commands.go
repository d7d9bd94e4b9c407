package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/asford/jug/internal/barrier"
	"github.com/asford/jug/internal/config"
	"github.com/asford/jug/internal/invalidate"
	"github.com/asford/jug/internal/janitor"
	"github.com/asford/jug/internal/scheduler"
	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/task"
	"github.com/asford/jug/internal/telemetry"

	"github.com/asford/jug"
)

func openStore(cfg config.Config) (store.Store, error) {
	return store.Select(cfg.ConnString())
}

func buildRegistry() (*task.Registry, task.Builder, error) {
	build, err := jug.Build()
	if err != nil {
		return nil, nil, err
	}
	registry := task.NewRegistry()
	return registry, build, nil
}

// cmdExecute implements `jug execute`: run the scheduler loop, wrapped in
// the barrier-reload protocol, until quiescent or wait-cycles exhausted.
func cmdExecute(ctx context.Context, cfg config.Config, daemon bool, lockSweep string, m telemetry.Metrics) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	defer st.Close()

	if daemon && lockSweep != "" {
		j, err := janitor.New(st, lockSweep, m)
		if err != nil {
			return fmt.Errorf("execute: janitor: %w", err)
		}
		j.Start()
		defer func() { _ = j.Stop(ctx) }()
	}

	registry, build, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		WaitCycleTime:    cfg.WaitCycleTime,
		WaitCycles:       cfg.WaitCycles,
		AggressiveUnload: cfg.AggressiveUnload,
		DebugMode:        cfg.Debug,
		KeepGoing:        cfg.KeepGoing,
	}, m)

	executed, err := barrier.Loop(ctx, registry, build, func(ctx context.Context, r *task.Registry) ([]*task.Task, error) {
		return sched.Run(ctx, r, st)
	}, cfg.WaitCycleTime, cfg.WaitCycles)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	fmt.Fprintf(os.Stdout, "executed %d task(s)\n", len(executed))
	return nil
}

// cmdStatus implements `jug status`: classify every task without
// executing and emit counts.
func cmdStatus(cfg config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer st.Close()

	registry, build, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if _, err := barrier.Catch(func() error { return build(registry) }); err != nil {
		return fmt.Errorf("status: %w", err)
	}

	var waiting, ready, locked, finished int
	for _, t := range registry.Snapshot() {
		switch {
		case t.CanLoad(st):
			finished++
		case t.Lock(st).IsLocked():
			locked++
		case t.CanRun(st):
			ready++
		default:
			waiting++
		}
	}
	fmt.Fprintf(os.Stdout, "waiting=%d ready=%d locked=%d finished=%d\n", waiting, ready, locked, finished)
	return nil
}

// cmdCheck reports exit code 0 if every task is already loadable, 1
// otherwise — a non-mutating readiness probe.
func cmdCheck(cfg config.Config) (bool, error) {
	st, err := openStore(cfg)
	if err != nil {
		return false, fmt.Errorf("check: %w", err)
	}
	defer st.Close()

	registry, build, err := buildRegistry()
	if err != nil {
		return false, fmt.Errorf("check: %w", err)
	}
	if _, err := barrier.Catch(func() error { return build(registry) }); err != nil {
		return false, fmt.Errorf("check: %w", err)
	}
	for _, t := range registry.Snapshot() {
		if !t.CanLoad(st) {
			return false, nil
		}
	}
	return true, nil
}

// cmdSleepUntil blocks, polling, until every task is loadable or ctx is
// canceled.
func cmdSleepUntil(ctx context.Context, cfg config.Config, pollInterval func() <-chan struct{}) error {
	for {
		ok, err := cmdCheck(cfg)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollInterval():
		}
	}
}

// cmdInvalidate implements `jug invalidate <name>`.
func cmdInvalidate(cfg config.Config, pattern string) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	defer st.Close()

	registry, build, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	if _, err := barrier.Catch(func() error { return build(registry) }); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}

	result, err := invalidate.Run(registry.Snapshot(), pattern, st)
	if err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	names := make([]string, 0, len(result.Counts))
	for name := range result.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stdout, "%s: %d\n", name, result.Counts[name])
	}
	fmt.Fprintf(os.Stdout, "tasks matched=%d results removed=%d\n", result.TasksMatched, result.ResultsRemoved)
	return nil
}

// cmdCleanup implements `jug cleanup` and `jug cleanup --locks-only`.
func cmdCleanup(cfg config.Config, locksOnly bool) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	defer st.Close()

	if locksOnly {
		n, err := st.RemoveLocks()
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Fprintf(os.Stdout, "locks removed=%d\n", n)
		return nil
	}

	registry, build, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if _, err := barrier.Catch(func() error { return build(registry) }); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	active := map[string]bool{}
	for _, t := range registry.Snapshot() {
		active[t.Hash()] = true
	}
	n, err := st.Cleanup(active)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	fmt.Fprintf(os.Stdout, "entries removed=%d\n", n)
	return nil
}

// cmdCount implements `jug count`: per-name task counts.
func cmdCount(cfg config.Config) error {
	registry, build, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	if _, err := barrier.Catch(func() error { return build(registry) }); err != nil {
		return fmt.Errorf("count: %w", err)
	}

	counts := map[string]int{}
	for _, t := range registry.Snapshot() {
		counts[t.Name()]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stdout, "%s: %d\n", name, counts[name])
	}
	return nil
}
