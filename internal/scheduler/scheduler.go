// Package scheduler implements the cooperative multi-pass executor (C5):
// classify the current frontier, attempt each ready task via the store's
// lock, execute at most one worker's share per pass, and decide whether
// to sleep, keep going, or terminate.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/task"
	"github.com/asford/jug/internal/telemetry"
)

// Config controls a single execute_loop invocation (§4.3, §6).
type Config struct {
	// WaitCycleTime is how long to sleep between passes when the
	// frontier stalled (nothing executed but work remains).
	WaitCycleTime time.Duration
	// WaitCycles bounds how many stalled passes are tolerated before the
	// scheduler gives up and returns.
	WaitCycles int
	// AggressiveUnload evicts a task's dependency cone from memory after
	// each successful execution.
	AggressiveUnload bool
	// DebugMode recomputes and checks each task's hash before and after
	// Run.
	DebugMode bool
	// KeepGoing logs and continues past a task execution error instead of
	// propagating it.
	KeepGoing bool
}

// DefaultConfig mirrors the reference project's CLI defaults.
func DefaultConfig() Config {
	return Config{
		WaitCycleTime: 12 * time.Second,
		WaitCycles:    100,
		KeepGoing:     true,
	}
}

// Scheduler runs execute_loop passes over a registry snapshot.
type Scheduler struct {
	cfg     Config
	metrics telemetry.Metrics
}

// New constructs a Scheduler bound to cfg, recording instruments on m.
func New(cfg Config, m telemetry.Metrics) *Scheduler {
	return &Scheduler{cfg: cfg, metrics: m}
}

// Run drives one execute_loop over the tasks in registry, exactly as
// §4.3 describes: classify, attempt ready tasks in order, decide the next
// frontier, sleep or terminate. It returns every task this worker
// executed.
func (s *Scheduler) Run(ctx context.Context, registry *task.Registry, st store.Store) ([]*task.Task, error) {
	current := registry.Snapshot()
	var totalExecuted []*task.Task
	waitCycles := s.cfg.WaitCycles

	for len(current) > 0 {
		passStart := time.Now()
		waiting, ready, locked, finished := s.classify(current, st)
		slog.Debug("scheduler pass classified",
			"waiting", len(waiting), "ready", len(ready), "locked", len(locked), "finished", len(finished))

		executed, deferred, err := s.attempt(ctx, ready, st)
		if err != nil {
			return totalExecuted, err
		}
		totalExecuted = append(totalExecuted, executed...)
		if s.metrics.TasksExecuted != nil {
			s.metrics.TasksExecuted.Add(ctx, int64(len(executed)))
		}
		if s.metrics.PassDuration != nil {
			s.metrics.PassDuration.Record(ctx, float64(time.Since(passStart).Milliseconds()))
		}

		current = append(append(append([]*task.Task(nil), waiting...), locked...), deferred...)

		if len(current) > 0 && len(executed) == 0 {
			if waitCycles > 0 {
				waitCycles--
				slog.Info("scheduler stalled, sleeping", "wait_cycle_time", s.cfg.WaitCycleTime, "remaining_cycles", waitCycles)
				select {
				case <-ctx.Done():
					return totalExecuted, ctx.Err()
				case <-time.After(s.cfg.WaitCycleTime):
				}
			} else {
				slog.Info("scheduler exhausted wait cycles with no progress")
				return totalExecuted, nil
			}
		}
	}
	slog.Info("scheduler frontier emptied", "executed", len(totalExecuted))
	return totalExecuted, nil
}

func (s *Scheduler) classify(tasks []*task.Task, st store.Store) (waiting, ready, locked, finished []*task.Task) {
	for _, t := range tasks {
		switch {
		case t.CanLoad(st):
			finished = append(finished, t)
		case t.Lock(st).IsLocked():
			locked = append(locked, t)
		case t.CanRun(st):
			ready = append(ready, t)
		default:
			waiting = append(waiting, t)
		}
	}
	return
}

func (s *Scheduler) attempt(ctx context.Context, ready []*task.Task, st store.Store) ([]*task.Task, []*task.Task, error) {
	var executed, deferred []*task.Task
	for _, t := range ready {
		ok, err := s.attemptOne(ctx, t, st)
		if err != nil {
			if s.cfg.KeepGoing {
				slog.Error("task execution failed, continuing", "task", t.DisplayName(), "error", err)
				continue
			}
			return executed, deferred, err
		}
		if ok {
			executed = append(executed, t)
		} else if !t.CanLoad(st) {
			// lock held by a peer or acquire faulted: look again next pass
			deferred = append(deferred, t)
		}
	}
	return executed, deferred, nil
}

// attemptOne implements step 2 of §4.3: re-check can_load, acquire the
// lock, re-check can_load with the lock held, execute, always release.
func (s *Scheduler) attemptOne(ctx context.Context, t *task.Task, st store.Store) (bool, error) {
	if t.CanLoad(st) {
		return false, nil
	}
	lockWaitStart := time.Now()
	lock := t.Lock(st)
	acquired, err := lock.Acquire()
	if err != nil {
		// transient store fault: treat as unknown state for this pass,
		// not a fatal error (§4.2).
		slog.Warn("lock acquire faulted, deferring to next pass", "task", t.DisplayName(), "error", err)
		if s.metrics.StoreFaults != nil {
			s.metrics.StoreFaults.Add(ctx, 1)
		}
		return false, nil
	}
	if s.metrics.LockWaitMillis != nil {
		s.metrics.LockWaitMillis.Record(ctx, float64(time.Since(lockWaitStart).Milliseconds()))
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("lock release failed", "task", t.DisplayName(), "error", err)
		}
	}()

	if t.CanLoad(st) {
		return false, nil
	}

	ctx, end := telemetry.WithSpan(ctx, "scheduler.execute_task")
	defer end()
	slog.Info("task begin", "task", t.DisplayName())
	_, err = t.Run(ctx, st, true, s.cfg.DebugMode)
	if err != nil {
		slog.Error("task run failed", "task", t.DisplayName(), "error", err)
		return false, err
	}
	slog.Info("task end", "task", t.DisplayName())
	if s.cfg.AggressiveUnload {
		t.UnloadRecursive()
	}
	return true, nil
}
