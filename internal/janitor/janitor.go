// Package janitor automates the operational lock-staleness sweep §5 leaves
// to an operator ("invoke remove_locks"): a cron-scheduled goroutine that
// periodically calls store.RemoveLocks on a long-lived worker's behalf.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/telemetry"
)

// Janitor wraps a cron schedule that periodically removes every lock
// entry from a store; RemoveLocks does not tell stale locks from locks
// held by live workers, so both are removed. It changes no scheduling or invalidation semantics — it only
// automates a recovery action an operator could otherwise run by hand.
type Janitor struct {
	cron    *cron.Cron
	store   store.Store
	metrics telemetry.Metrics
}

// New builds a Janitor bound to st, sweeping on the given cron schedule
// (e.g. "@every 5m"). Call Start to begin running it; Stop to drain.
func New(st store.Store, schedule string, m telemetry.Metrics) (*Janitor, error) {
	j := &Janitor{
		cron:    cron.New(),
		store:   st,
		metrics: m,
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins running sweeps on the configured schedule.
func (j *Janitor) Start() {
	j.cron.Start()
	slog.Info("janitor started")
}

// Stop waits for any in-flight sweep to finish or ctx to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
		slog.Info("janitor stopped")
		return nil
	case <-ctx.Done():
		slog.Warn("janitor stop timed out")
		return ctx.Err()
	}
}

func (j *Janitor) sweep() {
	runID := uuid.NewString()
	ctx, end := telemetry.WithSpan(context.Background(), "janitor.sweep")
	defer end()
	start := time.Now()

	removed, err := j.store.RemoveLocks()
	if err != nil {
		slog.Error("janitor sweep failed", "run_id", runID, "error", err)
		if j.metrics.StoreFaults != nil {
			j.metrics.StoreFaults.Add(ctx, 1)
		}
		return
	}

	slog.Info("janitor sweep complete",
		"run_id", runID,
		"locks_removed", removed,
		"duration_ms", time.Since(start).Milliseconds())
}
