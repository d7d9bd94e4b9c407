package barrier

import (
	"context"
	"log/slog"
	"time"

	"github.com/asford/jug/internal/task"
)

// Loop re-enters scheduling in phases: rebuild the graph, run one
// scheduler pass set, and if the builder raised a barrier, repeat, sleeping
// first only when that run executed nothing — exactly as the reference project's outer execute() loop does
// around Executor.execute_loop, reusing reloadCycles as its wait-cycle
// budget. If build never raises a barrier, Loop runs exactly once.
func Loop(ctx context.Context, registry *task.Registry, build func(r *task.Registry) error, run func(ctx context.Context, registry *task.Registry) ([]*task.Task, error), reloadWait time.Duration, reloadCycles int) ([]*task.Task, error) {
	var allExecuted []*task.Task
	for cycles := reloadCycles; ; {
		registry.Clear()
		hasBarrier, err := Catch(func() error { return build(registry) })
		if err != nil {
			return allExecuted, err
		}

		executed, err := run(ctx, registry)
		if err != nil {
			return allExecuted, err
		}
		allExecuted = append(allExecuted, executed...)

		if !hasBarrier {
			return allExecuted, nil
		}
		if len(executed) == 0 {
			if cycles <= 0 {
				slog.Info("barrier loop ending, no tasks can be run")
				return allExecuted, nil
			}
			cycles--
			slog.Info("waiting to recycle barrier", "wait", reloadWait, "remaining_cycles", cycles)
			select {
			case <-ctx.Done():
				return allExecuted, ctx.Err()
			case <-time.After(reloadWait):
			}
		}
	}
}
