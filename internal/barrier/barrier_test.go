package barrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asford/jug/internal/task"
)

func TestCatchSwallowsBarrierError(t *testing.T) {
	hasBarrier, err := Catch(func() error { return Raise("waiting on value") })
	if err != nil {
		t.Fatalf("expected barrier to be swallowed, got %v", err)
	}
	if !hasBarrier {
		t.Fatalf("expected hasBarrier true")
	}
}

func TestCatchPropagatesOtherErrors(t *testing.T) {
	want := errors.New("boom")
	hasBarrier, err := Catch(func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if hasBarrier {
		t.Fatalf("expected hasBarrier false for a non-barrier error")
	}
}

func TestLoopRunsOnceWithoutBarrier(t *testing.T) {
	registry := task.NewRegistry()
	builds := 0
	build := func(r *task.Registry) error { builds++; return nil }
	runs := 0
	run := func(ctx context.Context, r *task.Registry) ([]*task.Task, error) {
		runs++
		return nil, nil
	}
	_, err := Loop(context.Background(), registry, build, run, time.Millisecond, 3)
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if builds != 1 || runs != 1 {
		t.Fatalf("expected exactly one build/run cycle, got builds=%d runs=%d", builds, runs)
	}
}

func TestLoopRetriesOnBarrierUntilExhausted(t *testing.T) {
	registry := task.NewRegistry()
	build := func(r *task.Registry) error { return Raise("still waiting") }
	runs := 0
	run := func(ctx context.Context, r *task.Registry) ([]*task.Task, error) {
		runs++
		return nil, nil
	}
	_, err := Loop(context.Background(), registry, build, run, time.Millisecond, 2)
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if runs != 3 {
		t.Fatalf("expected 3 cycles (initial + 2 retries), got %d", runs)
	}
}
