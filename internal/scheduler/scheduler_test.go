package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/task"
)

func double(_ context.Context, args []any, _ map[string]any) (any, error) {
	return args[0].(int64) * 2, nil
}

func addOne(_ context.Context, args []any, _ map[string]any) (any, error) {
	return args[0].(int64) + 1, nil
}

func TestSchedulerExecutesDependencyChain(t *testing.T) {
	registry := task.NewRegistry()

	base, err := task.New(task.Func(double), int64(10))
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	registry.Add(base)

	dependent, err := task.New(task.Func(addOne), base)
	if err != nil {
		t.Fatalf("new dependent: %v", err)
	}
	registry.Add(dependent)

	cfg := DefaultConfig()
	cfg.WaitCycleTime = time.Millisecond
	cfg.WaitCycles = 2
	sched := New(cfg, noopMetrics())

	mem := store.NewMemory()
	executed, err := sched.Run(context.Background(), registry, mem)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(executed) != 2 {
		t.Fatalf("expected 2 tasks executed, got %d", len(executed))
	}

	if !mem.CanLoad(base.Hash()) {
		t.Fatalf("expected base result in store")
	}
	if !mem.CanLoad(dependent.Hash()) {
		t.Fatalf("expected dependent result in store")
	}
	v, err := mem.Load(dependent.Hash())
	if err != nil {
		t.Fatalf("load dependent: %v", err)
	}
	if v.(int64) != 21 {
		t.Fatalf("expected 21, got %v", v)
	}
}

func TestSchedulerSkipsAlreadyFinishedTasks(t *testing.T) {
	registry := task.NewRegistry()
	base, err := task.New(task.Func(double), int64(5))
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	registry.Add(base)

	mem := store.NewMemory()
	if err := mem.Dump(base.Hash(), int64(10)); err != nil {
		t.Fatalf("pre-seed store: %v", err)
	}

	cfg := DefaultConfig()
	cfg.WaitCycleTime = time.Millisecond
	sched := New(cfg, noopMetrics())
	executed, err := sched.Run(context.Background(), registry, mem)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(executed) != 0 {
		t.Fatalf("expected no tasks executed (already finished), got %d", len(executed))
	}
}
