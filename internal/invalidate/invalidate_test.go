package invalidate

import (
	"context"
	"testing"

	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/task"
)

func identity(_ context.Context, args []any, _ map[string]any) (any, error) {
	return args[0], nil
}

func passThrough(_ context.Context, args []any, _ map[string]any) (any, error) {
	return args[0], nil
}

func TestInvalidationCascade(t *testing.T) {
	a, err := task.New(task.Func(identity), int64(1))
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := task.New(task.Func(passThrough), a)
	if err != nil {
		t.Fatalf("new b: %v", err)
	}
	c, err := task.New(task.Func(passThrough), b)
	if err != nil {
		t.Fatalf("new c: %v", err)
	}

	mem := store.NewMemory()
	for _, tt := range []*task.Task{a, b, c} {
		if err := mem.Dump(tt.Hash(), "result"); err != nil {
			t.Fatalf("dump %s: %v", tt.Name(), err)
		}
	}

	result, err := Run([]*task.Task{a, b, c}, "identity", mem)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksMatched != 3 {
		t.Fatalf("expected all 3 tasks matched by transitive closure, got %d", result.TasksMatched)
	}
	for _, tt := range []*task.Task{a, b, c} {
		if mem.CanLoad(tt.Hash()) {
			t.Fatalf("expected %s to be invalidated", tt.Name())
		}
	}
}

func TestBareNameMatchesSuffix(t *testing.T) {
	a, err := task.New(task.Func(identity), int64(1))
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	mem := store.NewMemory()
	if err := mem.Dump(a.Hash(), "result"); err != nil {
		t.Fatalf("dump: %v", err)
	}
	result, err := Run([]*task.Task{a}, "nonexistent_function_name", mem)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksMatched != 0 {
		t.Fatalf("expected no match, got %d", result.TasksMatched)
	}
	if !mem.CanLoad(a.Hash()) {
		t.Fatalf("expected untouched result to remain loadable")
	}
}
