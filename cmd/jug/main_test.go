package main

import (
	"context"
	"testing"

	"github.com/asford/jug"
	"github.com/asford/jug/internal/task"
)

func addOne(_ context.Context, args []any, _ map[string]any) (any, error) {
	return args[0].(int64) + 1, nil
}

func TestRunExecuteAndStatus(t *testing.T) {
	dir := t.TempDir()
	jug.Register(func(r *task.Registry) error {
		a, err := task.New(task.Func(addOne), int64(1))
		if err != nil {
			return err
		}
		r.Add(a)
		return nil
	})

	if code := run([]string{"execute", "-dir", dir}); code != 0 {
		t.Fatalf("execute: exit code %d", code)
	}
	if code := run([]string{"status", "-dir", dir}); code != 0 {
		t.Fatalf("status: exit code %d", code)
	}
	if code := run([]string{"check", "-dir", dir}); code != 0 {
		t.Fatalf("check: expected all tasks loadable, got exit code %d", code)
	}
	if code := run([]string{"count", "-dir", dir}); code != 0 {
		t.Fatalf("count: exit code %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"bogus"}); code != 2 {
		t.Fatalf("expected exit code 2 for unknown command, got %d", code)
	}
}
