package jug

import (
	"testing"

	"github.com/asford/jug/internal/task"
)

func TestBuildReturnsErrorWhenUnregistered(t *testing.T) {
	buildMu.Lock()
	build = nil
	buildMu.Unlock()

	if _, err := Build(); err == nil {
		t.Fatalf("expected an error when no build function has been registered")
	}
}

func TestRegisterThenBuild(t *testing.T) {
	called := false
	Register(func(r *task.Registry) error {
		called = true
		return nil
	})
	fn, err := Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := fn(task.NewRegistry()); err != nil {
		t.Fatalf("fn: %v", err)
	}
	if !called {
		t.Fatalf("expected registered function to be invoked")
	}
}
