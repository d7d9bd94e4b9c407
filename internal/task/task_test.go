package task

import (
	"context"
	"errors"
	"testing"

	"github.com/asford/jug/internal/store"
)

func addOneInt(_ context.Context, args []any, _ map[string]any) (any, error) {
	return args[0].(int64) + 1, nil
}

type counter struct{ n int }

// bumpCounter mutates its pointer argument in place, which is exactly the
// kind of task function §7's debug mode exists to catch.
func bumpCounter(_ context.Context, args []any, _ map[string]any) (any, error) {
	c := args[0].(*counter)
	c.n++
	return c.n, nil
}

func TestRunDebugModeDetectsArgumentMutation(t *testing.T) {
	tk, err := New(Func(bumpCounter), &counter{n: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tk.Hash() // memoize the pre-run hash

	mem := store.NewMemory()
	_, err = tk.Run(context.Background(), mem, true, true)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if mem.CanLoad(tk.Hash()) {
		t.Fatalf("result should not have been dumped once the mismatch was detected")
	}
}

func TestRunDebugModePassesWhenArgumentsAreUntouched(t *testing.T) {
	tk, err := New(Func(addOneInt), int64(41))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tk.Hash()

	mem := store.NewMemory()
	v, err := tk.Run(context.Background(), mem, true, true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.(int64) != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

func TestDependenciesFindsNestedTasks(t *testing.T) {
	base, err := New(Func(addOneInt), int64(1))
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	other, err := New(Func(addOneInt), int64(2))
	if err != nil {
		t.Fatalf("new other: %v", err)
	}

	kwargs := map[string]any{"items": []any{base, map[string]any{"nested": other}}}
	parent, err := NewWithKwargs(Func(addOneInt), []any{base}, kwargs, []string{"items"})
	if err != nil {
		t.Fatalf("new parent: %v", err)
	}

	deps := parent.Dependencies()
	if len(deps) != 3 {
		t.Fatalf("expected 3 dependencies (direct arg + two nested), got %d", len(deps))
	}

	seen := map[Resolvable]bool{}
	for _, d := range deps {
		seen[d] = true
	}
	if !seen[base] || !seen[other] {
		t.Fatalf("expected both base and other among dependencies, got %v", deps)
	}
}

func TestCanLoadReflectsStoreContents(t *testing.T) {
	tk, err := New(Func(addOneInt), int64(9))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	mem := store.NewMemory()
	if tk.CanLoad(mem) {
		t.Fatalf("expected CanLoad false before any Dump")
	}
	if err := mem.Dump(tk.Hash(), int64(10)); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !tk.CanLoad(mem) {
		t.Fatalf("expected CanLoad true after Dump")
	}
}

func TestUnloadRecursiveClearsDependencyChain(t *testing.T) {
	base, err := New(Func(addOneInt), int64(1))
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	dependent, err := New(Func(addOneInt), base)
	if err != nil {
		t.Fatalf("new dependent: %v", err)
	}

	base.SetResult(int64(2))
	dependent.SetResult(int64(3))
	if !base.IsLoaded() || !dependent.IsLoaded() {
		t.Fatalf("expected both tasks loaded before unload")
	}

	dependent.UnloadRecursive()
	if base.IsLoaded() {
		t.Fatalf("expected base unloaded after dependent.UnloadRecursive")
	}
	if dependent.IsLoaded() {
		t.Fatalf("expected dependent unloaded after UnloadRecursive")
	}
}
