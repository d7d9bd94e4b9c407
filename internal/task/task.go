// Package task implements the in-memory task graph (C4): Task and
// Tasklet nodes, the process-wide registry, dependency iteration, and
// the value() resolution helper.
package task

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/asford/jug/internal/hashing"
	"github.com/asford/jug/internal/store"
)

// Func is a registered task function. It receives materialized
// positional and keyword arguments and returns a value or an error.
type Func func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Named lets a Func report a stable qualified name explicitly, the Go
// analogue of __jug_name__ overriding a lambda's unnameable identity.
type Named interface {
	JugName() string
}

// DisplayNamed overrides the reporting name without affecting the hash,
// mirroring __jug_display_name__.
type DisplayNamed interface {
	JugDisplayName() string
}

// Resolvable is anything value() knows how to materialize: Task and
// Tasklet both implement it.
type Resolvable interface {
	hashing.Hashable
	Value(ctx context.Context) (any, error)
	Dependencies() []Resolvable
	CanLoad(s store.Store) bool
}

// Task represents f(args..., kwargs...). Constructed once by the user's
// graph-building code and never mutated afterward except for its caches
// (hash, in-memory result, lock handle).
type Task struct {
	name        string
	displayName string
	f           Func
	args        []any
	kwargs      map[string]any
	kwargOrder  []string

	mu       sync.Mutex
	hash     string
	hasHash  bool
	result   any
	hasResult bool
	lock     store.Lock
}

// New constructs a Task. fn must report a stable name via runtime
// reflection or the Named interface; function literals (closures without
// a package-qualified name) are rejected, mirroring the rejection of
// Python lambdas in the original project.
func New(fn any, args ...any) (*Task, error) {
	return NewWithKwargs(fn, args, nil, nil)
}

// NewWithKwargs is the general constructor, accepting keyword arguments
// with an explicit insertion order (Go maps do not preserve one, but
// §4.1(c) requires kwargs to be hashed in insertion order).
func NewWithKwargs(fn any, args []any, kwargs map[string]any, kwargOrder []string) (*Task, error) {
	name, display, wrapped, err := resolveFunc(fn)
	if err != nil {
		return nil, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	t := &Task{
		name:        name,
		displayName: display,
		f:           wrapped,
		args:        append([]any(nil), args...),
		kwargs:      kwargs,
		kwargOrder:  append([]string(nil), kwargOrder...),
	}
	return t, nil
}

func resolveFunc(fn any) (name, display string, wrapped Func, err error) {
	switch f := fn.(type) {
	case Func:
		wrapped = f
	case func(context.Context, []any, map[string]any) (any, error):
		wrapped = Func(f)
	default:
		return "", "", nil, fmt.Errorf("task: unsupported function value of type %T", fn)
	}

	if n, ok := fn.(Named); ok {
		name = n.JugName()
	} else {
		name = qualifiedFuncName(wrapped)
		if name == "" || strings.Contains(name, ".func") {
			return "", "", nil, fmt.Errorf("task: %w: function literals have no stable name, wrap in a named function or implement Named", ErrGraphConstruction)
		}
	}
	display = name
	if d, ok := fn.(DisplayNamed); ok {
		display = d.JugDisplayName()
	}
	return name, display, wrapped, nil
}

func qualifiedFuncName(f Func) string {
	pc := reflect.ValueOf(f).Pointer()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	return fn.Name()
}

// Name returns the fully qualified hashing identity of the task.
func (t *Task) Name() string { return t.name }

// DisplayName returns the reporting name, which may differ from Name but
// never affects the hash.
func (t *Task) DisplayName() string { return t.displayName }

// Hash returns the 40-hex digest, computing and memoizing it on first
// call.
func (t *Task) Hash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasHash {
		return t.hash
	}
	return t.computeHashLocked()
}

func (t *Task) computeHashLocked() string {
	h := hashing.TaskHash(t.name, t.args, t.kwargs, t.kwargOrder)
	t.hash = h
	t.hasHash = true
	return h
}

// checkHash recomputes the hash and compares it to the memoized value; a
// mismatch means the task's function mutated an argument after hashing
// (§4.1's debug-mode mutation check).
func (t *Task) checkHash() error {
	t.mu.Lock()
	prior := t.hash
	hadHash := t.hasHash
	fresh := hashing.TaskHash(t.name, t.args, t.kwargs, t.kwargOrder)
	if !hadHash {
		t.hash, t.hasHash = fresh, true
	}
	t.mu.Unlock()
	if hadHash && prior != fresh {
		return fmt.Errorf("%w: task %s: hash changed from %s to %s; the task function likely mutated an argument", ErrHashMismatch, t.name, prior, fresh)
	}
	return nil
}

// Dependencies returns every Task/Tasklet appearing anywhere inside
// positional args, kwargs, or nested within lists/tuples/maps — a
// first-level enumeration, not recursive.
func (t *Task) Dependencies() []Resolvable {
	var deps []Resolvable
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case Resolvable:
			deps = append(deps, x)
		case []any:
			for _, e := range x {
				walk(e)
			}
		case map[string]any:
			for _, e := range x {
				walk(e)
			}
		}
	}
	for _, a := range t.args {
		walk(a)
	}
	for _, k := range t.kwargOrder {
		walk(t.kwargs[k])
	}
	return deps
}

// CanRun reports whether every dependency's value is already resolvable
// (either cached in memory or loadable from the store).
func (t *Task) CanRun(s store.Store) bool {
	for _, dep := range t.Dependencies() {
		if l, ok := dep.(interface{ IsLoaded() bool }); ok && l.IsLoaded() {
			continue
		}
		if !dep.CanLoad(s) {
			return false
		}
	}
	return true
}

// CanLoad reports whether this task's result is present in the store.
func (t *Task) CanLoad(s store.Store) bool {
	return s.CanLoad(t.Hash())
}

// IsLoaded reports whether the result is cached in memory.
func (t *Task) IsLoaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasResult
}

// Load reads the result from the store into memory unconditionally.
func (t *Task) Load(s store.Store) error {
	v, err := s.Load(t.Hash())
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.result = v
	t.hasResult = true
	t.mu.Unlock()
	return nil
}

// Value returns the result cached in memory. It does not read the store
// (the package-level Value loads first); with nothing cached it returns
// an error.
func (t *Task) Value(ctx context.Context) (any, error) {
	t.mu.Lock()
	if t.hasResult {
		v := t.result
		t.mu.Unlock()
		return v, nil
	}
	t.mu.Unlock()
	return nil, fmt.Errorf("task: %s: value requested before load or run", t.name)
}

// SetResult caches a result in memory without touching the store (used
// right after Run succeeds).
func (t *Task) SetResult(v any) {
	t.mu.Lock()
	t.result = v
	t.hasResult = true
	t.mu.Unlock()
}

// Unload drops the in-memory result cache.
func (t *Task) Unload() {
	t.mu.Lock()
	t.hasResult = false
	t.result = nil
	t.mu.Unlock()
}

// UnloadRecursive unloads this task and every transitive dependency,
// used by the scheduler's aggressive-unload mode.
func (t *Task) UnloadRecursive() {
	visited := map[Resolvable]bool{}
	var walk func(r Resolvable)
	walk = func(r Resolvable) {
		if visited[r] {
			return
		}
		visited[r] = true
		if u, ok := r.(interface{ Unload() }); ok {
			u.Unload()
		}
		if d, ok := r.(interface{ Dependencies() []Resolvable }); ok {
			for _, dep := range d.Dependencies() {
				walk(dep)
			}
		}
	}
	walk(t)
}

// Lock returns the store-backed lock handle for this task, creating it
// on first use.
func (t *Task) Lock(s store.Store) store.Lock {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		t.lock = s.GetLock(t.Hash())
	}
	return t.lock
}

// Run executes the task's function against materialized dependency
// values and, if save is true, persists the encoded result to the store.
// debugMode recomputes and verifies the hash before and after execution.
func (t *Task) Run(ctx context.Context, s store.Store, save bool, debugMode bool) (any, error) {
	if !t.CanRun(s) {
		return nil, fmt.Errorf("task: %s: run called before dependencies were resolvable", t.name)
	}
	if debugMode {
		if err := t.checkHash(); err != nil {
			return nil, err
		}
	}
	args := make([]any, len(t.args))
	for i, a := range t.args {
		v, err := Value(ctx, a, s)
		if err != nil {
			return nil, fmt.Errorf("task: %s: resolving arg %d: %w", t.name, i, err)
		}
		args[i] = v
	}
	kwargs := make(map[string]any, len(t.kwargs))
	for k, a := range t.kwargs {
		v, err := Value(ctx, a, s)
		if err != nil {
			return nil, fmt.Errorf("task: %s: resolving kwarg %q: %w", t.name, k, err)
		}
		kwargs[k] = v
	}
	result, err := t.f(ctx, args, kwargs)
	if err != nil {
		return nil, err
	}
	t.SetResult(result)
	if debugMode {
		// Checked before Dump so that a result computed from mutated
		// arguments is never saved.
		if err := t.checkHash(); err != nil {
			return nil, err
		}
	}
	if save {
		if err := s.Dump(t.Hash(), result); err != nil {
			return nil, fmt.Errorf("task: %s: dump: %w", t.name, err)
		}
	}
	return result, nil
}

// Invalidate removes this task's result from the store.
func (t *Task) Invalidate(s store.Store) (bool, error) {
	return s.Remove(t.Hash())
}

func (t *Task) String() string {
	return fmt.Sprintf("Task(%s)", t.displayName)
}

// Value is the universal resolution helper (§4.1): Task/Tasklet values
// resolve recursively (loading from the store if needed); slices and maps
// recurse element-wise; anything else passes through unchanged.
func Value(ctx context.Context, x any, s store.Store) (any, error) {
	switch v := x.(type) {
	case Resolvable:
		if t, ok := v.(interface{ IsLoaded() bool }); ok && t.IsLoaded() {
			return v.Value(ctx)
		}
		if v.CanLoad(s) {
			if loader, ok := v.(interface{ Load(store.Store) error }); ok {
				if err := loader.Load(s); err != nil {
					return nil, err
				}
			}
			return v.Value(ctx)
		}
		return v.Value(ctx)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			r, err := Value(ctx, e, s)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			r, err := Value(ctx, e, s)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return x, nil
	}
}
