package task

import (
	"context"
	"fmt"

	"github.com/asford/jug/internal/hashing"
	"github.com/asford/jug/internal/store"
)

// UnaryOp is a pure projection applied to a base value, such as
// subscription. It must expose its own hash contribution via Tag and
// HashArg so that a Tasklet's hash is a pure function of its base's hash
// and the operation applied to it.
type UnaryOp interface {
	// Tag names the operation for hashing and display, e.g.
	// "jug.task._getitem".
	Tag() string
	// HashArg is folded into the Tasklet's hash alongside Tag; for
	// subscription this is the index/slice value.
	HashArg() any
	Apply(ctx context.Context, v any) (any, error)
}

// Subscript implements UnaryOp for indexing/slicing, the Go analogue of
// the original project's _getitem helper.
type Subscript struct {
	Index any
}

func (s Subscript) Tag() string    { return "jug.task._getitem" }
func (s Subscript) HashArg() any   { return s.Index }
func (s Subscript) Apply(_ context.Context, v any) (any, error) {
	switch container := v.(type) {
	case []any:
		idx, ok := toInt(s.Index)
		if !ok || idx < 0 || idx >= len(container) {
			return nil, fmt.Errorf("tasklet: index %v out of range for length %d", s.Index, len(container))
		}
		return container[idx], nil
	case map[string]any:
		key, ok := s.Index.(string)
		if !ok {
			return nil, fmt.Errorf("tasklet: non-string key %v against map value", s.Index)
		}
		out, present := container[key]
		if !present {
			return nil, fmt.Errorf("tasklet: key %q not present", key)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tasklet: cannot subscript value of type %T", v)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// Tasklet is a lightweight, unpersisted projection g(value(base)). It is
// recomputed from its base each time its value is demanded; its hash
// depends only on its base's hash and the operation's Tag and HashArg.
type Tasklet struct {
	base Resolvable
	op   UnaryOp
}

// NewTasklet constructs a projection over base.
func NewTasklet(base Resolvable, op UnaryOp) *Tasklet {
	return &Tasklet{base: base, op: op}
}

// Subscripted is a convenience constructor mirroring base[index] in the
// original project's __getitem__ overload.
func Subscripted(base Resolvable, index any) *Tasklet {
	return NewTasklet(base, Subscript{Index: index})
}

// Base returns the underlying node this projection is defined over.
// Implementing this method is what the hash kernel uses to distinguish a
// Tasklet from a Task when folding a dependency's hash into a digest.
func (tl *Tasklet) Base() hashing.Hashable { return tl.base }

// Hash depends on the base's hash plus the operation's own hash.
func (tl *Tasklet) Hash() string {
	d := hashing.New()
	d.Add(tl.op.Tag())
	d.Add(tl.base)
	d.Add(tl.op.HashArg())
	return d.Sum()
}

// Dependencies returns the base node as the Tasklet's sole first-level
// dependency.
func (tl *Tasklet) Dependencies() []Resolvable {
	return []Resolvable{tl.base}
}

// CanLoad is true iff the base is loadable; a Tasklet is never itself
// persisted, so "loadable" here means "computable on demand".
func (tl *Tasklet) CanLoad(s store.Store) bool {
	return tl.base.CanLoad(s)
}

// Value recomputes the projection from the base's materialized value.
func (tl *Tasklet) Value(ctx context.Context) (any, error) {
	base, err := tl.base.Value(ctx)
	if err != nil {
		return nil, err
	}
	return tl.op.Apply(ctx, base)
}

// IsLoaded mirrors the base's in-memory cache state, since a Tasklet has
// no cache of its own.
func (tl *Tasklet) IsLoaded() bool {
	if loaded, ok := tl.base.(interface{ IsLoaded() bool }); ok {
		return loaded.IsLoaded()
	}
	return false
}

// Load ensures the base is loaded; the projection itself is always
// recomputed on Value.
func (tl *Tasklet) Load(s store.Store) error {
	if loader, ok := tl.base.(interface{ Load(store.Store) error }); ok {
		return loader.Load(s)
	}
	return nil
}

func (tl *Tasklet) String() string {
	return fmt.Sprintf("Tasklet(%s)", tl.op.Tag())
}
