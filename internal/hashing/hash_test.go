package hashing

import "testing"

type fakeTask struct{ h string }

func (f fakeTask) Hash() string { return f.h }

func TestTaskHashStableForEqualArgs(t *testing.T) {
	h1 := TaskHash("pkg.Square", []any{int64(4)}, nil, nil)
	h2 := TaskHash("pkg.Square", []any{int64(4)}, nil, nil)
	if h1 != h2 {
		t.Fatalf("expected equal hashes, got %s != %s", h1, h2)
	}
	if len(h1) != 40 {
		t.Fatalf("expected 40 hex chars, got %d (%s)", len(h1), h1)
	}
}

func TestTaskHashDiffersForDifferentArgs(t *testing.T) {
	h1 := TaskHash("pkg.Square", []any{int64(4)}, nil, nil)
	h2 := TaskHash("pkg.Square", []any{int64(5)}, nil, nil)
	if h1 == h2 {
		t.Fatalf("expected different hashes for different args")
	}
}

func TestTaskHashDependsOnDependencyHash(t *testing.T) {
	dep1 := fakeTask{h: "0000000000000000000000000000000000000a"}
	dep2 := fakeTask{h: "0000000000000000000000000000000000000b"}
	h1 := TaskHash("pkg.Add", []any{dep1}, nil, nil)
	h2 := TaskHash("pkg.Add", []any{dep2}, nil, nil)
	if h1 == h2 {
		t.Fatalf("expected hash to depend on dependency's hash")
	}
}

func TestTaskHashKwargOrderInsensitiveToMapIteration(t *testing.T) {
	kwargs := map[string]any{"a": int64(1), "b": int64(2)}
	h1 := TaskHash("pkg.F", nil, kwargs, []string{"a", "b"})
	h2 := TaskHash("pkg.F", nil, kwargs, []string{"a", "b"})
	if h1 != h2 {
		t.Fatalf("expected stable hash across repeated calls")
	}
	h3 := TaskHash("pkg.F", nil, kwargs, []string{"b", "a"})
	if h1 == h3 {
		t.Fatalf("expected hash to be sensitive to kwarg insertion order")
	}
}

func TestSetMembersHashRegardlessOfOrder(t *testing.T) {
	d1 := New()
	d1.Add(Set{int64(1), int64(2), int64(3)})
	d2 := New()
	d2.Add(Set{int64(3), int64(1), int64(2)})
	if d1.Sum() != d2.Sum() {
		t.Fatalf("expected set hash to be order-independent")
	}
}

func TestOf40Hex(t *testing.T) {
	h := Of("hello")
	if len(h) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(h))
	}
}
