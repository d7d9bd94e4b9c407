package task

// RecursiveDependencies yields every transitive dependency of t, with an
// optional depth cap (maxLevel <= 0 means unbounded). Memoized by hash so
// diamond-shaped graphs are only walked once per node (§9's recursion-cap
// design note).
func RecursiveDependencies(t Resolvable, maxLevel int) []Resolvable {
	seen := map[string]bool{}
	var out []Resolvable
	var walk func(r Resolvable, level int)
	walk = func(r Resolvable, level int) {
		if maxLevel > 0 && level > maxLevel {
			return
		}
		for _, dep := range dependenciesOf(r) {
			h := dep.Hash()
			if seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, dep)
			walk(dep, level+1)
		}
	}
	walk(t, 1)
	return out
}

func dependenciesOf(r Resolvable) []Resolvable {
	if d, ok := r.(interface{ Dependencies() []Resolvable }); ok {
		return d.Dependencies()
	}
	return nil
}

// IterateTask yields t and every transitive dependency exactly once,
// depth-first, supplementing the reference implementation's
// iteratetask() used by the interactive shell to walk a task tree.
func IterateTask(t Resolvable) []Resolvable {
	seen := map[string]bool{}
	var out []Resolvable
	var walk func(r Resolvable)
	walk = func(r Resolvable) {
		h := r.Hash()
		if seen[h] {
			return
		}
		seen[h] = true
		out = append(out, r)
		for _, dep := range dependenciesOf(r) {
			walk(dep)
		}
	}
	walk(t)
	return out
}

// TopologicalSort orders tasks so that every dependency precedes its
// dependents, supplementing the reference implementation's
// topological_sort() (used there to linearize a graph before scheduling
// single-process execution without the store-coordination machinery).
func TopologicalSort(tasks []*Task) []*Task {
	index := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		index[t.Hash()] = t
	}
	visited := map[string]bool{}
	var order []*Task
	var visit func(t *Task)
	visit = func(t *Task) {
		h := t.Hash()
		if visited[h] {
			return
		}
		visited[h] = true
		for _, dep := range t.Dependencies() {
			if dt, ok := index[dep.Hash()]; ok {
				visit(dt)
			}
		}
		order = append(order, t)
	}
	for _, t := range tasks {
		visit(t)
	}
	return order
}

// Describe renders a short human-readable summary of a task and its
// first-level dependencies, supplementing the reference implementation's
// describe() used by the interactive shell.
func Describe(t *Task) string {
	deps := t.Dependencies()
	names := make([]string, len(deps))
	for i, d := range deps {
		if named, ok := d.(interface{ String() string }); ok {
			names[i] = named.String()
		} else {
			names[i] = d.Hash()[:8]
		}
	}
	s := t.DisplayName() + "("
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += n
	}
	return s + ")"
}
