// Package invalidate implements the invalidator (C6): given a name
// pattern, transitively marks tasks whose result must be dropped from
// the store.
package invalidate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asford/jug/internal/hashing"
	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/task"
)

// baseHolder is implemented by Tasklet: a value with no name of its own,
// whose invalidity is entirely inherited from its base.
type baseHolder interface {
	Base() hashing.Hashable
}

// Result reports, per logical task name, how many store entries were
// actually removed (a task may match the pattern without ever having a
// result present).
type Result struct {
	Counts         map[string]int
	TasksMatched   int
	ResultsRemoved int
}

// Run parses pattern per §4.4 — `/.../ ` is a regular expression against
// the task's name, a name containing `.` is matched as a literal fully
// qualified name, and a bare name is matched against the `.name` suffix —
// computes the transitive closure of tasks tainted by a match, and
// removes each one's store entry.
func Run(tasks []*task.Task, pattern string, s store.Store) (Result, error) {
	matcher, err := compilePattern(pattern)
	if err != nil {
		return Result{}, fmt.Errorf("invalidate: %w", err)
	}

	memo := map[string]bool{}
	var isInvalid func(t *task.Task) bool
	isInvalid = func(t *task.Task) bool {
		h := t.Hash()
		if v, ok := memo[h]; ok {
			return v
		}
		// Break cycles conservatively; the graph is acyclic by
		// construction (§9), but a self-referential memo entry guards
		// against a pathological re-entrant call during the walk.
		memo[h] = false
		if matcher(t.Name()) {
			memo[h] = true
			return true
		}
		for _, dep := range t.Dependencies() {
			if depInvalid(dep, isInvalid) {
				memo[h] = true
				return true
			}
		}
		return false
	}

	counts := map[string]int{}
	matched := 0
	removed := 0
	for _, t := range tasks {
		if !isInvalid(t) {
			continue
		}
		matched++
		ok, err := s.Remove(t.Hash())
		if err != nil {
			return Result{Counts: counts}, fmt.Errorf("invalidate: removing %s: %w", t.Name(), err)
		}
		if ok {
			counts[t.Name()]++
			removed++
		}
	}
	return Result{Counts: counts, TasksMatched: matched, ResultsRemoved: removed}, nil
}

// depInvalid recurses through a Tasklet to its base, mirroring isinvalid's
// special-case for Tasklet in the reference implementation: a Tasklet has
// no name of its own to match, so invalidity is entirely inherited from
// its base.
func depInvalid(dep task.Resolvable, isInvalid func(*task.Task) bool) bool {
	switch d := dep.(type) {
	case *task.Task:
		return isInvalid(d)
	case baseHolder:
		if base, ok := d.Base().(*task.Task); ok {
			return isInvalid(base)
		}
		return false
	default:
		return false
	}
}

func compilePattern(pattern string) (func(name string) bool, error) {
	switch {
	case strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) >= 2:
		re, err := regexp.Compile(strings.Trim(pattern, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
		}
		return re.MatchString, nil
	case strings.Contains(pattern, "."):
		return func(name string) bool { return name == pattern }, nil
	default:
		suffix := "." + pattern
		return func(name string) bool { return strings.HasSuffix(name, suffix) }, nil
	}
}
