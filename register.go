// Package jug holds the registration point for the graph-building
// function the CLI runs, the Go analogue of importing a jugfile: Go has no
// runtime exec(source), so the "script" (§1's external collaborator) is
// any function registered here before cmd/jug dispatches a command.
// cmd/jug is a main package and exports no entry point, so Register has
// to be called from code built into that binary.
package jug

import (
	"fmt"
	"sync"

	"github.com/asford/jug/internal/task"
)

var (
	buildMu sync.Mutex
	build   task.Builder
)

// Register installs the graph-building function the CLI will invoke (and
// re-invoke, on every barrier reload) to populate a fresh Registry. A
// second call overwrites the first; only one build function is active at
// a time.
func Register(fn task.Builder) {
	buildMu.Lock()
	defer buildMu.Unlock()
	build = fn
}

// Build returns the registered build function, or an error if none has
// been registered.
func Build() (task.Builder, error) {
	buildMu.Lock()
	defer buildMu.Unlock()
	if build == nil {
		return nil, fmt.Errorf("jug: no graph-building function registered; call jug.Register before running a command")
	}
	return build, nil
}
