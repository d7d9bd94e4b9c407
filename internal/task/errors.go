package task

import "errors"

// ErrGraphConstruction is returned when a Task cannot be constructed, e.g.
// from a function literal with no stable name (§4.1).
var ErrGraphConstruction = errors.New("task: graph construction error")

// ErrHashMismatch is returned by debug-mode execution when a task's hash
// differs before and after Run, indicating the function mutated an
// argument (§7).
var ErrHashMismatch = errors.New("task: hash mismatch")
