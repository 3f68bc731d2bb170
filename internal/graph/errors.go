package graph

import (
	"fmt"

	"lmake/internal/store"
)

// RunError is the base taxonomy of job-execution failures (spec §7). Each
// concrete kind below implements it so callers can keep a single error
// value per job while still switching on the precise cause.
type RunError interface {
	error
	runError()
}

// DepError reports that at least one static dependency failed to build
// (spec §7 "DepErr: a static dep could not be made").
type DepError struct {
	Node store.Idx
	Path string
}

func (e *DepError) Error() string { return fmt.Sprintf("dep %s could not be made", e.Path) }
func (*DepError) runError()       {}

// MissingStaticError reports that a job ran to completion without writing
// one of its declared static targets (spec §7 "MissingStatic").
type MissingStaticError struct {
	Target string
}

func (e *MissingStaticError) Error() string {
	return fmt.Sprintf("static target %s was not produced", e.Target)
}
func (*MissingStaticError) runError() {}

// EarlyError reports a failure caught before the job's process was ever
// spawned: cmd/resources/env attribute evaluation threw (spec §7
// "EarlyError: thrown (msg, stderr) pair caught pre-execution").
type EarlyError struct {
	*StartupError
}

func (*EarlyError) runError() {}

// RunFailedError reports that a job ran to completion but exited non-zero
// (spec §7 "RunError: the job ran and returned a non-zero exit code",
// named here RunFailedError to avoid colliding with the RunError interface
// this taxonomy implements).
type RunFailedError struct {
	JobName    string
	ExitCode   int
	StderrTail []string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("job %s exited %d", e.JobName, e.ExitCode)
}
func (*RunFailedError) runError() {}

// LostError reports that a job's backend lost track of it mid-execution —
// the process vanished without the backend observing a normal exit (spec §7
// "LostError: the backend lost contact with a running job").
type LostError struct {
	JobName string
	Reason  string
}

func (e *LostError) Error() string {
	return fmt.Sprintf("job %s lost: %s", e.JobName, e.Reason)
}
func (*LostError) runError() {}

// OverwrittenNodeError reports that a node was written by a job other than
// its conform producer after the fact, violating single-writer ownership
// (spec §7 "OverwrittenNode").
type OverwrittenNodeError struct {
	Node        store.Idx
	By, Conform store.Idx
}

func (e *OverwrittenNodeError) Error() string {
	return fmt.Sprintf("node overwritten by job %d, conform producer is %d", e.By, e.Conform)
}
func (*OverwrittenNodeError) runError() {}

// CycleError reports a dependency cycle discovered while walking the
// stuck-node graph (spec §7 "Cycle").
type CycleError struct {
	Path []store.Idx // node indices forming the cycle, in traversal order
}

func (e *CycleError) Error() string { return fmt.Sprintf("dependency cycle through %d nodes", len(e.Path)) }
func (*CycleError) runError()       {}

// InfinitePathError reports a node whose own path, once resolved through
// symlinks, is an ancestor of itself (spec §7 "InfinitePath").
type InfinitePathError struct {
	Path string
}

func (e *InfinitePathError) Error() string { return fmt.Sprintf("infinite path at %s", e.Path) }
func (*InfinitePathError) runError()       {}

// InfiniteDepError reports a dep chain that cannot terminate because each
// candidate producer depends, transitively, on the node it would produce,
// without forming a literal Cycle (e.g. through a star target whose stem
// keeps growing) (spec §7 "InfiniteDep").
type InfiniteDepError struct {
	Node store.Idx
}

func (e *InfiniteDepError) Error() string { return "infinite dependency chain" }
func (*InfiniteDepError) runError()       {}

// ConfigError reports that a rule or repo configuration could not be
// compiled (spec §7 "ConfigError").
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }
func (*ConfigError) runError()       {}
