package graph

import (
	"time"

	"lmake/internal/rule"
	"lmake/internal/store"
)

// RunStatus is a Job's coarse outcome, stored persistently (spec §3 Job:
// "run_status (Ok / DepErr / MissingStatic / Err)").
type RunStatus int8

const (
	RunOk RunStatus = iota
	RunDepErr
	RunMissingStatic
	RunErr
)

// ExecStatus is the outcome of a Job's most recent execution attempt
// (spec §3 Job: "last execution status (Ok, EarlyErr, LateLost, …)").
type ExecStatus int8

const (
	ExecNone ExecStatus = iota
	ExecOk
	ExecEarlyErr
	ExecLateLost
	ExecRunErr
	// ExecUpToDate marks a job whose deps all still matched their recorded
	// state (DepVector.UpToDate), so make() skipped re-execution entirely
	// (spec §8 Scenario A: "stats.ended[Rerun] == 0" on an unchanged repo).
	ExecUpToDate
)

// Job is one potential execution of one rule with a fixed assignment of
// its static stems (spec §3 "Job").
type Job struct {
	RuleCrc rule.RuleCrc
	Stems   map[string]string

	// Targets holds this job's static targets, in the rule's matches-table
	// order; owned exclusively by the Job and rewritten wholesale each time
	// the job is run (spec §3 invariant on Deps/Targets ownership).
	Targets store.Idx // index into a *store.VectorFile[store.Idx] of Node indices

	// Deps holds this job's dependencies, static and dynamically
	// discovered, packed into the run-length chunked representation
	// (spec §4.4, see Dep/DepVector).
	Deps DepVector

	RunStatus  RunStatus
	ExecStatus ExecStatus

	ExecTime time.Duration
	Cost     float64

	Backend string

	NSubmits int
	NRuns    int
	NLosts   int

	// StartupErr records a thrown (msg, stderr) pair caught during
	// attribute evaluation (cmd/resources/env), before any process was
	// spawned (spec §7 "a thrown (msg, stderr) pair is caught and attached
	// to the job as a startup error").
	StartupErr *StartupError

	StderrTail []string // last max_err_lines of stderr, spec §7 RunError
}

// StartupError is thrown before execution: cmd evaluation failed, washing
// failed, or resources could not be attributed (spec §7 "EarlyError").
type StartupError struct {
	Msg    string
	Stderr string
}

func (e *StartupError) Error() string { return e.Msg }
