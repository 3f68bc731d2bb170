// Package engine drives the make state machines for Node and Job (spec
// §4.3): "is it up to date? what must run?", cycle detection, speculative
// and pressure propagation, and the lock-ordering discipline the rest of
// the package tree builds on.
package engine

// NodeState is a Node's make-state-machine position for one Req (spec §4.3
// "Node states: None -> Dep (analyzing candidate jobs) -> {Done, Hit}").
// Interpreted out of req.ReqInfo.State when read from ReqData.Nodes.
type NodeState int8

const (
	NodeNone NodeState = iota
	NodeDep
	NodeDone
	NodeHit
)

// JobState is a Job's make-state-machine position for one Req (spec §4.3
// "Job states: None -> Dep (waiting for static deps) -> Queued -> Exec ->
// {Done, Hit}"). Interpreted out of req.ReqInfo.State when read from
// ReqData.Jobs.
type JobState int8

const (
	JobNone JobState = iota
	JobDep
	JobQueued
	JobExec
	JobDone
	JobHit
)

// Action is one of the four make() actions (spec §4.3).
type Action int8

const (
	ActionWakeup Action = iota // a watched entity finished; recompute
	ActionStatus                // caller wants the result, not necessarily on disk
	ActionDsk                   // caller wants the file present on disk
	ActionQuery                  // pure analysis; no submission occurs
)

// pressureEpsilon is the fraction a pressure update must exceed the current
// value by before it is allowed to propagate upstream (spec §4.3 "Pressure
// updates propagate only when they exceed the current value by >10%").
const pressureEpsilon = 0.10

// PressureChanged reports whether newP differs from oldP by more than the
// >10% propagation-storm guard.
func PressureChanged(oldP, newP float64) bool {
	if oldP == 0 {
		return newP != 0
	}
	delta := newP - oldP
	if delta < 0 {
		delta = -delta
	}
	return delta/oldP > pressureEpsilon
}
