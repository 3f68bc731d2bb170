// Package backend implements the abstract backend contract (spec §4.6) and
// a concrete local OS-process-pool backend — the one backend flavor in
// scope per spec §1 ("local ... executors"; Slurm/SGE are out of scope).
package backend

import (
	"context"
	"time"

	"lmake/internal/graph"
	"lmake/internal/store"
)

// Liveness is the result of a heartbeat check on one job (spec §4.6
// "heartbeat(job) -> {Alive, Err, Lost}").
type Liveness int8

const (
	Alive Liveness = iota
	Err
	Lost
)

// SubmitAttrs carries per-submission scheduling hints (pressure, requested
// resources) a Backend uses to order and place a job.
type SubmitAttrs struct {
	Pressure  float64
	Resources Resources
}

// Resources is the resource vector a job declares it needs and a Backend
// reserves before starting it (spec §4.6 "mk_lcl(rsrcs, ...)").
type Resources struct {
	CPU    float64
	MemMB  int64
	Tokens int // scheduling unit, GLOSSARY "Token"
}

// Backend is the abstract contract every executor (local, Slurm, SGE)
// implements; only the local flavor is built here (spec §4.6).
type Backend interface {
	Submit(ctx context.Context, job store.Idx, req store.Idx, attrs SubmitAttrs) error
	AddPressure(job store.Idx, req store.Idx, delta float64)
	SetPressure(job store.Idx, req store.Idx, pressure float64)
	KillWaitingJobs(req store.Idx) []store.Idx
	Heartbeat(job store.Idx) Liveness
	HeartbeatAll() map[store.Idx]Liveness
	SubmittedETA(req store.Idx) time.Duration
	MkLcl(rsrcs Resources, localCaps Resources, job store.Idx) Resources
}

// EndReport is what JobEnd receives from a finished job process (spec §4.6
// "JobEnd receives the final digest: observed deps, produced targets with
// CRCs, exit status, stderr/stdout, resource usage").
type EndReport struct {
	Job        store.Idx
	Status     graph.ExecStatus
	ExecTime   time.Duration
	Stdout     []string
	Stderr     []string
	ExitCode   int
	Deps       graph.DepVector
	TargetCrcs map[store.Idx]store.Idx // node -> crc placeholder index, filled by caller
}
