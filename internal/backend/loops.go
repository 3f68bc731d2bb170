package backend

import (
	"context"
	"time"

	"lmake/internal/graph"
	"lmake/internal/store"
)

// Loops drives the three dedicated engine loops spec §4.6 names: JobStart
// (hands a submitted job to its backend), JobMngt (relays chk_deps/decode
// traffic while a job runs), and JobEnd (applies an EndReport to the
// persistent Job record). Each is a plain method, not a goroutine of its
// own, so callers can run them from whatever scheduling loop fits their
// harness (an autodep-fed channel in production, a synchronous call in
// tests).
type Loops struct {
	Jobs    *store.SimpleFile[graph.Job]
	Backend Backend
	Sweeper *HeartbeatSweeper

	MaxRetriesOnLost int
}

// JobStart submits job to its backend and (if present) starts tracking it
// for heartbeat sweeps.
func (l *Loops) JobStart(ctx context.Context, job store.Idx, req store.Idx, attrs SubmitAttrs) error {
	j := l.Jobs.Get(job)
	j.NSubmits++
	l.Jobs.Assign(job, j)

	if err := l.Backend.Submit(ctx, job, req, attrs); err != nil {
		return err
	}
	if l.Sweeper != nil {
		l.Sweeper.Track(job)
	}
	return nil
}

// JobMngt relays a single chk_deps/decode/heartbeat touch from the job's
// wire connection, marking it seen so the heartbeat sweep doesn't treat an
// actively chatty job as lost.
func (l *Loops) JobMngt(job store.Idx) {
	if lb, ok := l.Backend.(*Local); ok {
		lb.MarkSeen(job)
	}
}

// JobEnd applies rpt to job's persistent record (spec §4.6 "JobEnd receives
// the final digest ... and applies it to the Job"), releasing the backend
// slot and untracking the heartbeat sweep. A LateLost report that has not
// yet exceeded max_retries_on_lost returns retry=true and leaves RunStatus
// unchanged, rather than setting RunErr (spec §8 Scenario F).
func (l *Loops) JobEnd(job store.Idx, rpt EndReport) (retry bool) {
	j := l.Jobs.Get(job)
	j.ExecStatus = rpt.Status
	j.ExecTime = rpt.ExecTime
	j.StderrTail = rpt.Stderr
	j.NRuns++

	switch rpt.Status {
	case graph.ExecOk:
		j.RunStatus = graph.RunOk
	case graph.ExecLateLost:
		j.NLosts++
		if j.NLosts <= l.MaxRetriesOnLost {
			retry = true
		} else {
			j.RunStatus = graph.RunErr
		}
	case graph.ExecEarlyErr:
		j.RunStatus = graph.RunErr
	case graph.ExecRunErr:
		j.RunStatus = graph.RunErr
	}

	l.Jobs.Assign(job, j)

	if lb, ok := l.Backend.(*Local); ok {
		lb.Release(job)
	}
	if l.Sweeper != nil {
		l.Sweeper.Untrack(job)
	}
	return retry
}

// lostEndReport synthesizes the EndReport a heartbeat sweep produces when a
// backend reports a job Lost without the job ever reporting back (spec §4.6
// "a heartbeat-detected loss synthesizes a LateLost JobEndRpcReq").
func lostEndReport(job store.Idx, since time.Time) EndReport {
	return EndReport{
		Job:      job,
		Status:   graph.ExecLateLost,
		ExecTime: time.Since(since),
		Stderr:   []string{"job lost: no heartbeat response"},
	}
}
