package backend

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"lmake/internal/logging"
	"lmake/internal/store"
)

// jobRecord is what Local tracks about one submitted job.
type jobRecord struct {
	req       store.Idx
	attrs     SubmitAttrs
	startedAt time.Time
	nLosts    int
	lastSeen  time.Time
	waiting   bool
}

// Local is a local OS-process-pool Backend (spec §4.6). Concurrency is
// bounded by a weighted semaphore (golang.org/x/sync/semaphore; the teacher
// already depends on golang.org/x/sync for errgroup-based fan-out in
// internal/campaign and internal/perception, so this reaches for the
// sibling package of the same module for the same bounded-concurrency
// concern here: capping concurrent job slots). Pressure updates are
// rate-limited with golang.org/x/time/rate, drawn from the rest of the
// example pack's rate-limiting middleware, to bound propagation storms per
// spec §4.3's >10% guard, applied here to the submission side of the same
// concern.
type Local struct {
	mu       sync.Mutex
	jobs     map[store.Idx]*jobRecord
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	workload *Workload
	maxLosts int

	log *logging.Logger
}

// NewLocal returns a Local backend with capacity concurrent job slots.
func NewLocal(capacity int64, maxLosts int) *Local {
	return &Local{
		jobs:     make(map[store.Idx]*jobRecord),
		sem:      semaphore.NewWeighted(capacity),
		limiter:  rate.NewLimiter(rate.Limit(50), 10), // at most 50 pressure updates/sec, burst 10
		workload: NewWorkload(),
		maxLosts: maxLosts,
		log:      logging.Get(logging.CategoryBackend),
	}
}

func (b *Local) Submit(ctx context.Context, job store.Idx, req store.Idx, attrs SubmitAttrs) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	b.mu.Lock()
	b.jobs[job] = &jobRecord{req: req, attrs: attrs, startedAt: time.Now(), lastSeen: time.Now(), waiting: true}
	b.mu.Unlock()
	b.workload.Start(job, attrs.Resources.Tokens)
	return nil
}

// Release frees job's process slot once it has ended; callers invoke this
// from the JobEnd loop once EndReport has been consumed.
func (b *Local) Release(job store.Idx) {
	b.mu.Lock()
	delete(b.jobs, job)
	b.mu.Unlock()
	b.sem.Release(1)
	b.workload.End(job)
}

func (b *Local) AddPressure(job store.Idx, req store.Idx, delta float64) {
	if !b.limiter.Allow() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if jr, ok := b.jobs[job]; ok {
		jr.attrs.Pressure += delta
	}
}

func (b *Local) SetPressure(job store.Idx, req store.Idx, pressure float64) {
	if !b.limiter.Allow() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if jr, ok := b.jobs[job]; ok {
		jr.attrs.Pressure = pressure
	}
}

func (b *Local) KillWaitingJobs(req store.Idx) []store.Idx {
	b.mu.Lock()
	defer b.mu.Unlock()
	var killed []store.Idx
	for j, jr := range b.jobs {
		if jr.req == req && jr.waiting {
			killed = append(killed, j)
			delete(b.jobs, j)
			b.sem.Release(1)
		}
	}
	return killed
}

// Heartbeat checks one job's liveness. A job not tracked by b is Lost. A
// tracked job unseen for longer than heartbeatLostAfter counts one loss per
// check and is reported Lost once its losses exceed maxLosts; otherwise it
// is Alive. Local applies no round_trip check of its own (HeartbeatSweeper
// does).
func (b *Local) Heartbeat(job store.Idx) Liveness {
	b.mu.Lock()
	defer b.mu.Unlock()
	jr, ok := b.jobs[job]
	if !ok {
		return Lost
	}
	if time.Since(jr.lastSeen) > heartbeatLostAfter {
		jr.nLosts++
		if jr.nLosts > b.maxLosts {
			return Lost
		}
	}
	return Alive
}

// heartbeatLostAfter is how long a job may go unseen before it is treated
// as possibly lost (spec §4.6 heartbeat cadence discussion).
const heartbeatLostAfter = 30 * time.Second

func (b *Local) HeartbeatAll() map[store.Idx]Liveness {
	b.mu.Lock()
	jobs := make([]store.Idx, 0, len(b.jobs))
	for j := range b.jobs {
		jobs = append(jobs, j)
	}
	b.mu.Unlock()

	out := make(map[store.Idx]Liveness, len(jobs))
	for _, j := range jobs {
		out[j] = b.Heartbeat(j)
	}
	return out
}

func (b *Local) SubmittedETA(req store.Idx) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total time.Duration
	for _, jr := range b.jobs {
		if jr.req == req {
			total += time.Since(jr.startedAt)
		}
	}
	return total
}

// MkLcl adapts resources for local execution: local capacity simply caps
// the request (spec §4.6 "adapt resources for local execution when a
// request forces locality").
func (b *Local) MkLcl(rsrcs Resources, localCaps Resources, job store.Idx) Resources {
	out := rsrcs
	if localCaps.CPU > 0 && out.CPU > localCaps.CPU {
		out.CPU = localCaps.CPU
	}
	if localCaps.MemMB > 0 && out.MemMB > localCaps.MemMB {
		out.MemMB = localCaps.MemMB
	}
	return out
}

// MarkSeen records a heartbeat or job-traffic touch, resetting the job's
// "last seen" clock (called by JobMngt/JobEnd on any traffic from the job).
func (b *Local) MarkSeen(job store.Idx) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if jr, ok := b.jobs[job]; ok {
		jr.lastSeen = time.Now()
		jr.waiting = false
	}
}
