package backend

import (
	"context"
	"testing"
	"time"

	"lmake/internal/graph"
	"lmake/internal/store"
)

func newLoops(capacity int64, maxLosts int) (*Loops, *Local) {
	lb := NewLocal(capacity, maxLosts)
	jobs := store.NewSimpleFile[graph.Job]()
	return &Loops{Jobs: jobs, Backend: lb, MaxRetriesOnLost: maxLosts}, lb
}

// TestScenarioF_LostJobRetries is spec §8 Scenario F: a job the backend
// reports Lost is retried up to max_retries_on_lost before hard-failing.
func TestScenarioF_LostJobRetries(t *testing.T) {
	loops, lb := newLoops(4, 2)
	jobIdx := loops.Jobs.Emplace(graph.Job{})

	if err := loops.JobStart(context.Background(), jobIdx, store.Idx(1), SubmitAttrs{Resources: DefaultResources}); err != nil {
		t.Fatalf("JobStart: %v", err)
	}

	for i := 0; i < 2; i++ {
		rpt := lostEndReport(jobIdx, time.Now())
		retry := loops.JobEnd(jobIdx, rpt)
		if !retry {
			t.Fatalf("retry %d: expected retryable lost job within max_retries_on_lost", i)
		}
		if err := loops.JobStart(context.Background(), jobIdx, store.Idx(1), SubmitAttrs{Resources: DefaultResources}); err != nil {
			t.Fatalf("resubmit %d: %v", i, err)
		}
	}

	rpt := lostEndReport(jobIdx, time.Now())
	retry := loops.JobEnd(jobIdx, rpt)
	if retry {
		t.Fatal("expected hard failure once max_retries_on_lost is exceeded")
	}
	j := loops.Jobs.Get(jobIdx)
	if j.RunStatus != graph.RunErr {
		t.Fatalf("expected RunErr after exhausting retries, got %v", j.RunStatus)
	}

	_ = lb // backend used only through Loops in this test
}

// TestWorkloadConservation is spec §8 property 6: held tokens never exceed
// the reasonable budget once jobs that finished have released theirs.
func TestWorkloadConservation(t *testing.T) {
	w := NewWorkload()
	reasonable := 4

	w.Start(store.Idx(1), 2)
	w.Start(store.Idx(2), 2)
	if !w.Conserved(reasonable) {
		t.Fatalf("expected held tokens (%d) within reasonable budget (%d)", w.Held(), reasonable)
	}

	w.Start(store.Idx(3), 3)
	if w.Conserved(reasonable) {
		t.Fatal("expected budget to be exceeded once a third job oversubscribes tokens")
	}

	w.End(store.Idx(1))
	w.End(store.Idx(2))
	if !w.Conserved(reasonable) {
		t.Fatalf("expected conservation restored after releasing finished jobs, held=%d", w.Held())
	}
}

func TestHeartbeatMarksLostAfterMaxLosts(t *testing.T) {
	lb := NewLocal(4, 1)
	job := store.Idx(7)
	if err := lb.Submit(context.Background(), job, store.Idx(1), SubmitAttrs{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	lb.mu.Lock()
	lb.jobs[job].lastSeen = time.Now().Add(-time.Minute)
	lb.mu.Unlock()

	if got := lb.Heartbeat(job); got != Alive {
		t.Fatalf("first stale check should only count a loss, got %v", got)
	}
	lb.mu.Lock()
	lb.jobs[job].lastSeen = time.Now().Add(-time.Minute)
	lb.mu.Unlock()
	if got := lb.Heartbeat(job); got != Lost {
		t.Fatalf("expected Lost once nLosts exceeds maxLosts, got %v", got)
	}
}

func TestKillWaitingJobsReleasesSlots(t *testing.T) {
	lb := NewLocal(2, 0)
	req := store.Idx(5)
	ctx := context.Background()
	if err := lb.Submit(ctx, store.Idx(1), req, SubmitAttrs{}); err != nil {
		t.Fatal(err)
	}
	if err := lb.Submit(ctx, store.Idx(2), req, SubmitAttrs{}); err != nil {
		t.Fatal(err)
	}

	killed := lb.KillWaitingJobs(req)
	if len(killed) != 2 {
		t.Fatalf("expected both waiting jobs killed, got %d", len(killed))
	}

	// Slots must be released: a third submit on a capacity-2 semaphore
	// should not block.
	done := make(chan error, 1)
	go func() { done <- lb.Submit(ctx, store.Idx(3), req, SubmitAttrs{}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked: KillWaitingJobs did not release its semaphore slots")
	}
}
