package req

import (
	"bytes"
	"testing"
	"time"

	"lmake/internal/graph"
	"lmake/internal/store"
)

type nopWriter struct{ buf bytes.Buffer }

func (w *nopWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func TestChkEndOnlyWhenNotRunning(t *testing.T) {
	root := t.TempDir()
	client := &nopWriter{}
	r, err := New(store.Idx(1), client, root, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.JobStarted()
	if done, _ := r.ChkEnd(); done {
		t.Fatal("ChkEnd must not finish while a job is running")
	}

	r.JobEnded(graph.ExecOk, time.Millisecond)
	done, summary := r.ChkEnd()
	if !done {
		t.Fatal("ChkEnd must finish once n_running is 0")
	}
	if summary.Ended[graph.ExecOk] != 1 {
		t.Fatalf("expected 1 Ok-ended job in summary, got %d", summary.Ended[graph.ExecOk])
	}
}

func TestKillSetsZombieOnce(t *testing.T) {
	root := t.TempDir()
	client := &nopWriter{}
	r, err := New(store.Idx(1), client, root, Options{KillSigs: []int{15, 9}, StartDelay: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	wasZombie, sigs, delay := r.Kill()
	if wasZombie {
		t.Fatal("expected not already zombie on first Kill")
	}
	if len(sigs) != 2 || delay != time.Second {
		t.Fatalf("unexpected kill sigs/delay: %v %v", sigs, delay)
	}
	if !r.IsZombie() {
		t.Fatal("expected zombie flag set after Kill")
	}

	wasZombie, _, _ = r.Kill()
	if !wasZombie {
		t.Fatal("expected already zombie on second Kill")
	}
}

func TestUpdateETAFlickerGuard(t *testing.T) {
	root := t.TempDir()
	client := &nopWriter{}
	r, err := New(store.Idx(1), client, root, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if !r.UpdateETA(100 * time.Second) {
		t.Fatal("first ETA update must always propagate")
	}
	if r.UpdateETA(101 * time.Second) {
		t.Fatal("a <1/16 change must not propagate")
	}
	if !r.UpdateETA(200 * time.Second) {
		t.Fatal("a >1/16 change must propagate")
	}
}

func TestNodeInfoAllocatedOnDemand(t *testing.T) {
	d := &ReqData{Jobs: make(map[store.Idx]*ReqInfo), Nodes: make(map[store.Idx]*ReqInfo)}
	ri1 := d.NodeInfo(store.Idx(5))
	ri2 := d.NodeInfo(store.Idx(5))
	if ri1 != ri2 {
		t.Fatal("expected the same ReqInfo instance on repeated NodeInfo calls")
	}
}
