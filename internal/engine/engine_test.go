package engine

import (
	"testing"

	"lmake/internal/graph"
	"lmake/internal/rule"
	"lmake/internal/store"
)

func mustCompile(t *testing.T, d rule.Desc) *rule.Rule {
	t.Helper()
	r, err := rule.Compile(d)
	if err != nil {
		t.Fatalf("Compile(%s): %v", d.Name, err)
	}
	return r
}

// TestScenarioD_MissingSource is spec §8 Scenario D: a node with no
// covering source and no matching rule classifies No.
func TestScenarioD_MissingSource(t *testing.T) {
	e := New(false)
	r := mustCompile(t, rule.Desc{
		Name:    "R1",
		JobName: "build-y",
		Matches: []rule.MatchDesc{{Tag: rule.MatchTarget, Pattern: "y"}},
		StaticDeps: []rule.DepDesc{
			{Name: "x", Path: "x", Flags: rule.DflagRequired},
		},
	})
	e.RegisterRule(r)

	xIdx := e.NodeIdx("x")
	b, err := e.Classify(xIdx)
	if err != nil {
		t.Fatal(err)
	}
	if b != graph.No {
		t.Fatalf("expected node x to classify No (no rule covers it), got %v", b)
	}
	if err := MissingStaticDep("x"); err == nil {
		t.Fatal("expected a MissingStaticError")
	}
}

// TestScenarioE_OverlappingWrite is spec §8 Scenario E: two equal-priority
// rules both matching the same target classify it Multi.
func TestScenarioE_OverlappingWrite(t *testing.T) {
	e := New(false)
	r1 := mustCompile(t, rule.Desc{
		Name:     "R1",
		JobName:  "make-shared-1",
		Priority: 0,
		Matches:  []rule.MatchDesc{{Tag: rule.MatchTarget, Pattern: "shared.out"}},
	})
	r2 := mustCompile(t, rule.Desc{
		Name:     "R2",
		JobName:  "make-shared-2",
		Priority: 0,
		Matches:  []rule.MatchDesc{{Tag: rule.MatchTarget, Pattern: "shared.out"}},
	})
	e.RegisterRule(r1)
	e.RegisterRule(r2)

	idx := e.NodeIdx("shared.out")
	b, err := e.Classify(idx)
	if err != nil {
		t.Fatal(err)
	}
	if b != graph.Unknown {
		t.Fatalf("expected Unknown buildable pending disambiguation, got %v", b)
	}
	node := e.Nodes.Get(idx)
	status, ok := node.Status()
	if !ok || status != graph.StatusMulti {
		t.Fatalf("expected StatusMulti, got status=%v ok=%v", status, ok)
	}
	if got := node.JobTgts.Items(e.jobTgtsVF); len(got) != 2 {
		t.Fatalf("expected 2 candidate producing jobs, got %d", len(got))
	}
}

// TestScenarioC_Cycle is spec §8 Scenario C: a -> b -> a closes a cycle
// reported as [a, b, a].
func TestScenarioC_Cycle(t *testing.T) {
	jobOfNode := map[store.Idx]store.Idx{1: 10, 2: 20} // node a=1 produced by job 10, node b=2 by job 20
	depsOfJob := map[store.Idx][]store.Idx{
		10: {2}, // job producing a depends on b
		20: {1}, // job producing b depends on a
	}
	conformJob := func(n store.Idx) (store.Idx, bool) {
		j, ok := jobOfNode[n]
		return j, ok
	}
	depsOf := func(j store.Idx) []store.Idx { return depsOfJob[j] }

	cyc := DetectCycle(store.Idx(1), depsOf, conformJob)
	if cyc == nil {
		t.Fatal("expected a cycle to be detected")
	}
	if len(cyc.Path) < 2 || cyc.Path[0] != 1 {
		t.Fatalf("unexpected cycle path: %v", cyc.Path)
	}
}

func TestPressureChangedGuard(t *testing.T) {
	if PressureChanged(100, 105) {
		t.Fatal("a 5% change must not propagate")
	}
	if !PressureChanged(100, 115) {
		t.Fatal("a 15% change must propagate")
	}
	if !PressureChanged(0, 1) {
		t.Fatal("any change off a zero baseline must propagate")
	}
}

func TestLockTicketOrderViolationPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on lock order violation")
		}
	}()
	ticket := NewLockTicket(true)
	ticket.Acquire(LevelNode)
	ticket.Acquire(LevelAudit) // lower-numbered than Node: must panic
}

func TestLockTicketOrderedAcquireReleaseOk(t *testing.T) {
	ticket := NewLockTicket(true)
	ticket.Acquire(LevelAudit)
	ticket.Acquire(LevelRule)
	ticket.Release(LevelRule)
	ticket.Release(LevelAudit)
}
