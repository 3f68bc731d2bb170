package query

import (
	"context"
	"sort"
	"testing"
	"time"

	"lmake/internal/graph"
	"lmake/internal/store"
)

func TestStoreDependsOnTransitive(t *testing.T) {
	s, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	// a -> b -> c
	if err := s.RecordDep("a", "b"); err != nil {
		t.Fatalf("RecordDep: %v", err)
	}
	if err := s.RecordDep("b", "c"); err != nil {
		t.Fatalf("RecordDep: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	deps, err := s.DependsOn(ctx, "a")
	if err != nil {
		t.Fatalf("DependsOn: %v", err)
	}
	sort.Strings(deps)
	want := []string{"b", "c"}
	if len(deps) != len(want) || deps[0] != want[0] || deps[1] != want[1] {
		t.Fatalf("DependsOn(a) = %v, want %v", deps, want)
	}
}

func TestStoreDependents(t *testing.T) {
	s, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.RecordDep("a", "b"); err != nil {
		t.Fatalf("RecordDep: %v", err)
	}
	if err := s.RecordDep("c", "b"); err != nil {
		t.Fatalf("RecordDep: %v", err)
	}

	deps, err := s.Dependents("b")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	sort.Strings(deps)
	want := []string{"a", "c"}
	if len(deps) != len(want) || deps[0] != want[0] || deps[1] != want[1] {
		t.Fatalf("Dependents(b) = %v, want %v", deps, want)
	}
}

func TestStoreRuleMatches(t *testing.T) {
	s, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.RecordMatch("compile", "out.o"); err != nil {
		t.Fatalf("RecordMatch: %v", err)
	}
	matches, err := s.RuleMatches("compile")
	if err != nil {
		t.Fatalf("RuleMatches: %v", err)
	}
	if len(matches) != 1 || matches[0] != "out.o" {
		t.Fatalf("RuleMatches(compile) = %v, want [out.o]", matches)
	}
}

func TestCycleTraceRendersRepeatedNode(t *testing.T) {
	ce := &graph.CycleError{Path: []store.Idx{1, 2, 3, 1}}
	label := func(i store.Idx) string {
		names := map[store.Idx]string{1: "a.o", 2: "b.o", 3: "c.o"}
		return names[i]
	}
	trace := CycleTrace(ce, label)
	if len(trace.AllNodes) != 4 {
		t.Fatalf("len(AllNodes) = %d, want 4", len(trace.AllNodes))
	}
	out := trace.RenderASCII()
	if out == "" {
		t.Fatal("RenderASCII returned empty string")
	}
}

func TestWhyBuildableStopsAtSource(t *testing.T) {
	// b is produced by a job depending on a; a has no producer (source file).
	depsOf := func(job store.Idx) []store.Idx {
		if job == 100 {
			return []store.Idx{1}
		}
		return nil
	}
	conformJob := func(node store.Idx) (store.Idx, bool) {
		if node == 2 {
			return 100, true
		}
		return 0, false
	}
	label := func(i store.Idx) string {
		names := map[store.Idx]string{1: "a.c", 2: "b.o"}
		return names[i]
	}
	trace := WhyBuildable(2, depsOf, conformJob, label)
	if len(trace.RootNodes) != 1 {
		t.Fatalf("len(RootNodes) = %d, want 1", len(trace.RootNodes))
	}
	if len(trace.AllNodes) != 2 {
		t.Fatalf("len(AllNodes) = %d, want 2 (b.o -> a.c)", len(trace.AllNodes))
	}
}
