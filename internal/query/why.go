package query

import (
	"fmt"
	"time"

	"lmake/internal/graph"
	"lmake/internal/mangle"
	"lmake/internal/store"
)

// CycleTrace renders a *graph.CycleError as the cycle diagram spec.md §7
// requires, adapted from the teacher's internal/mangle/proof_tree.go
// DerivationNode/DerivationTrace: each node visited while walking the
// job->dep graph (internal/engine.DetectCycle) becomes one DerivationNode,
// ParentID the edge that led to it, and the repeated node that closes the
// path appears again, unmarked, as the last node of the chain.
//
// label resolves a store.Idx to a human-readable name (file path, job
// command summary); the proof-tree machinery itself is agnostic to what a
// Fact's Args mean, so that label is carried as the sole Arg and the tracer's
// existing ASCII renderer is reused unmodified.
func CycleTrace(ce *graph.CycleError, label func(store.Idx) string) *mangle.DerivationTrace {
	trace := &mangle.DerivationTrace{
		Query:     "cycle",
		RootNodes: make([]*mangle.DerivationNode, 0, len(ce.Path)),
		AllNodes:  make([]*mangle.DerivationNode, 0, len(ce.Path)),
		Timestamp: time.Time{},
	}
	if len(ce.Path) == 0 {
		return trace
	}

	var prev *mangle.DerivationNode
	for depth, idx := range ce.Path {
		node := &mangle.DerivationNode{
			ID: fmt.Sprintf("node_%d", depth),
			Fact: mangle.Fact{
				Predicate: "visits",
				Args:      []interface{}{label(idx)},
			},
			Source: mangle.SourceIDB,
			Depth:  depth,
		}
		if prev != nil {
			node.ParentID = prev.ID
			prev.Children = append(prev.Children, node)
		} else {
			trace.RootNodes = append(trace.RootNodes, node)
		}
		trace.AllNodes = append(trace.AllNodes, node)
		prev = node
	}
	trace.TotalFacts = len(trace.AllNodes)
	return trace
}

// WhyBuildable renders the producer chain for a stuck node as the same
// DerivationNode shape CycleTrace uses, for the non-cyclic "why is this
// buildable" case (spec §4.3 "why is this buildable reporting"): walk
// depsOf/conformJob the same way internal/engine.DetectCycle does, but stop
// at the first node with no producer instead of treating a revisit as an
// error.
func WhyBuildable(start store.Idx, depsOf func(store.Idx) []store.Idx, conformJob func(store.Idx) (store.Idx, bool), label func(store.Idx) string) *mangle.DerivationTrace {
	trace := &mangle.DerivationTrace{Query: "why_buildable"}
	visited := map[store.Idx]bool{start: true}

	root := &mangle.DerivationNode{
		ID:     "node_0",
		Fact:   mangle.Fact{Predicate: "visits", Args: []interface{}{label(start)}},
		Source: mangle.SourceIDB,
	}
	trace.RootNodes = append(trace.RootNodes, root)
	trace.AllNodes = append(trace.AllNodes, root)

	cur, node := root, start
	for depth := 1; ; depth++ {
		job, ok := conformJob(node)
		if !ok {
			cur.Source = mangle.SourceEDB
			break
		}
		deps := depsOf(job)
		if len(deps) == 0 {
			break
		}
		next := deps[0]
		child := &mangle.DerivationNode{
			ID:       fmt.Sprintf("node_%d", depth),
			ParentID: cur.ID,
			Fact:     mangle.Fact{Predicate: "visits", Args: []interface{}{label(next)}},
			Source:   mangle.SourceIDB,
			Depth:    depth,
		}
		cur.Children = append(cur.Children, child)
		trace.AllNodes = append(trace.AllNodes, child)
		if visited[next] {
			break
		}
		visited[next] = true
		cur, node = child, next
	}
	trace.TotalFacts = len(trace.AllNodes)
	return trace
}
