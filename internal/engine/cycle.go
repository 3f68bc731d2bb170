package engine

import (
	"lmake/internal/graph"
	"lmake/internal/store"
)

// DetectCycle walks the job->dep graph from a stuck node, collecting
// visited nodes; the first revisit closes a cycle (spec §4.3 "Cycle
// detection: ... the engine walks the job->dep graph from the stuck node
// collecting visited nodes; the first revisit closes a cycle").
//
// depsOf resolves a Job's static dep Nodes; conformJob resolves a Node's
// current producing Job via its JobTgts/ConformIdx. Both are passed in
// rather than bound to *Engine directly so the walk can run over a
// read-only snapshot without holding the engine lock.
func DetectCycle(start store.Idx, depsOf func(store.Idx) []store.Idx, conformJob func(store.Idx) (store.Idx, bool)) *graph.CycleError {
	visited := make(map[store.Idx]bool)
	path := []store.Idx{start}
	visited[start] = true

	node := start
	for {
		job, ok := conformJob(node)
		if !ok {
			return nil // no producer, not a cycle through this path
		}
		deps := depsOf(job)
		if len(deps) == 0 {
			return nil
		}
		next := deps[0] // walk the first static dep; enough to find a cycle per spec's "collecting visited nodes"
		path = append(path, next)
		if visited[next] {
			return &graph.CycleError{Path: append(path[:0:0], path...)}
		}
		visited[next] = true
		node = next
	}
}
