// Package query provides read-only introspection over a build graph
// snapshot: ad-hoc reachability questions ("what depends on X", "what would
// rebuild if Y changes") backed by a narrow github.com/google/mangle fact
// store, and human-readable cycle / "why is this buildable" tree rendering.
// It never drives the make state machine in internal/engine; it only
// observes facts recorded as the engine runs.
package query

import (
	"context"
	"fmt"

	"lmake/internal/mangle"
)

// schema declares the three domain predicates and one derived rule used for
// transitive reachability. node_dep/2 and job_target/2 mirror the static and
// produced edges internal/graph already tracks on Node/Job; rule_match/2
// records which Rule a Node's JobTgt was matched from by internal/rule.
const schema = `
Decl node_dep(Node, Dep) descr [mode("+", "+")].
Decl job_target(Job, Target) descr [mode("+", "+")].
Decl rule_match(Rule, Node) descr [mode("+", "+")].
Decl depends_on(Node, Dep) descr [mode("+", "-")].

depends_on(Node, Dep) :- node_dep(Node, Dep).
depends_on(Node, Dep) :- node_dep(Node, Mid), depends_on(Mid, Dep).
`

// Store wraps a mangle.Engine pre-loaded with the node_dep/job_target/
// rule_match schema. It is a snapshot: callers repopulate it from the live
// graph (internal/engine/internal/graph) before querying, it holds no
// reference back into the engine itself.
type Store struct {
	engine *mangle.Engine
}

// NewStore builds an empty fact store with the schema loaded.
func NewStore() (*Store, error) {
	cfg := mangle.DefaultConfig()
	cfg.AutoEval = true
	engine, err := mangle.NewEngine(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("query: new engine: %w", err)
	}
	if err := engine.LoadSchemaString(schema); err != nil {
		return nil, fmt.Errorf("query: load schema: %w", err)
	}
	return &Store{engine: engine}, nil
}

// RecordDep records that node statically depends on dep (spec §4.3 Node/Job
// graph's static dep list).
func (s *Store) RecordDep(node, dep string) error {
	return s.engine.AddFact("node_dep", node, dep)
}

// RecordTarget records that job produces target.
func (s *Store) RecordTarget(job, target string) error {
	return s.engine.AddFact("job_target", job, target)
}

// RecordMatch records that rule matched node, producing the JobTgt that
// conforms it.
func (s *Store) RecordMatch(rule, node string) error {
	return s.engine.AddFact("rule_match", rule, node)
}

// DependsOn answers "what does node transitively depend on", i.e. the set
// of nodes that would need to be up to date before node can be built.
func (s *Store) DependsOn(ctx context.Context, node string) ([]string, error) {
	result, err := s.engine.Query(ctx, fmt.Sprintf("depends_on(%q, Dep)", node))
	if err != nil {
		return nil, fmt.Errorf("query: depends_on(%s): %w", node, err)
	}
	out := make([]string, 0, len(result.Bindings))
	for _, b := range result.Bindings {
		if v, ok := b["Dep"]; ok {
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, nil
}

// Dependents answers "what would rebuild if node changes", by scanning the
// recorded node_dep facts for edges pointing at node. Mangle's derived
// depends_on/2 is declared with dep bound on the left (mode "+","-"); a
// reverse walk is cheaper expressed directly over GetFacts than by adding a
// second recursive rule with the opposite binding pattern.
func (s *Store) Dependents(node string) ([]string, error) {
	facts, err := s.engine.GetFacts("node_dep")
	if err != nil {
		return nil, fmt.Errorf("query: get node_dep facts: %w", err)
	}
	seen := map[string]bool{}
	var out []string
	frontier := []string{node}
	for len(frontier) > 0 {
		target := frontier[0]
		frontier = frontier[1:]
		for _, f := range facts {
			if len(f.Args) != 2 {
				continue
			}
			dep := fmt.Sprint(f.Args[1])
			if dep != target {
				continue
			}
			n := fmt.Sprint(f.Args[0])
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
			frontier = append(frontier, n)
		}
	}
	return out, nil
}

// RuleMatches returns the nodes recorded as matched by rule.
func (s *Store) RuleMatches(rule string) ([]string, error) {
	facts, err := s.engine.GetFacts("rule_match")
	if err != nil {
		return nil, fmt.Errorf("query: get rule_match facts: %w", err)
	}
	var out []string
	for _, f := range facts {
		if len(f.Args) != 2 {
			continue
		}
		if fmt.Sprint(f.Args[0]) == rule {
			out = append(out, fmt.Sprint(f.Args[1]))
		}
	}
	return out, nil
}
