package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"lmake/internal/graph"
	"lmake/internal/logging"
	"lmake/internal/match"
	"lmake/internal/rule"
	"lmake/internal/store"
)

// Engine owns the process-wide persistent store, rule/matcher tables, and
// serializes all state mutation through a single logical thread (spec §9
// "Global mutable state" / "the engine thread remains single and all state
// mutations funnel through it").
type Engine struct {
	Nodes   *store.SimpleFile[graph.Node]
	Jobs    *store.SimpleFile[graph.Job]
	Matcher *match.Matcher
	Rules   map[rule.RuleCrc]*rule.Rule

	mu        sync.Mutex // stands in for "engine thread" serialization
	ticket    *LockTicket
	pathIdx   map[string]store.Idx
	jobIdx    map[string]store.Idx
	jobTgtsVF *store.VectorFile[store.Idx]
	targetsVF *store.VectorFile[store.Idx] // backs graph.Job.Targets
	globalMG  uint64 // global_match_gen, spec §3 invariant "monotonically increases"

	log *logging.Logger
}

// New returns an empty Engine ready to register rules and serve Make calls.
func New(debugLocks bool) *Engine {
	return &Engine{
		Nodes:     store.NewSimpleFile[graph.Node](),
		Jobs:      store.NewSimpleFile[graph.Job](),
		Matcher:   match.New("", nil),
		Rules:     make(map[rule.RuleCrc]*rule.Rule),
		ticket:    NewLockTicket(debugLocks),
		pathIdx:   make(map[string]store.Idx),
		jobIdx:    make(map[string]store.Idx),
		jobTgtsVF: store.NewVectorFile[store.Idx](),
		targetsVF: store.NewVectorFile[store.Idx](),
		globalMG:  1,
		log:       logging.Get(logging.CategoryEngine),
	}
}

// RegisterRule adds r to the engine's rule table and matcher, and bumps
// global_match_gen so every previously classified Node is re-evaluated on
// next use (spec §3 invariant "match_gen monotonically increases ... any
// Node with match_gen < global_match_gen must re-run matching").
func (e *Engine) RegisterRule(r *rule.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Rules[r.Crc()] = r
	e.Matcher.Register(r)
	e.globalMG++
}

// NodeIdx returns the stable index for path, allocating an unclassified
// Node on first use (spec §3 "Nodes are created on demand by name lookup
// and never destroyed").
func (e *Engine) NodeIdx(path string) store.Idx {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.pathIdx[path]; ok {
		return idx
	}
	idx := e.Nodes.Emplace(graph.Node{Path: path, Buildable: graph.Unknown})
	e.pathIdx[path] = idx
	return idx
}

// Classify runs Node.set_buildable (spec §4.3): resolves candidate rules via
// the matcher, disambiguates by priority, and records the resulting
// Buildable + JobTgts onto the Node. Re-running on an already-current Node
// (match_gen == globalMG) is a cache hit unless its Buildable is Unknown,
// which is classified again.
func (e *Engine) Classify(nodeIdx store.Idx) (graph.Buildable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticket.Acquire(LevelNode)
	defer e.ticket.Release(LevelNode)

	node := e.Nodes.Get(nodeIdx)
	if node.MatchGen == e.globalMG && node.Buildable != graph.Unknown {
		return node.Buildable, nil
	}

	cands := e.Matcher.CandidatesFor(node.Path)
	type hit struct {
		tgt    rule.RuleTgt
		stems  map[string]string
		prio   int
	}
	var hits []hit
	for _, c := range cands {
		res := e.Matcher.Match(c, node.Path, true)
		if !res.Ok {
			continue
		}
		hits = append(hits, hit{tgt: c, stems: res.Stems, prio: e.Rules[c.Rule].Priority})
	}

	node.MatchGen = e.globalMG

	switch {
	case len(hits) == 0:
		node.Buildable = graph.No
		node.SetStatus(graph.StatusNone)
	default:
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].prio > hits[j].prio })
		topPrio := hits[0].prio
		var top []hit
		for _, h := range hits {
			if h.prio == topPrio {
				top = append(top, h)
			}
		}
		if len(top) > 1 {
			node.Buildable = graph.Unknown
			node.SetStatus(graph.StatusMulti)
			for _, h := range top {
				jobIdx := e.jobFor(h.tgt.Rule, h.stems)
				node.JobTgts.Append(e.jobTgtsVF, store.Idx(graph.MakeJobTgt(jobIdx, false)))
			}
		} else {
			jobIdx := e.jobFor(top[0].tgt.Rule, top[0].stems)
			node.JobTgts.Append(e.jobTgtsVF, store.Idx(graph.MakeJobTgt(jobIdx, false)))
			node.Buildable = graph.Yes
			node.ConformIdx = 0
		}
	}

	e.Nodes.Assign(nodeIdx, node)
	return node.Buildable, nil
}

// jobFor returns the stable Job index for (ruleCrc, stems), creating one on
// first use (spec §3 "Jobs are created by the matcher when a Node first
// needs a producer").
func (e *Engine) jobFor(ruleCrc rule.RuleCrc, stems map[string]string) store.Idx {
	key := jobKey(ruleCrc, stems)
	if idx, ok := e.jobIdx[key]; ok {
		return idx
	}
	idx := e.Jobs.Emplace(graph.Job{RuleCrc: ruleCrc, Stems: stems})
	e.jobIdx[key] = idx
	return idx
}

func jobKey(ruleCrc rule.RuleCrc, stems map[string]string) string {
	names := make([]string, 0, len(stems))
	for k := range stems {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "%v", ruleCrc)
	for _, k := range names {
		b.WriteByte('\x00')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(stems[k])
	}
	return b.String()
}

// MissingStaticDep reports, for a node classified graph.No, the
// spec §8 Scenario D message ("misses static dep X").
func MissingStaticDep(path string) error {
	return &graph.MissingStaticError{Target: path}
}

// ConformJob resolves nodeIdx's current producing Job via its JobTgts/
// ConformIdx, per the invariant documented on graph.NodeStatus.
func (e *Engine) ConformJob(nodeIdx store.Idx) (store.Idx, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	node := e.Nodes.Get(nodeIdx)
	return node.ConformJob(e.jobTgtsVF)
}

// SetJobTargets records the concrete Node indices jobIdx produced, once
// rule matches have been rendered against that job's resolved stems
// (spec §3 Job: "Targets holds this job's static targets").
func (e *Engine) SetJobTargets(jobIdx store.Idx, targets []store.Idx) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job := e.Jobs.Get(jobIdx)
	job.Targets = e.targetsVF.Emplace(targets)
	e.Jobs.Assign(jobIdx, job)
}

// JobTargets returns the Node indices previously recorded by SetJobTargets.
func (e *Engine) JobTargets(jobIdx store.Idx) []store.Idx {
	e.mu.Lock()
	defer e.mu.Unlock()
	job := e.Jobs.Get(jobIdx)
	return e.targetsVF.At(job.Targets)
}
