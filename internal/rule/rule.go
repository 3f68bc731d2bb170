package rule

import "lmake/internal/crc"

// RuleCrc is the triple (match, cmd, rsrcs) of content hashes identifying a
// rule's matching, command, and resources characteristics respectively
// (GLOSSARY "RuleCrc"). Jobs hold a RuleCrc, not a pointer to their Rule, so
// they remain valid as long as the characteristics they were built against
// are unchanged (spec §3 invariants).
type RuleCrc struct {
	Match crc.Digest
	Cmd   crc.Digest
	Rsrcs crc.Digest
}

// Match is one entry of a Rule's ordered matches table.
type Match struct {
	Tag     MatchTag
	Pattern Encoded
	Flags   Tflags
	IsStar  bool // at least one non-static stem referenced (GLOSSARY "Star target")
}

// RuleTgt is a (RuleCrc, match-index) pair, stable under rule updates that
// do not change matching (GLOSSARY "RuleTgt").
type RuleTgt struct {
	Rule      RuleCrc
	MatchIdx  int
}

// DepTemplate is one static dependency declaration: an f-string referencing
// stems/matches/resources that is evaluated once per job to produce the
// dependency's concrete path.
type DepTemplate struct {
	Name   string
	Path   Encoded
	Flags  Dflags
}

// AttrKind distinguishes a pre-compiled static attribute from one that must
// be evaluated by the embedded scripting runtime at job-creation time
// (spec §9 "Dynamic typing of rule attributes").
type AttrKind uint8

const (
	AttrStatic AttrKind = iota
	AttrDynamic
)

// Attr is one of a rule's cmd/resources/env evaluators: a sum type
// {Static(compiled f-string), Dynamic(callable_id)}. CallableIdx indexes
// into the owning Rule's Callables table when Kind == AttrDynamic.
type Attr struct {
	Kind        AttrKind
	Static      Encoded
	CallableIdx int
}

// DynCallable is one deduplicated dynamic-attribute entry in a rule-wide
// table (spec §9: "the callable_id refers to a deduplicated entry in a
// rule-wide table, so a rule with no dynamic deps after partial evaluation
// is upgraded to static"). Source is interpreted by internal/rule/dynattr.go
// using an embedded yaegi interpreter.
type DynCallable struct {
	Source string
}

// Rule is a compiled rule (spec §3 "Rule").
type Rule struct {
	Name   string
	Stems  []Stem
	JobName Encoded

	Matches        []Match
	NStaticTargets int
	NStarTargets   int
	NSideTargets   int
	NSideDeps      int

	StaticDeps []DepTemplate

	Cmd       Attr
	Resources Attr
	Env       Attr
	Callables []DynCallable

	Priority    int
	Force       bool
	LinkSupport LinkSupport

	AvgExecTime float64 // seconds; cost model per spec §3 "Rule"
	AvgCostPerToken float64

	crcs RuleCrc
}

// Crc returns the rule's current RuleCrc triple.
func (r *Rule) Crc() RuleCrc { return r.crcs }

// StaticTargets returns the slice of the matches table holding static
// targets, per the §4.2 step-3 ordering invariant.
func (r *Rule) StaticTargets() []Match { return r.Matches[:r.NStaticTargets] }

// StarTargets returns the star-target slice.
func (r *Rule) StarTargets() []Match {
	return r.Matches[r.NStaticTargets : r.NStaticTargets+r.NStarTargets]
}

// SideTargets returns the side-target slice.
func (r *Rule) SideTargets() []Match {
	start := r.NStaticTargets + r.NStarTargets
	return r.Matches[start : start+r.NSideTargets]
}

// SideDeps returns the side-dep slice.
func (r *Rule) SideDeps() []Match {
	start := r.NStaticTargets + r.NStarTargets + r.NSideTargets
	return r.Matches[start : start+r.NSideDeps]
}
