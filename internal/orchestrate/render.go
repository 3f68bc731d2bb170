// Package orchestrate drives a synchronous build of a set of targets:
// classification, static-dep recursion, cycle detection, rule-attribute
// rendering, job execution, and result bookkeeping (spec §4.3's make()
// loop, minus its speculative/parallel scheduling — see DESIGN.md for the
// simplifications this single-threaded driver makes relative to the full
// state machine internal/engine/state.go declares).
package orchestrate

import "lmake/internal/rule"

// renderValues resolves a rendered target/match/dep attribute, binding
// RefStem from stems, RefMatch/RefDep from already-rendered sibling
// tables. RefResource is left empty: resources attributes are evaluated to
// produce resources, so a resource attribute referencing a resource value
// is not a dependency this renderer models (spec §4.2 only requires stems/
// matches/deps to be substitutable).
func renderValues(enc rule.Encoded, r *rule.Rule, stems map[string]string, matchVals, depVals []string) string {
	return enc.Substitute(func(ref rule.Ref) string {
		switch ref.Kind {
		case rule.RefStem:
			if ref.Idx >= 0 && ref.Idx < len(r.Stems) {
				return stems[r.Stems[ref.Idx].Name]
			}
		case rule.RefMatch:
			if ref.Idx >= 0 && ref.Idx < len(matchVals) {
				return matchVals[ref.Idx]
			}
		case rule.RefDep:
			if ref.Idx >= 0 && ref.Idx < len(depVals) {
				return depVals[ref.Idx]
			}
		}
		return ""
	})
}

// renderMatches renders every entry of r's matches table against stems,
// in table order so RefMatch indices line up with r.Matches.
func renderMatches(r *rule.Rule, stems map[string]string) []string {
	vals := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		vals[i] = renderValues(m.Pattern, r, stems, nil, nil)
	}
	return vals
}

// renderDeps renders every static dep template against stems and the
// already-rendered matches.
func renderDeps(r *rule.Rule, stems map[string]string, matchVals []string) []string {
	vals := make([]string, len(r.StaticDeps))
	for i, d := range r.StaticDeps {
		vals[i] = renderValues(d.Path, r, stems, matchVals, nil)
	}
	return vals
}

// evalAttr resolves a cmd/resources/env attribute: a static f-string is
// substituted directly; a dynamic one is handed to dyn (spec §9 "Dynamic
// typing of rule attributes").
func evalAttr(attr rule.Attr, r *rule.Rule, stems map[string]string, matchVals, depVals []string, dyn *rule.DynEvaluator) (string, error) {
	if attr.Kind == rule.AttrStatic {
		return renderValues(attr.Static, r, stems, matchVals, depVals), nil
	}
	callable := r.Callables[attr.CallableIdx]
	return dyn.Eval(callable, stems, matchVals, depVals)
}
