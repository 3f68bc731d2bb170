// Package rule implements the rule compiler: turning a declarative rule
// description into compiled match patterns, dependency templates, and
// attribute evaluators (spec §4.2).
package rule

import (
	"fmt"
	"sort"
)

// Compile runs the five compilation steps of spec §4.2 over d and returns
// the compiled Rule.
func Compile(d Desc) (*Rule, error) {
	r := &Rule{
		Name:        d.Name,
		Priority:    d.Priority,
		Force:       d.Force,
		LinkSupport: ParseLinkSupport(d.LinkSupport),
	}

	// Step 1: validate stems, in a stable name order so stem indices are
	// deterministic across compiles of the same Desc (RuleCrc depends on it).
	names := make([]string, 0, len(d.Stems))
	for name := range d.Stems {
		names = append(names, name)
	}
	sort.Strings(names)
	stemIdx := make(map[string]int, len(names))
	for _, name := range names {
		sd := d.Stems[name]
		s, err := compileStem(Stem{Name: name, Regex: sd.Regex, Dynamic: sd.Dynamic})
		if err != nil {
			return nil, fmt.Errorf("rule %s: stem %s: %w", d.Name, name, err)
		}
		stemIdx[name] = len(r.Stems)
		r.Stems = append(r.Stems, s)
	}

	// matchIdx/depIdx are filled in as matches/deps are compiled below, so a
	// later dep template can reference an earlier match by name.
	matchIdx := make(map[string]int)
	resolveNames := func(extra func(string) (Ref, bool)) resolver {
		return func(name string) (Ref, bool) {
			if i, ok := stemIdx[name]; ok {
				return Ref{Kind: RefStem, Idx: i}, true
			}
			if i, ok := matchIdx[name]; ok {
				return Ref{Kind: RefMatch, Idx: i}, true
			}
			if extra != nil {
				return extra(name)
			}
			return Ref{}, false
		}
	}

	// Step 2: rewrite {stem} references in job_name.
	jobName, err := encode(d.JobName, resolveNames(nil))
	if err != nil {
		return nil, fmt.Errorf("rule %s: job_name: %w", d.Name, err)
	}
	r.JobName = jobName

	// Step 2+3: rewrite and partition matches. Static targets first, then
	// star targets, then side-targets, then side-deps (spec §4.2 step 3).
	var staticTargets, starTargets, sideTargets, sideDeps []Match
	for i, md := range d.Matches {
		name := fmt.Sprintf("match%d", i)
		enc, err := encode(md.Pattern, resolveNames(nil))
		if err != nil {
			return nil, fmt.Errorf("rule %s: match %d: %w", d.Name, i, err)
		}
		isStar := referencesDynamicStem(enc.Refs, r.Stems)
		m := Match{Tag: md.Tag, Pattern: enc, Flags: md.Flags, IsStar: isStar}
		switch md.Tag {
		case MatchSideDep:
			sideDeps = append(sideDeps, m)
		case MatchSideTarget:
			sideTargets = append(sideTargets, m)
		default:
			if isStar {
				starTargets = append(starTargets, m)
			} else {
				staticTargets = append(staticTargets, m)
			}
		}
		matchIdx[name] = i // reserved for future dep-template cross references
	}
	r.NStaticTargets = len(staticTargets)
	r.NStarTargets = len(starTargets)
	r.NSideTargets = len(sideTargets)
	r.NSideDeps = len(sideDeps)
	r.Matches = append(r.Matches, staticTargets...)
	r.Matches = append(r.Matches, starTargets...)
	r.Matches = append(r.Matches, sideTargets...)
	r.Matches = append(r.Matches, sideDeps...)

	// Step 4: build f-string encodings for dep templates.
	for i, dd := range d.StaticDeps {
		depResolve := resolveNames(func(name string) (Ref, bool) {
			for j, prior := range d.StaticDeps[:i] {
				if prior.Name == name {
					return Ref{Kind: RefDep, Idx: j}, true
				}
			}
			return Ref{}, false
		})
		enc, err := encode(dd.Path, depResolve)
		if err != nil {
			return nil, fmt.Errorf("rule %s: dep %s: %w", d.Name, dd.Name, err)
		}
		r.StaticDeps = append(r.StaticDeps, DepTemplate{Name: dd.Name, Path: enc, Flags: dd.Flags | DflagStatic})
	}

	resolveAttr := resolveNames(func(name string) (Ref, bool) {
		for j, dep := range r.StaticDeps {
			if dep.Name == name {
				return Ref{Kind: RefDep, Idx: j}, true
			}
		}
		return Ref{}, false
	})
	if r.Cmd, err = compileAttr(d.Cmd, resolveAttr, r); err != nil {
		return nil, fmt.Errorf("rule %s: cmd: %w", d.Name, err)
	}
	if r.Resources, err = compileAttr(d.Resources, resolveAttr, r); err != nil {
		return nil, fmt.Errorf("rule %s: resources: %w", d.Name, err)
	}
	if r.Env, err = compileAttr(d.Env, resolveAttr, r); err != nil {
		return nil, fmt.Errorf("rule %s: env: %w", d.Name, err)
	}

	// Step 5: compute the three-tier RuleCrc.
	r.crcs = computeRuleCrc(d, r)

	return r, nil
}

// referencesDynamicStem reports whether any of refs is a stem reference to
// a stem whose value is not known until the job actually runs (GLOSSARY
// "Star target": "a rule target with at least one non-static stem").
func referencesDynamicStem(refs []Ref, stems []Stem) bool {
	for _, ref := range refs {
		if ref.Kind == RefStem && stems[ref.Idx].Dynamic {
			return true
		}
	}
	return false
}

// compileAttr turns an AttrDesc into a compiled Attr, registering dynamic
// sources in r.Callables (deduplicated by source text, spec §9).
func compileAttr(d AttrDesc, resolve resolver, r *Rule) (Attr, error) {
	if d.Dynamic != "" {
		for i, c := range r.Callables {
			if c.Source == d.Dynamic {
				return Attr{Kind: AttrDynamic, CallableIdx: i}, nil
			}
		}
		r.Callables = append(r.Callables, DynCallable{Source: d.Dynamic})
		return Attr{Kind: AttrDynamic, CallableIdx: len(r.Callables) - 1}, nil
	}
	enc, err := encode(d.Static, resolve)
	if err != nil {
		return Attr{}, err
	}
	return Attr{Kind: AttrStatic, Static: enc}, nil
}
