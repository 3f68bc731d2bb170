package config

import (
	"fmt"
	"strings"

	"lmake/internal/rule"
)

// RuleConfig is the YAML stand-in for one Lmakefile rule (spec §4.2 "Rule
// ingestion (STUB)"): it maps 1:1 onto rule.Desc, the input the compiler
// documented in spec §4.2 step 1 expects, so CompileAll does nothing more
// than type conversion before calling rule.Compile.
type RuleConfig struct {
	Name        string                `yaml:"name"`
	Stems       map[string]StemConfig `yaml:"stems"`
	JobName     string                `yaml:"job_name"`
	Matches     []MatchConfig         `yaml:"matches"`
	StaticDeps  []DepConfig           `yaml:"static_deps"`
	Cmd         AttrConfig            `yaml:"cmd"`
	Resources   AttrConfig            `yaml:"resources"`
	Env         AttrConfig            `yaml:"env"`
	Priority    int                   `yaml:"priority"`
	Force       bool                  `yaml:"force"`
	LinkSupport string                `yaml:"link_support"`
}

// StemConfig mirrors rule.StemDesc.
type StemConfig struct {
	Regex   string `yaml:"regex"`
	Dynamic bool   `yaml:"dynamic"`
}

// MatchConfig mirrors rule.MatchDesc, with Tag/Flags spelled as YAML-
// friendly strings instead of the compiler's packed enums.
type MatchConfig struct {
	Tag     string   `yaml:"tag"` // "target" | "side_target" | "side_dep"
	Pattern string   `yaml:"pattern"`
	Flags   []string `yaml:"flags"` // "phony", "incremental", "static", "essential"
}

// DepConfig mirrors rule.DepDesc.
type DepConfig struct {
	Name  string   `yaml:"name"`
	Path  string   `yaml:"path"`
	Flags []string `yaml:"flags"` // "required", "ignore_error" ("static" is implied)
}

// AttrConfig mirrors rule.AttrDesc: exactly one of Static or Dynamic should
// be set.
type AttrConfig struct {
	Static  string `yaml:"static"`
	Dynamic string `yaml:"dynamic"`
}

// CompileAll converts every RuleConfig to a rule.Desc and compiles it,
// stopping at the first error (spec §7 "ConfigError").
func CompileAll(rules []RuleConfig) ([]*rule.Rule, error) {
	compiled := make([]*rule.Rule, 0, len(rules))
	for _, rc := range rules {
		r, err := rc.Compile()
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// Compile converts this RuleConfig into a rule.Desc and runs it through
// rule.Compile.
func (rc RuleConfig) Compile() (*rule.Rule, error) {
	d := rule.Desc{
		Name:        rc.Name,
		JobName:     rc.JobName,
		Priority:    rc.Priority,
		Force:       rc.Force,
		LinkSupport: rc.LinkSupport,
	}

	if len(rc.Stems) > 0 {
		d.Stems = make(map[string]rule.StemDesc, len(rc.Stems))
		for name, sc := range rc.Stems {
			d.Stems[name] = rule.StemDesc{Regex: sc.Regex, Dynamic: sc.Dynamic}
		}
	}

	for _, mc := range rc.Matches {
		tag, err := parseMatchTag(mc.Tag)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		flags, err := parseTflags(mc.Flags)
		if err != nil {
			return nil, fmt.Errorf("rule %s: match %s: %w", rc.Name, mc.Pattern, err)
		}
		d.Matches = append(d.Matches, rule.MatchDesc{Tag: tag, Pattern: mc.Pattern, Flags: flags})
	}

	for _, dc := range rc.StaticDeps {
		flags, err := parseDflags(dc.Flags)
		if err != nil {
			return nil, fmt.Errorf("rule %s: dep %s: %w", rc.Name, dc.Name, err)
		}
		d.StaticDeps = append(d.StaticDeps, rule.DepDesc{Name: dc.Name, Path: dc.Path, Flags: flags})
	}

	d.Cmd = rule.AttrDesc{Static: rc.Cmd.Static, Dynamic: rc.Cmd.Dynamic}
	d.Resources = rule.AttrDesc{Static: rc.Resources.Static, Dynamic: rc.Resources.Dynamic}
	d.Env = rule.AttrDesc{Static: rc.Env.Static, Dynamic: rc.Env.Dynamic}

	return rule.Compile(d)
}

func parseMatchTag(s string) (rule.MatchTag, error) {
	switch s {
	case "", "target":
		return rule.MatchTarget, nil
	case "side_target":
		return rule.MatchSideTarget, nil
	case "side_dep":
		return rule.MatchSideDep, nil
	default:
		return 0, fmt.Errorf("unknown match tag %q", s)
	}
}

func parseTflags(flags []string) (rule.Tflags, error) {
	var f rule.Tflags
	for _, name := range flags {
		switch strings.ToLower(name) {
		case "target":
			f |= rule.TflagTarget
		case "phony":
			f |= rule.TflagPhony
		case "incremental":
			f |= rule.TflagIncremental
		case "static":
			f |= rule.TflagStatic
		case "essential":
			f |= rule.TflagEssential
		default:
			return 0, fmt.Errorf("unknown target flag %q", name)
		}
	}
	return f, nil
}

func parseDflags(flags []string) (rule.Dflags, error) {
	var f rule.Dflags
	for _, name := range flags {
		switch strings.ToLower(name) {
		case "static":
			f |= rule.DflagStatic
		case "required":
			f |= rule.DflagRequired
		case "ignore_error":
			f |= rule.DflagIgnoreError
		default:
			return 0, fmt.Errorf("unknown dep flag %q", name)
		}
	}
	return f, nil
}
