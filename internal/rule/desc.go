package rule

// Desc is the declarative description the rule compiler consumes — the
// interface the out-of-scope rule-authoring DSL (spec §1: "a configuration
// language that produces a list of rules") must ultimately produce. In this
// repository internal/config loads Desc values from YAML in lieu of
// evaluating an Lmakefile (SPEC_FULL.md §4.2 "Rule ingestion (STUB)").
type Desc struct {
	Name  string
	Stems map[string]StemDesc
	JobName string
	Matches []MatchDesc
	StaticDeps []DepDesc
	Cmd       AttrDesc
	Resources AttrDesc
	Env       AttrDesc
	Priority  int
	Force     bool
	LinkSupport string // "none" | "file" | "full"

	// cmd_crc inputs that are not expressible as rule fields but still
	// participate in the hash per spec §4.2 step 5.
	OSInfo           string
	SubRepo          string
	SourceDirManifest string
}

// StemDesc describes one named capture; Dynamic marks a stem whose value
// only resolves once the job runs (GLOSSARY "Stem"; spec §4.2 "dynamic
// stems (pattern fragments that match at runtime)").
type StemDesc struct {
	Regex   string
	Dynamic bool
}

// MatchDesc describes one entry to add to the compiled matches table.
type MatchDesc struct {
	Tag     MatchTag
	Pattern string // may reference {stem}
	Flags   Tflags
}

// DepDesc describes one static dependency template.
type DepDesc struct {
	Name  string
	Path  string // f-string, may reference {stem}/{match}
	Flags Dflags
}

// AttrDesc describes a cmd/resources/env attribute: either a literal
// f-string (Dynamic == "") or a scripting-runtime expression.
type AttrDesc struct {
	Static  string
	Dynamic string
}
