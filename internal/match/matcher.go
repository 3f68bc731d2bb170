package match

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"lmake/internal/rule"
)

// Result is the outcome of matching one RuleTgt against a candidate name.
type Result struct {
	Stems map[string]string
	Ok    bool
	// Reason explains a rejection (spec §4.2 step 3: "returning a
	// descriptive rejection reason otherwise").
	Reason string
}

// SourceDirs tells the matcher which prefixes are declared source
// directories; checkCanonical permits "."/".." components, and paths
// outside the repo, only under them (spec §4.2 step 3).
type SourceDirs []string

func (s SourceDirs) contains(name string) bool {
	for _, d := range s {
		if name == d || strings.HasPrefix(name, d+"/") {
			return true
		}
	}
	return false
}

// Matcher discovers candidate rules for a node name and matches a specific
// RuleTgt against it (spec §4.2 "Matching").
type Matcher struct {
	mu      sync.RWMutex
	trie    *Trie
	rules   map[rule.RuleCrc]*rule.Rule
	regexes map[regexKey]*regexp.Regexp
	sources SourceDirs
	repoRoot string
}

type regexKey struct {
	crc rule.RuleCrc
	idx int
}

// New returns an empty Matcher rooted at repoRoot, honoring the given
// declared source directories.
func New(repoRoot string, sources SourceDirs) *Matcher {
	return &Matcher{
		trie:    NewTrie(),
		rules:   make(map[rule.RuleCrc]*rule.Rule),
		regexes: make(map[regexKey]*regexp.Regexp),
		sources: sources,
		repoRoot: repoRoot,
	}
}

// Register adds r's target/star-target patterns to the trie and makes r
// available for CandidatesFor/Match. Re-registering the same RuleCrc is a
// no-op (a rule only changes RuleCrc when its matching characteristics
// change, spec §3 invariant "A RuleCrc is shared by all jobs of that rule").
func (m *Matcher) Register(r *rule.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	crc := r.Crc()
	if _, ok := m.rules[crc]; ok {
		return
	}
	m.rules[crc] = r
	for i := 0; i < r.NStaticTargets+r.NStarTargets; i++ {
		tgt := r.Matches[i]
		m.trie.Insert(literalSuffix(tgt.Pattern), rule.RuleTgt{Rule: crc, MatchIdx: i})
	}
}

// literalSuffix returns the trailing literal run of an encoded pattern,
// i.e. everything after the last stem/match reference — the part a
// candidate name must literally end with.
func literalSuffix(e rule.Encoded) string {
	b := e.Bytes
	last := -1
	for i := 0; i+2 < len(b); i++ {
		if b[i] == 0 {
			last = i + 2
			i += 2 // skip the kind and index bytes, which may themselves be 0
		}
	}
	return string(b[last+1:])
}

// CandidatesFor returns every RuleTgt whose literal suffix matches name,
// ordered by descending rule priority (ties keep trie-discovery order).
func (m *Matcher) CandidatesFor(name string) []rule.RuleTgt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cands := m.trie.CandidatesFor(name)
	ranked := make([]rule.RuleTgt, len(cands))
	copy(ranked, cands)
	// stable insertion sort by descending priority; candidate sets are
	// small in practice so O(n^2) is not a concern.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0; j-- {
			pi := m.rules[ranked[j-1].Rule].Priority
			pj := m.rules[ranked[j].Rule].Priority
			if pj > pi {
				ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			} else {
				break
			}
		}
	}
	return ranked
}

// Match runs the full matching algorithm of spec §4.2 "Matching" for one
// candidate RuleTgt against name. chkPsfx, when true, tells Match the
// caller has already verified the suffix/prefix filter (e.g. because tgt
// came from CandidatesFor) so the redundant check is skipped.
func (m *Matcher) Match(tgt rule.RuleTgt, name string, chkPsfx bool) Result {
	m.mu.RLock()
	r, ok := m.rules[tgt.Rule]
	m.mu.RUnlock()
	if !ok {
		return Result{Reason: "unknown rule crc"}
	}
	if tgt.MatchIdx < 0 || tgt.MatchIdx >= len(r.Matches) {
		return Result{Reason: "match index out of range"}
	}
	pat := r.Matches[tgt.MatchIdx].Pattern

	if !chkPsfx && !strings.HasSuffix(name, literalSuffix(pat)) {
		return Result{Reason: "suffix mismatch"}
	}

	re := m.regexFor(tgt, r, pat)
	sub := re.FindStringSubmatch(name)
	if sub == nil {
		return Result{Reason: "pattern did not match"}
	}
	stems := make(map[string]string)
	for i, g := range re.SubexpNames() {
		if i == 0 || g == "" {
			continue
		}
		stems[g] = sub[i]
	}

	if reason, ok := m.checkCanonical(name); !ok {
		return Result{Reason: reason}
	}

	return Result{Stems: stems, Ok: true}
}

// regexFor lazily builds (and caches) the regexp equivalent to pat,
// substituting each stem reference by a named capture group built from
// that stem's own regex (spec §4.2 step 2 "Run the compiled regex").
func (m *Matcher) regexFor(tgt rule.RuleTgt, r *rule.Rule, pat rule.Encoded) *regexp.Regexp {
	key := regexKey{crc: tgt.Rule, idx: tgt.MatchIdx}
	m.mu.RLock()
	if re, ok := m.regexes[key]; ok {
		m.mu.RUnlock()
		return re
	}
	m.mu.RUnlock()

	var b strings.Builder
	b.WriteString("^")
	bytes := pat.Bytes
	refIdx := 0
	i := 0
	for i < len(bytes) {
		if bytes[i] == 0 && i+2 < len(bytes) {
			ref := pat.Refs[refIdx]
			refIdx++
			if ref.Kind == rule.RefStem {
				s := r.Stems[ref.Idx]
				b.WriteString(fmt.Sprintf("(?P<%s>%s)", s.Name, s.Regex))
			} else {
				b.WriteString("(.*)")
			}
			i += 3
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(bytes[i])))
		i++
	}
	re := regexp.MustCompile(b.String())

	m.mu.Lock()
	m.regexes[key] = re
	m.mu.Unlock()
	return re
}

// checkCanonical validates that name's matched prefix/suffix is canonical:
// no "."/".." components unless inside a declared source dir, no trailing
// "/" on a file path, and the path must resolve inside the repo or a
// declared source dir (spec §4.2 step 3).
func (m *Matcher) checkCanonical(name string) (string, bool) {
	if strings.HasSuffix(name, "/") {
		return "trailing slash on file target", false
	}
	hasDotDot := false
	for _, part := range strings.Split(name, "/") {
		if part == "." || part == ".." {
			hasDotDot = true
			break
		}
	}
	if hasDotDot && !m.sources.contains(name) {
		return "relative path component outside a declared source dir", false
	}
	if (strings.HasPrefix(name, "/") || strings.HasPrefix(name, "../")) && !m.sources.contains(name) {
		return "path escapes the repository root", false
	}
	return "", true
}
