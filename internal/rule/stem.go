package rule

import "regexp"

// Stem is a named capture in a rule pattern (GLOSSARY "Stem"). A stem is
// "static" if its regex is known before any job of this rule runs (it
// captures directly from the target name); "dynamic" stems are pattern
// fragments that only resolve once the job is actually running (spec §4.2
// "dynamic stems (pattern fragments that match at runtime)") — e.g. a stem
// whose value depends on a side-target discovered at execution time.
type Stem struct {
	Name     string
	Regex    string
	Dynamic  bool
	compiled *regexp.Regexp
	nGroups  int // back-reference groups this stem's regex introduces
}

// compileStem validates a stem's regex and records how many capturing
// groups it introduces, per spec §4.2 step 1 ("compute the number of
// \N-style back-reference groups it introduces so captures can later be
// numbered correctly").
func compileStem(s Stem) (Stem, error) {
	re, err := regexp.Compile(s.Regex)
	if err != nil {
		return Stem{}, err
	}
	s.compiled = re
	s.nGroups = re.NumSubexp()
	return s, nil
}
