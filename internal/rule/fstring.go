package rule

import (
	"fmt"
	"strings"
)

// refMarker is a byte that user-authored patterns and f-string literals
// are assumed not to contain (encode does not check for it), so a marker byte
// followed by a (kind, index) pair can be told apart from literal text in
// one pass — spec §4.2 step 2/4: "a single-character marker... This bounded
// encoding lets us walk patterns in O(n)".
const refMarker = 0x00

// RefKind says what an encoded reference inside a pattern or f-string
// points at.
type RefKind uint8

const (
	RefStem RefKind = iota
	RefMatch
	RefDep
	RefResource
)

// Ref is one decoded reference: what it points at and that target's index.
type Ref struct {
	Kind RefKind
	Idx  int
}

// Encoded is a pattern or f-string after {name} references have been
// rewritten to refMarker+kind+index triples. Literal runs are kept as-is;
// Refs records where, in byte order, each reference occurred so evaluation
// can walk both slices in lockstep without re-scanning.
type Encoded struct {
	Raw  string // original source, kept for diagnostics
	Bytes []byte
	Refs []Ref
}

// resolver maps a bare {name} to a (kind, index) pair. Returns ok=false if
// name is not a known stem/match/dep/resource in the current rule.
type resolver func(name string) (Ref, bool)

// encode rewrites every {name} occurrence in src using resolve, producing
// the marker-based flat byte string spec §4.2 steps 2 and 4 describe.
func encode(src string, resolve resolver) (Encoded, error) {
	var out []byte
	var refs []Ref
	i := 0
	for i < len(src) {
		if src[i] == '{' {
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return Encoded{}, fmt.Errorf("rule: unterminated %q in %q", "{", src)
			}
			name := src[i+1 : i+1+end]
			ref, ok := resolve(name)
			if !ok {
				return Encoded{}, fmt.Errorf("rule: unknown reference {%s} in %q", name, src)
			}
			out = append(out, refMarker, byte(ref.Kind), byte(ref.Idx))
			refs = append(refs, ref)
			i += end + 2
			continue
		}
		out = append(out, src[i])
		i++
	}
	return Encoded{Raw: src, Bytes: out, Refs: refs}, nil
}

// Substitute walks an Encoded value, replacing each reference with the
// string value(ref) returns and copying literal runs through unchanged.
func (e Encoded) Substitute(value func(Ref) string) string {
	var b strings.Builder
	refIdx := 0
	i := 0
	for i < len(e.Bytes) {
		if e.Bytes[i] == refMarker && i+2 < len(e.Bytes) {
			b.WriteString(value(e.Refs[refIdx]))
			refIdx++
			i += 3
			continue
		}
		b.WriteByte(e.Bytes[i])
		i++
	}
	return b.String()
}
