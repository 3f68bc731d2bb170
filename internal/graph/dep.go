package graph

import (
	"lmake/internal/crc"
	"lmake/internal/rule"
	"lmake/internal/store"
)

// Access is the kind of filesystem access a Dep records having observed
// (spec §4.4: "an access bitset {Stat, Lnk, Reg, unknown}").
type Access uint8

const (
	AccessStat Access = 1 << iota
	AccessLnk
	AccessReg
	AccessUnknown
)

// Dep is one dependency of a Job: a Node plus the access/flag information
// needed to decide, without re-running the job, whether that dependency is
// still up to date (spec §4.4 "Dep").
type Dep struct {
	Node    store.Idx
	Access  Access
	Flags   rule.Dflags
	// Parallel marks this Dep as belonging to the same parallel-access
	// group as the previous Dep in the owning DepVector (spec §4.4
	// "consecutive deps opened without an intervening barrier are flagged
	// as belonging to the same parallel-access group").
	Parallel bool
	// Crc is the content hash (or, for deps too large/unneeded to hash,
	// FileSig) observed at the moment this dependency was read.
	Crc crc.Digest
	Sig FileSig
}

// depRun is one run-length chunk: n consecutive Deps that share Access and
// Flags, differing only in Node/Crc/Sig/Parallel (spec §4.4: "consecutive
// Nodes sharing flags are packed into a single run-length-style chunk
// rather than one record per dep").
type depRun struct {
	Access Access
	Flags  rule.Dflags
	Deps   []Dep
}

// DepVector is a Job's ordered dependency list, stored as a sequence of
// run-length chunks (spec §4.4). Static deps from the rule's DepTemplate
// table seed the vector in declaration order; autodep appends dynamically
// discovered deps as they are observed.
type DepVector struct {
	runs []depRun
}

// Append adds d to the vector, extending the last chunk if d shares its
// Access/Flags, or starting a new chunk otherwise.
func (v *DepVector) Append(d Dep) {
	if n := len(v.runs); n > 0 {
		last := &v.runs[n-1]
		if last.Access == d.Access && last.Flags == d.Flags {
			last.Deps = append(last.Deps, d)
			return
		}
	}
	v.runs = append(v.runs, depRun{Access: d.Access, Flags: d.Flags, Deps: []Dep{d}})
}

// Len returns the total number of Deps across all chunks.
func (v *DepVector) Len() int {
	n := 0
	for _, r := range v.runs {
		n += len(r.Deps)
	}
	return n
}

// Each calls fn for every Dep in order, along with the Access/Flags shared
// by its chunk.
func (v *DepVector) Each(fn func(d Dep, access Access, flags rule.Dflags)) {
	for _, r := range v.runs {
		for _, d := range r.Deps {
			fn(d, r.Access, r.Flags)
		}
	}
}

// At returns the i'th Dep (0-indexed across chunk boundaries) and its
// shared Access/Flags.
func (v *DepVector) At(i int) (Dep, Access, rule.Dflags, bool) {
	for _, r := range v.runs {
		if i < len(r.Deps) {
			return r.Deps[i], r.Access, r.Flags, true
		}
		i -= len(r.Deps)
	}
	return Dep{}, 0, 0, false
}

// nodeCrc/nodeSig abstract the lookup a caller needs to re-check a Dep
// without coupling DepVector to a concrete store layout.
type nodeCrc interface {
	CrcOf(store.Idx) crc.Digest
	SigOf(store.Idx) FileSig
}

// UpToDate reports whether every Dep in v still matches the current state
// of its Node, per the up-to-date check of spec §4.4/§8 property 1: a dep
// is up to date according to the comparison its recorded Access kind calls
// for (see depMatches). The scan stops at the first out-of-date dep,
// whatever its Dflags, and returns its Node as firstMismatch.
func (v *DepVector) UpToDate(nodes nodeCrc) (ok bool, firstMismatch store.Idx) {
	for _, r := range v.runs {
		for _, d := range r.Deps {
			if !depMatches(d, nodes) {
				return false, d.Node
			}
		}
	}
	return true, store.None
}

// depMatches applies the access-kind-aware comparison spec §4.4/§8
// property 1 requires: Stat only ever recorded that the node existed or
// not (crc.None is the "observed absent" sentinel, spec §4.4), so a Stat
// dep is up to date as long as presence hasn't flipped, irrespective of
// content. Lnk and Reg recorded real content, so they compare the content
// hash (falling back to the FileSig proxy when no hash was kept, e.g. a
// dep too large to checksum). An unset/unknown Access kind has no sharper
// rule available than exact equality, so it runs the same content check.
func depMatches(d Dep, nodes nodeCrc) bool {
	if d.Access == AccessStat {
		return (d.Crc == crc.None) == (nodes.CrcOf(d.Node) == crc.None)
	}
	if !d.Crc.IsSpecial() {
		return nodes.CrcOf(d.Node) == d.Crc
	}
	return nodes.SigOf(d.Node) == d.Sig
}
