// Package graph implements the two-kinded Node/Job DAG: its invariants,
// ownership of targets/deps, dep encoding, and the up-to-date check
// (spec §3, §4.3, §4.4).
package graph

// Buildable classifies a Node's reachability under the current rule set
// (GLOSSARY "Buildable"). Values are ordered exactly as spec §3 lists them
// so that "<=No is definitely not buildable, >=Yes is definitely
// buildable, Unknown/Maybe mean further work is needed" holds as a plain
// integer comparison.
type Buildable int8

const (
	Anti Buildable = iota
	SrcDir
	SubSrc
	PathTooLong
	DynAnti
	No
	Maybe
	SubSrcDir
	Unknown
	Yes
	DynSrc
	Src
	Decode
	Encode
	Loop
)

// DefinitelyNotBuildable reports b<=No.
func (b Buildable) DefinitelyNotBuildable() bool { return b <= No }

// DefinitelyBuildable reports b>=Yes.
func (b Buildable) DefinitelyBuildable() bool { return b >= Yes }

// NeedsWork reports whether further classification work is required before
// b can be trusted (Unknown or Maybe).
func (b Buildable) NeedsWork() bool { return b == Unknown || b == Maybe }

func (b Buildable) String() string {
	switch b {
	case Anti:
		return "Anti"
	case SrcDir:
		return "SrcDir"
	case SubSrc:
		return "SubSrc"
	case PathTooLong:
		return "PathTooLong"
	case DynAnti:
		return "DynAnti"
	case No:
		return "No"
	case Maybe:
		return "Maybe"
	case SubSrcDir:
		return "SubSrcDir"
	case Unknown:
		return "Unknown"
	case Yes:
		return "Yes"
	case DynSrc:
		return "DynSrc"
	case Src:
		return "Src"
	case Decode:
		return "Decode"
	case Encode:
		return "Encode"
	case Loop:
		return "Loop"
	default:
		return "?"
	}
}
