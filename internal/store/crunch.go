package store

// Crunch packs a small list of Idx (e.g. a Node's JobTgts candidates, or a
// Job's static targets before they overflow into a VectorFile) inline when
// it holds zero or one element, avoiding an indirection for the overwhelmingly
// common single-producer case — the Go analogue of open-lmake's CrunchBase
// 64-bit discriminated union (spec §4.1 "Key design"). A multi-element list
// spills into a backing VectorFile[Idx] and Crunch stores only the overflow
// index plus a "spilled" flag.
//
// Crunch is intentionally not generic over element type: every inline use
// in this codebase (JobTgts, static dep lists before chunking) is a list of
// store Idx values, and keeping the packed representation monomorphic keeps
// the zero-value semantics (empty == zero Crunch) exact.
type Crunch struct {
	inline  Idx  // valid element when !spilled && inline != None
	spilled bool
	overflow Idx // index into a *VectorFile[Idx] when spilled
}

// Empty reports whether the list holds no elements.
func (c Crunch) Empty() bool { return !c.spilled && c.inline == None }

// Set replaces the list's contents. vf is the overflow store to use when
// more than one element is held; it must be the same *VectorFile[Idx] for
// the lifetime of any Crunch values sharing it.
func (c *Crunch) Set(vf *VectorFile[Idx], items []Idx) {
	if c.spilled && c.overflow != None {
		vf.Pop(c.overflow)
	}
	switch len(items) {
	case 0:
		*c = Crunch{}
	case 1:
		*c = Crunch{inline: items[0]}
	default:
		*c = Crunch{spilled: true, overflow: vf.Emplace(items)}
	}
}

// Append adds one element to the list, spilling to vf if this is the
// second element.
func (c *Crunch) Append(vf *VectorFile[Idx], item Idx) {
	switch {
	case c.Empty():
		c.inline = item
	case !c.spilled:
		first := c.inline
		*c = Crunch{spilled: true, overflow: vf.Emplace([]Idx{first, item})}
	default:
		vf.Append(c.overflow, []Idx{item})
	}
}

// Items returns the list's current contents. The returned slice is only
// valid until the next mutation of c or of vf's slot for c.overflow.
func (c Crunch) Items(vf *VectorFile[Idx]) []Idx {
	switch {
	case c.Empty():
		return nil
	case !c.spilled:
		return []Idx{c.inline}
	default:
		return vf.At(c.overflow)
	}
}
