package graph

import (
	"lmake/internal/crc"
	"lmake/internal/store"
)

// FileSig is the cheap last-known file signature used as a proxy for
// content before a real hash is computed (spec §3 Node: "device+inode+size
// +mtime proxy").
type FileSig struct {
	Dev, Ino   uint64
	Size       int64
	MtimeNanos int64
}

// NodeStatus is one of the two interpretations of Node.ConformIdx when it
// does not point into JobTgts (spec §3 invariant: "A Node's conform_idx
// either points into its job_tgts array at its current producing job, or
// encodes a NodeStatus... Exactly one of these interpretations applies").
type NodeStatus int8

const (
	StatusSrc NodeStatus = iota
	StatusMulti
	StatusNone
	StatusUphill
	StatusTransient
)

// JobTgt is a Job reference tagged with whether it is a static-phony
// producer (GLOSSARY "JobTgt"). It is packed into a single store.Idx so it
// can live inline in a store.Crunch list without its own VectorFile.
type JobTgt store.Idx

func MakeJobTgt(job store.Idx, staticPhony bool) JobTgt {
	v := uint32(job) << 1
	if staticPhony {
		v |= 1
	}
	return JobTgt(v)
}

func (t JobTgt) Job() store.Idx     { return store.Idx(uint32(t) >> 1) }
func (t JobTgt) StaticPhony() bool  { return uint32(t)&1 != 0 }

// Node is a position in the file-system namespace as tracked by the engine
// (spec §3 "Node").
type Node struct {
	Path string

	Crc crc.Digest
	Sig FileSig

	Buildable Buildable
	MatchGen  uint64

	// JobTgts holds candidate producing Jobs in priority order, packed via
	// store.Crunch so the overwhelmingly common single-producer case costs
	// no extra indirection (spec §4.1 "Key design").
	JobTgts store.Crunch

	// ConformIdx is interpreted per the invariant documented on NodeStatus:
	// a non-negative value < len(JobTgts items) indexes the current
	// producing job within JobTgts; a negative value is -(1+NodeStatus).
	ConformIdx int

	// Producing is the Job that actually produced this node's current
	// content, store.None if no job has ever produced it (e.g. a source).
	Producing store.Idx
	// Polluting is a Job that wrote this node as an unrequested side
	// effect (spec §3 Node: "a 'polluting' Job").
	Polluting store.Idx
	// Parent is the immediate parent directory Node, store.None for "/".
	Parent store.Idx
}

// ConformJob returns the node's current producing job, if ConformIdx
// points into JobTgts, per the invariant on NodeStatus.
func (n *Node) ConformJob(vf *store.VectorFile[store.Idx]) (store.Idx, bool) {
	if n.ConformIdx < 0 {
		return store.None, false
	}
	items := n.JobTgts.Items(vf)
	if n.ConformIdx >= len(items) {
		return store.None, false
	}
	return JobTgt(items[n.ConformIdx]).Job(), true
}

// Status returns the node's NodeStatus when ConformIdx does not point into
// JobTgts.
func (n *Node) Status() (NodeStatus, bool) {
	if n.ConformIdx >= 0 {
		return 0, false
	}
	return NodeStatus(-(n.ConformIdx + 1)), true
}

// SetStatus encodes a NodeStatus into ConformIdx.
func (n *Node) SetStatus(s NodeStatus) { n.ConformIdx = -(int(s) + 1) }
