// Package crc provides the content-hash primitives shared by rules, nodes
// and deps: a strong 64-bit digest plus the two sentinel values (None,
// Empty) that must be distinguishable from the hash of any real content.
package crc

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Digest is a strong content hash, truncated to 64 bits for compactness in
// the Dep chunked vector (internal/graph.DepVector). Collisions are not a
// correctness concern at the scale this engine targets; the full SHA-256
// is computed and folded rather than switching to a weaker hash outright.
type Digest uint64

const (
	// None marks an absent file. It is never produced by Of/OfString.
	None Digest = 0
	// Empty marks a zero-byte regular file, distinguished from hashing
	// the empty byte string so that "no file" and "empty file" never
	// collide with content.
	Empty Digest = 1
)

// Of folds a SHA-256 digest of data into a Digest, reserving 0 and 1 for
// the None/Empty sentinels.
func Of(data []byte) Digest {
	if len(data) == 0 {
		return Empty
	}
	sum := sha256.Sum256(data)
	d := Digest(binary.LittleEndian.Uint64(sum[:8]))
	if d == None || d == Empty {
		d ^= 0xA5A5A5A5A5A5A5A5
	}
	return d
}

// OfString is a convenience wrapper for content already in memory as text.
func OfString(s string) Digest { return Of([]byte(s)) }

// Reduce folds a sequence of Digests (e.g. the fields that make up a
// RuleCrc tier) into one Digest, order-sensitive so that two tiers hashing
// the same set of fields in a different order do not collide.
func Reduce(parts ...Digest) Digest {
	h := sha256.New()
	var buf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		h.Write(buf[:])
	}
	sum := h.Sum(nil)
	d := Digest(binary.LittleEndian.Uint64(sum[:8]))
	if d == None || d == Empty {
		d ^= 0xA5A5A5A5A5A5A5A5
	}
	return d
}

// IsSpecial reports whether d is one of the None/Empty sentinels rather
// than a real content hash.
func (d Digest) IsSpecial() bool { return d == None || d == Empty }

func (d Digest) String() string {
	switch d {
	case None:
		return "<none>"
	case Empty:
		return "<empty>"
	default:
		return fmt.Sprintf("%016x", uint64(d))
	}
}
