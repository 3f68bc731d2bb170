// Package autodep implements the execution-tracing substrate (spec §4.5):
// the Record protocol a traced job speaks to the engine, and the ptrace
// backend that synthesizes it by observing a tracee's syscalls directly.
package autodep

import "time"

// LinkSupport controls how aggressively the tracer follows symbolic links
// when resolving an access (spec §4.5 "link_support ∈ {None, File, Full}").
type LinkSupport int8

const (
	// LinkNone: symbolic links are ignored entirely, only final content
	// matters.
	LinkNone LinkSupport = iota
	// LinkFile: the last path component may be a link.
	LinkFile
	// LinkFull: any path component may be a link; uphill directories of
	// every access must be tracked too.
	LinkFull
)

// AccessKind mirrors internal/graph.Access but is re-declared here rather
// than imported, since autodep only ever produces these values and should
// not need to pull in the graph package's full Node/Job machinery to build
// a trace record.
type AccessKind int8

const (
	AccessUnknown AccessKind = iota
	AccessStat
	AccessLnk
	AccessReg
)

// DepRecord is one dependency observed during a job's execution (spec §4.5
// "Deps").
type DepRecord struct {
	File     string
	Access   AccessKind
	Parallel bool // observed concurrently with the previous dep, same chunk
}

// TargetRecord is one file the job wrote (spec §4.5 "Targets").
type TargetRecord struct {
	File string
}

// DepStatus is the per-dep verdict DepVerbose returns (spec §4.5
// "DepVerbose - like ChkDeps but returns per-dep status").
type DepStatus int8

const (
	DepStatusOk DepStatus = iota
	DepStatusErr
	DepStatusUnknown
)

// CodecOp distinguishes a codec request's direction (spec §4.5 "Decode/
// Encode").
type CodecOp int8

const (
	CodecDecode CodecOp = iota
	CodecEncode
)

// Record is the protocol a traced job speaks to the engine (spec §4.5
// "Record protocol from job to engine (sync and async)"). A concrete
// implementation relays calls over the wire protocol (wire.go) to a
// listening engine; the ptrace tracer (tracer.go) synthesizes these calls
// by decoding the tracee's syscalls rather than receiving them from an
// instrumented library, since no preload shim is built (spec §1, §4.5
// "(STUB)").
type Record interface {
	// Deps reports a batch of accesses, async (fire-and-forget from the
	// job's perspective).
	Deps(deps []DepRecord)
	// Targets reports files the job has written so far.
	Targets(targets []TargetRecord)
	// Unlinks reports files the job removed.
	Unlinks(paths []string)
	// ChkDeps is a synchronous barrier: the call blocks until the engine
	// confirms every currently-known dep is clean, or returns an error if
	// any has gone stale.
	ChkDeps(deps []DepRecord) error
	// DepVerbose is ChkDeps but returns a status per dep instead of a
	// single verdict.
	DepVerbose(deps []DepRecord) []DepStatus
	// CriticalBarrier serializes re-execution with respect to every
	// access already reported.
	CriticalBarrier()
	// Decode resolves (file, ctx, code) to its associated value via the
	// codec association file.
	Decode(file, ctx, code string) (val string, ok bool)
	// Encode resolves (file, ctx, val) to a stable short code, allocating
	// one at least minLen characters long if none exists yet.
	Encode(file, ctx, val string, minLen int) (code string, ok bool)
}

// Options configures a tracer run (spec §4.5's link_support plus the
// timeouts a ptrace loop needs to make forward progress even when a tracee
// never calls back in).
type Options struct {
	LinkSupport   LinkSupport
	DepsInSystem  bool // spec §6 option letter 'X': report deps under system dirs too
	ReaddirOK     bool
	IgnoreStat    bool
	CriticalDelay time.Duration
}
