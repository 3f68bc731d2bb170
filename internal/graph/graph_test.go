package graph

import (
	"testing"

	"lmake/internal/crc"
	"lmake/internal/rule"
	"lmake/internal/store"
)

// fakeNodes is a minimal nodeCrc used to exercise DepVector.UpToDate
// without pulling in a full store.
type fakeNodes struct {
	crcs map[store.Idx]crc.Digest
	sigs map[store.Idx]FileSig
}

func (f fakeNodes) CrcOf(i store.Idx) crc.Digest { return f.crcs[i] }
func (f fakeNodes) SigOf(i store.Idx) FileSig    { return f.sigs[i] }

func TestDepVectorChunksConsecutiveSharedFlags(t *testing.T) {
	var v DepVector
	v.Append(Dep{Node: 1, Access: AccessReg, Flags: rule.DflagStatic})
	v.Append(Dep{Node: 2, Access: AccessReg, Flags: rule.DflagStatic})
	v.Append(Dep{Node: 3, Access: AccessStat, Flags: rule.DflagStatic})

	if got := len(v.runs); got != 2 {
		t.Fatalf("expected 2 chunks (first two deps share access/flags), got %d", got)
	}
	if got := len(v.runs[0].Deps); got != 2 {
		t.Fatalf("expected first chunk to hold 2 deps, got %d", got)
	}
	if got := v.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
}

func TestDepVectorUpToDateHashMatchLaw(t *testing.T) {
	// Property: a dep is up to date iff its recorded crc equals the node's
	// current crc (or, for special crcs, FileSig equality holds instead).
	good := crc.OfString("content-a")
	var v DepVector
	v.Append(Dep{Node: 1, Access: AccessReg, Flags: rule.DflagStatic, Crc: good})

	nodes := fakeNodes{crcs: map[store.Idx]crc.Digest{1: good}}
	ok, _ := v.UpToDate(nodes)
	if !ok {
		t.Fatal("expected up to date when recorded crc equals node's current crc")
	}

	nodes.crcs[1] = crc.OfString("content-b")
	ok, mismatch := v.UpToDate(nodes)
	if ok || mismatch != 1 {
		t.Fatalf("expected mismatch at node 1 once content diverges, got ok=%v mismatch=%v", ok, mismatch)
	}
}

func TestDepVectorUpToDateFallsBackToFileSig(t *testing.T) {
	sig := FileSig{Dev: 1, Ino: 2, Size: 3, MtimeNanos: 4}
	var v DepVector
	v.Append(Dep{Node: 1, Access: AccessReg, Flags: rule.DflagStatic, Crc: crc.None, Sig: sig})

	nodes := fakeNodes{sigs: map[store.Idx]FileSig{1: sig}}
	ok, _ := v.UpToDate(nodes)
	if !ok {
		t.Fatal("expected up to date via FileSig when crc is the None sentinel")
	}

	nodes.sigs[1] = FileSig{Dev: 1, Ino: 2, Size: 3, MtimeNanos: 999}
	ok, _ = v.UpToDate(nodes)
	if ok {
		t.Fatal("expected stale once FileSig diverges")
	}
}

// TestDepVectorUpToDateStatAccessIsExistenceOnly is spec §4.4/§8 property 1:
// a Stat dep only ever observed whether the node existed, so it stays up
// to date across any content change as long as presence doesn't flip.
func TestDepVectorUpToDateStatAccessIsExistenceOnly(t *testing.T) {
	var v DepVector
	v.Append(Dep{Node: 1, Access: AccessStat, Flags: rule.DflagStatic, Crc: crc.OfString("irrelevant")})

	nodes := fakeNodes{crcs: map[store.Idx]crc.Digest{1: crc.OfString("changed since")}}
	ok, _ := v.UpToDate(nodes)
	if !ok {
		t.Fatal("expected a Stat dep to stay up to date when content changes but presence doesn't")
	}

	delete(nodes.crcs, 1) // node now absent: CrcOf falls back to the zero value, crc.None
	ok, mismatch := v.UpToDate(nodes)
	if ok || mismatch != 1 {
		t.Fatalf("expected a Stat dep to go stale once presence flips, got ok=%v mismatch=%v", ok, mismatch)
	}
}

// TestNodeJobOwnershipDisjoint exercises the invariant that a Node's
// ConformIdx interpretation is exclusive: it either indexes into JobTgts or
// encodes a NodeStatus, never both at once.
func TestNodeJobOwnershipDisjoint(t *testing.T) {
	vf := store.NewVectorFile[store.Idx]()
	n := &Node{}
	n.JobTgts.Set(vf, []store.Idx{store.Idx(MakeJobTgt(7, false))})
	n.ConformIdx = 0

	if job, ok := n.ConformJob(vf); !ok || job != 7 {
		t.Fatalf("expected conform job 7, got %v ok=%v", job, ok)
	}
	if _, ok := n.Status(); ok {
		t.Fatal("ConformIdx pointing into JobTgts must not also report a NodeStatus")
	}

	n.SetStatus(StatusUphill)
	if _, ok := n.ConformJob(vf); ok {
		t.Fatal("ConformIdx encoding a NodeStatus must not also resolve to a conform job")
	}
	status, ok := n.Status()
	if !ok || status != StatusUphill {
		t.Fatalf("expected StatusUphill, got %v ok=%v", status, ok)
	}
}

func TestJobTgtPacksStaticPhonyBit(t *testing.T) {
	jt := MakeJobTgt(42, true)
	if jt.Job() != 42 || !jt.StaticPhony() {
		t.Fatalf("JobTgt round-trip failed: job=%d staticPhony=%v", jt.Job(), jt.StaticPhony())
	}
	jt2 := MakeJobTgt(42, false)
	if jt2.StaticPhony() {
		t.Fatal("expected StaticPhony false")
	}
}

func TestBuildableOrderingInvariant(t *testing.T) {
	if !No.DefinitelyNotBuildable() {
		t.Fatal("No must be DefinitelyNotBuildable")
	}
	if Maybe.DefinitelyNotBuildable() || Maybe.DefinitelyBuildable() {
		t.Fatal("Maybe must need further work, neither definite outcome")
	}
	if !Yes.DefinitelyBuildable() {
		t.Fatal("Yes must be DefinitelyBuildable")
	}
	if !Loop.DefinitelyBuildable() {
		t.Fatal("Loop sorts after Yes and must remain DefinitelyBuildable")
	}
}
