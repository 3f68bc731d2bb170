package orchestrate

import (
	"lmake/internal/crc"
	"lmake/internal/engine"
	"lmake/internal/graph"
	"lmake/internal/store"
)

// engineNodeCrc adapts an *engine.Engine to graph's unexported nodeCrc
// interface, so DepVector.UpToDate can consult live Node state without
// DepVector needing to know about engine.Engine at all.
type engineNodeCrc struct {
	eng *engine.Engine
}

func (e engineNodeCrc) CrcOf(idx store.Idx) crc.Digest   { return e.eng.Nodes.Get(idx).Crc }
func (e engineNodeCrc) SigOf(idx store.Idx) graph.FileSig { return e.eng.Nodes.Get(idx).Sig }
