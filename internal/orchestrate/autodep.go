package orchestrate

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"lmake/internal/autodep"
	"lmake/internal/codec"
	"lmake/internal/graph"
)

// depCollector implements autodep.Handler, accumulating per-job dependency
// reports streamed over the mngt socket while that job's traced process is
// still running (spec §4.5 "Record protocol"). One collector is shared by
// every job a Builder runs; reports are segregated by job id and drained
// once the job that produced them exits.
type depCollector struct {
	mu     sync.Mutex
	deps   map[uint64][]autodep.DepRecord
	tables map[string]*codec.Table // association files, keyed by path
}

func newDepCollector() *depCollector {
	return &depCollector{
		deps:   make(map[uint64][]autodep.DepRecord),
		tables: make(map[string]*codec.Table),
	}
}

func (c *depCollector) OnDeps(jobID uint64, deps []autodep.DepRecord) {
	c.mu.Lock()
	c.deps[jobID] = append(c.deps[jobID], deps...)
	c.mu.Unlock()
}

func (c *depCollector) OnTargets(uint64, []autodep.TargetRecord) {}
func (c *depCollector) OnUnlinks(uint64, []string)               {}

// OnChkDeps/OnDepVerbose always report clean: Builder runs one job at a
// time, so there is never a concurrent writer whose output a ChkDeps
// barrier would need to wait out (see DESIGN.md).
func (c *depCollector) OnChkDeps(uint64, []autodep.DepRecord) bool { return true }

func (c *depCollector) OnDepVerbose(_ uint64, deps []autodep.DepRecord) []autodep.DepStatus {
	out := make([]autodep.DepStatus, len(deps))
	for i := range out {
		out[i] = autodep.DepStatusOk
	}
	return out
}

func (c *depCollector) OnCriticalBarrier(uint64) {}
func (c *depCollector) OnHeartbeat(uint64)       {}

// table returns the in-memory codec.Table backing file, loading it from
// disk on first use (spec §6 "a durable, human-editable" association file).
func (c *depCollector) table(file string) *codec.Table {
	t, ok := c.tables[file]
	if ok {
		return t
	}
	t = codec.New()
	if f, err := os.Open(file); err == nil {
		if parsed, err := codec.Parse(f); err == nil {
			t = parsed
		}
		f.Close()
	}
	c.tables[file] = t
	return t
}

func (c *depCollector) flush(file string, t *codec.Table) {
	f, err := os.Create(file)
	if err != nil {
		return
	}
	defer f.Close()
	_ = t.Write(f)
}

func (c *depCollector) OnDecode(_ uint64, file, ctx, code string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table(file).Decode(ctx, code)
}

// OnEncode allocates a fresh code at least minLen digits long when (ctx,
// val) has no code yet, the engine side of spec §6 "Encode resolves (file,
// ctx, val) to a stable short code, allocating one ... if none exists yet".
func (c *depCollector) OnEncode(_ uint64, file, ctx, val string, minLen int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.table(file)
	if code, ok := t.Encode(ctx, val); ok {
		return code, true
	}
	for i := 0; ; i++ {
		code := fmt.Sprintf("%0*d", minLen, i)
		if _, exists := t.Decode(ctx, code); exists {
			continue
		}
		t.Put(ctx, code, val)
		c.flush(file, t)
		return code, true
	}
}

// take returns and clears every dep reported for jobID since the last take,
// for buildJob to fold into that job's DepVector once its process exits.
func (c *depCollector) take(jobID uint64) []autodep.DepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	deps := c.deps[jobID]
	delete(c.deps, jobID)
	return deps
}

// ensureAutodepServer lazily stands up the mngt socket Builder's traced
// jobs dial into (spec §4.5), starting it at most once per Builder.
func (b *Builder) ensureAutodepServer() (string, error) {
	b.autodepOnce.Do(func() {
		dir := b.SockDir
		if dir == "" {
			dir = filepath.Join(b.RepoRoot, ".lmake", "sock")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.autodepErr = fmt.Errorf("orchestrate: create sock dir: %w", err)
			return
		}
		sockPath := filepath.Join(dir, "mngt.sock")
		os.Remove(sockPath) // stale socket left by a prior crashed run

		ln, err := autodep.Listen(sockPath)
		if err != nil {
			b.autodepErr = fmt.Errorf("orchestrate: listen %s: %w", sockPath, err)
			return
		}
		b.collector = newDepCollector()
		b.autodepSrv = autodep.NewServer(ln, b.collector)
		b.autodepSock = sockPath
		go func() {
			if err := b.autodepSrv.Serve(); err != nil {
				b.log.Infof("autodep server stopped: %v", err)
			}
		}()
	})
	if b.autodepErr != nil {
		return "", b.autodepErr
	}
	return b.autodepSock, nil
}

// resolveAutodepBin locates the lmake-autodep tracer helper, first on PATH
// then as a sibling of the running binary (the layout `go install`/a
// release tarball both produce).
func resolveAutodepBin() (string, error) {
	if p, err := exec.LookPath("lmake-autodep"); err == nil {
		return p, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("orchestrate: locate lmake-autodep: %w", err)
	}
	cand := filepath.Join(filepath.Dir(self), "lmake-autodep")
	if _, err := os.Stat(cand); err != nil {
		return "", fmt.Errorf("orchestrate: lmake-autodep not found on PATH or at %s", cand)
	}
	return cand, nil
}

// convertAccess maps autodep's own AccessKind enum onto graph.Access (the
// two are deliberately kept as separate types, see autodep/record.go).
func convertAccess(a autodep.AccessKind) graph.Access {
	switch a {
	case autodep.AccessStat:
		return graph.AccessStat
	case autodep.AccessLnk:
		return graph.AccessLnk
	case autodep.AccessReg:
		return graph.AccessReg
	default:
		return graph.AccessUnknown
	}
}
