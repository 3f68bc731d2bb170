package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"lmake/internal/audit"
	"lmake/internal/autodep"
	"lmake/internal/backend"
	"lmake/internal/crc"
	"lmake/internal/engine"
	"lmake/internal/graph"
	"lmake/internal/jobenv"
	"lmake/internal/logging"
	"lmake/internal/query"
	"lmake/internal/req"
	"lmake/internal/rule"
	"lmake/internal/store"
)

// Builder drives one synchronous make() pass over a target set: classify,
// recurse into static deps, detect cycles, render a matched rule's
// attributes, and run the resulting job (spec §4.3's make loop, collapsed
// to single-threaded depth-first execution — see DESIGN.md).
type Builder struct {
	Engine  *engine.Engine
	Backend *backend.Local
	Store   *query.Store // optional; nil disables fact recording
	RepoRoot string
	Dyn     *rule.DynEvaluator

	// AutodepOptions carries the repo-wide tracer settings (spec §4.5/§6);
	// zero value means deps_in_system/readdir_ok/ignore_stat all default
	// off. SockDir overrides where the mngt socket is created, defaulting
	// to RepoRoot/.lmake/sock.
	AutodepOptions autodep.Options
	SockDir        string

	log *logging.Logger

	builtNodes map[store.Idx]graph.ExecStatus
	builtJobs  map[store.Idx]bool
	visiting   map[store.Idx]bool
	path       []store.Idx

	autodepOnce sync.Once
	autodepErr  error
	autodepSrv  *autodep.Server
	autodepSock string
	collector   *depCollector
}

// WithAutodep configures the execution tracer a job is routed through when
// its rule's link_support calls for it (spec §4.5), for callers that load
// AutodepConfig from the repo's config file.
func (b *Builder) WithAutodep(opts autodep.Options, sockDir string) *Builder {
	b.AutodepOptions = opts
	b.SockDir = sockDir
	return b
}

// NewBuilder returns a Builder ready to run Build against eng/be.
func NewBuilder(eng *engine.Engine, be *backend.Local, qs *query.Store, repoRoot string) *Builder {
	return &Builder{
		Engine:   eng,
		Backend:  be,
		Store:    qs,
		RepoRoot: repoRoot,
		Dyn:      rule.NewDynEvaluator(),
		log:      logging.Get(logging.CategoryDaemon),

		builtNodes: make(map[store.Idx]graph.ExecStatus),
		builtJobs:  make(map[store.Idx]bool),
		visiting:   make(map[store.Idx]bool),
	}
}

// Build drives every target to completion against r, returning the
// req.Summary chk_end would report once n_running reaches zero (spec §4.7
// "chk_end()"); this driver runs synchronously so the summary is always
// final by the time Build returns.
func (b *Builder) Build(ctx context.Context, r *req.Req, targets []string) (req.Summary, error) {
	b.builtNodes = make(map[store.Idx]graph.ExecStatus)
	b.builtJobs = make(map[store.Idx]bool)
	b.visiting = make(map[store.Idx]bool)
	b.path = nil

	for _, t := range targets {
		nodeIdx := b.Engine.NodeIdx(filepath.ToSlash(t))
		if _, err := b.buildNode(ctx, r, nodeIdx); err != nil {
			return req.Summary{}, err
		}
	}
	_, summary := r.ChkEnd()
	return summary, nil
}

func (b *Builder) buildNode(ctx context.Context, r *req.Req, nodeIdx store.Idx) (graph.ExecStatus, error) {
	if status, ok := b.builtNodes[nodeIdx]; ok {
		return status, nil
	}
	if b.visiting[nodeIdx] {
		cyclePath := append(append([]store.Idx{}, b.path...), nodeIdx)
		return 0, &graph.CycleError{Path: cyclePath}
	}
	b.visiting[nodeIdx] = true
	b.path = append(b.path, nodeIdx)
	defer func() {
		delete(b.visiting, nodeIdx)
		b.path = b.path[:len(b.path)-1]
	}()

	ni := r.Data.NodeInfo(nodeIdx)
	ni.State = int8(engine.NodeDep)

	node := b.Engine.Nodes.Get(nodeIdx)
	buildable, err := b.Engine.Classify(nodeIdx)
	if err != nil {
		return 0, err
	}

	if buildable.DefinitelyNotBuildable() {
		status := b.resolveSource(nodeIdx, node)
		ni.State = int8(engine.NodeDone)
		b.builtNodes[nodeIdx] = status
		return status, nil
	}
	if buildable.NeedsWork() {
		return 0, &graph.MissingStaticError{Target: node.Path}
	}

	jobIdx, ok := b.Engine.ConformJob(nodeIdx)
	if !ok {
		return 0, &graph.MissingStaticError{Target: node.Path}
	}

	status, err := b.buildJob(ctx, r, jobIdx)
	if err != nil {
		return 0, err
	}
	ni.State = int8(engine.NodeDone)
	b.builtNodes[nodeIdx] = status
	return status, nil
}

// resolveSource handles a node the matcher found no rule for: a plain
// stat/read off disk stands in for the source-Node path of Classify, which
// (spec §4.3) this engine does not special-case (see DESIGN.md).
func (b *Builder) resolveSource(nodeIdx store.Idx, node graph.Node) graph.ExecStatus {
	full := filepath.Join(b.RepoRoot, node.Path)
	data, err := os.ReadFile(full)
	if err != nil {
		return graph.ExecEarlyErr
	}
	node.Crc = crc.Of(data)
	node.SetStatus(graph.StatusSrc)
	b.Engine.Nodes.Assign(nodeIdx, node)
	return graph.ExecOk
}

func (b *Builder) buildJob(ctx context.Context, r *req.Req, jobIdx store.Idx) (graph.ExecStatus, error) {
	if b.builtJobs[jobIdx] {
		job := b.Engine.Jobs.Get(jobIdx)
		return job.ExecStatus, nil
	}
	b.builtJobs[jobIdx] = true

	job := b.Engine.Jobs.Get(jobIdx)
	rl, ok := b.Engine.Rules[job.RuleCrc]
	if !ok {
		return 0, fmt.Errorf("orchestrate: job references unknown rule %v", job.RuleCrc)
	}

	matchVals := renderMatches(rl, job.Stems)
	depPaths := renderDeps(rl, job.Stems, matchVals)

	ji := r.Data.JobInfo(jobIdx)
	ji.State = int8(engine.JobDep)

	targetPaths := jobTargetPaths(rl, matchVals)

	depNodes := make([]store.Idx, 0, len(depPaths))
	for _, depPath := range depPaths {
		depNodeIdx := b.Engine.NodeIdx(depPath)
		depNodes = append(depNodes, depNodeIdx)
		if _, err := b.buildNode(ctx, r, depNodeIdx); err != nil {
			job.RunStatus = graph.RunDepErr
			b.Engine.Jobs.Assign(jobIdx, job)
			return 0, &graph.DepError{Node: depNodeIdx, Path: depPath}
		}
		if b.Store != nil {
			for _, tgtPath := range targetPaths {
				_ = b.Store.RecordDep(tgtPath, depPath)
			}
		}
	}

	var dv graph.DepVector
	for i, depNodeIdx := range depNodes {
		flags := rl.StaticDeps[i].Flags
		dv.Append(graph.Dep{Node: depNodeIdx, Access: graph.AccessReg, Flags: flags, Crc: b.Engine.Nodes.Get(depNodeIdx).Crc})
	}

	// A job that has run before is skipped outright once every dep it
	// recorded last time — static and any dynamically discovered via
	// autodep — still matches current Node state (spec §4.4/§8 property 1:
	// trivial rebuilds execute zero jobs). Dynamically discovered deps
	// never went through buildNode above (they aren't in the rule's static
	// DepTemplate), so their Node state is only ever as fresh as the last
	// time a job ran; recurse into them here too so a plain source edit is
	// actually observed before the comparison below.
	if job.NRuns > 0 {
		job.Deps.Each(func(d graph.Dep, _ graph.Access, _ rule.Dflags) {
			_, _ = b.buildNode(ctx, r, d.Node)
		})
		if ok, _ := job.Deps.UpToDate(engineNodeCrc{eng: b.Engine}); ok {
			job.ExecStatus = graph.ExecUpToDate
			b.Engine.Jobs.Assign(jobIdx, job)
			r.Data.Stats.RecordEnd(graph.ExecUpToDate, 0)
			ji.State = int8(engine.JobDone)
			return graph.ExecUpToDate, nil
		}
	}
	job.Deps = dv

	ji.State = int8(engine.JobQueued)
	r.JobStarted()
	ji.State = int8(engine.JobExec)
	start := time.Now()

	targetNodes := make([]store.Idx, 0, len(targetPaths))
	for _, p := range targetPaths {
		targetNodes = append(targetNodes, b.Engine.NodeIdx(p))
	}
	b.Engine.SetJobTargets(jobIdx, targetNodes)

	jobName := renderValues(rl.JobName, rl, job.Stems, matchVals, nil)
	if jobName == "" {
		jobName = rl.Name
	}

	b.log.Infof("running job %s (rule %s)", jobName, rl.Name)
	status, execErr := b.runCmd(ctx, r, jobIdx, jobName, rl, job, matchVals, depPaths, targetPaths)

	dur := time.Since(start)
	job.ExecStatus = status
	job.ExecTime = dur
	job.NRuns++
	if ee, ok := execErr.(*graph.EarlyError); ok {
		job.StartupErr = ee.StartupError
	}
	if le, ok := execErr.(*graph.LostError); ok {
		job.StderrTail = []string{le.Reason}
	}
	if rfe, ok := execErr.(*graph.RunFailedError); ok {
		job.StderrTail = rfe.StderrTail
	}
	if rl.LinkSupport != rule.LinkNone && b.collector != nil {
		b.mergeTracedDeps(&job, jobIdx)
	}
	b.Engine.Jobs.Assign(jobIdx, job)

	r.JobEnded(status, dur)
	ji.State = int8(engine.JobDone)

	if b.Store != nil {
		for _, p := range targetPaths {
			_ = b.Store.RecordTarget(jobName, p)
			_ = b.Store.RecordMatch(rl.Name, p)
		}
	}

	return status, execErr
}

// mergeTracedDeps folds whatever b.collector accumulated for jobIdx while
// the job's process was running into job.Deps (spec §1/§4.5: dependencies
// discovered by tracing actual filesystem accesses, not just the rule's
// static DepTemplate). Each discovered dep's current content is read off
// disk once, since the tracer only reports that an access happened, not
// what it observed.
func (b *Builder) mergeTracedDeps(job *graph.Job, jobIdx store.Idx) {
	for _, dr := range b.collector.take(uint64(jobIdx)) {
		depPath := filepath.ToSlash(dr.File)
		depNodeIdx := b.Engine.NodeIdx(depPath)
		n := b.Engine.Nodes.Get(depNodeIdx)

		full := filepath.Join(b.RepoRoot, depPath)
		if data, err := os.ReadFile(full); err == nil {
			n.Crc = crc.Of(data)
		} else {
			n.Crc = crc.None
		}
		b.Engine.Nodes.Assign(depNodeIdx, n)

		job.Deps.Append(graph.Dep{
			Node:     depNodeIdx,
			Access:   convertAccess(dr.Access),
			Parallel: dr.Parallel,
			Crc:      n.Crc,
		})
	}
}

func jobTargetPaths(rl *rule.Rule, matchVals []string) []string {
	out := make([]string, 0, rl.NStaticTargets)
	for i := 0; i < rl.NStaticTargets; i++ {
		out = append(out, matchVals[i])
	}
	return out
}

// runCmd renders and executes a job's command attribute, reporting
// stdout/stderr lines through the Req's audit channel (spec §4.8) and
// verifying every static target was actually produced (spec §7
// "MissingStatic").
func (b *Builder) runCmd(ctx context.Context, r *req.Req, jobIdx store.Idx, jobName string, rl *rule.Rule, job graph.Job, matchVals []string, depPaths, targetPaths []string) (graph.ExecStatus, error) {
	cmdLine, err := evalAttr(rl.Cmd, rl, job.Stems, matchVals, depPaths, b.Dyn)
	if err != nil {
		job.StartupErr = &graph.StartupError{Msg: err.Error()}
		return graph.ExecEarlyErr, &graph.EarlyError{StartupError: job.StartupErr}
	}

	rsrcsStr, _ := evalAttr(rl.Resources, rl, job.Stems, matchVals, depPaths, b.Dyn)
	rsrcs := parseResources(rsrcsStr, backend.DefaultResources)

	attrs := backend.SubmitAttrs{Resources: rsrcs}
	if err := b.Backend.Submit(ctx, jobIdx, 0, attrs); err != nil {
		return graph.ExecLateLost, err
	}
	defer b.Backend.Release(jobIdx)
	b.Backend.MarkSeen(jobIdx)

	cmd := b.buildExecCmd(ctx, jobIdx, rl, cmdLine)
	cmd.Dir = b.RepoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	stdoutLines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	stderrLines := strings.Split(strings.TrimRight(stderr.String(), "\n"), "\n")

	remarkable := runErr != nil || stderr.Len() > 0
	if remarkable {
		for _, line := range stdoutLines {
			if line != "" {
				r.Audit.Report(jobName, audit.Message{Kind: audit.KindStdout, Line: line})
			}
		}
		for _, line := range stderrLines {
			if line != "" {
				r.Audit.Report(jobName, audit.Message{Kind: audit.KindStderr, Line: line})
			}
		}
	} else {
		r.Audit.Unremarkable(jobName)
	}

	if runErr != nil {
		job.StderrTail = stderrLines
		r.Audit.Report(jobName, audit.Message{Kind: audit.KindStatus, Line: runErr.Error(), Ok: false})
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return graph.ExecRunErr, &graph.RunFailedError{JobName: jobName, ExitCode: exitCode, StderrTail: stderrLines}
	}

	for _, p := range targetPaths {
		full := filepath.Join(b.RepoRoot, p)
		data, readErr := os.ReadFile(full)
		if readErr != nil {
			return graph.ExecEarlyErr, &graph.MissingStaticError{Target: p}
		}
		nodeIdx := b.Engine.NodeIdx(p)
		n := b.Engine.Nodes.Get(nodeIdx)
		n.Crc = crc.Of(data)
		n.Producing = jobIdx
		b.Engine.Nodes.Assign(nodeIdx, n)
		r.Audit.Report(jobName, audit.Message{Kind: audit.KindFile, Line: p})
	}

	r.Audit.Report(jobName, audit.Message{Kind: audit.KindStatus, Line: "ok", Ok: true})
	return graph.ExecOk, nil
}

// buildExecCmd prepares the *exec.Cmd that actually runs cmdLine. Rules
// whose link_support calls for tracing (spec §4.5) are launched under
// cmd/lmake-autodep instead of directly, with LMAKE_AUTODEP_ENV pointing it
// back at this Builder's mngt socket; a rule with link_support=none, or any
// problem standing up the tracer, falls back to a bare /bin/sh -c exec
// (the same bare exec lmake-autodep's execPassthrough does when the 'd'
// option disables tracing).
func (b *Builder) buildExecCmd(ctx context.Context, jobIdx store.Idx, rl *rule.Rule, cmdLine string) *exec.Cmd {
	if rl.LinkSupport == rule.LinkNone {
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
	}

	sockPath, err := b.ensureAutodepServer()
	if err != nil {
		b.log.Infof("autodep unavailable (%v), running job untraced", err)
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
	}
	bin, err := resolveAutodepBin()
	if err != nil {
		b.log.Infof("%v, running job untraced", err)
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
	}

	env := jobenv.AutodepEnv{
		Service:   sockPath,
		RepoRootS: b.RepoRoot,
		Options: jobenv.Options{
			Link:         rl.LinkSupport,
			DepsInSystem: b.AutodepOptions.DepsInSystem,
			ReaddirOK:    b.AutodepOptions.ReaddirOK,
			IgnoreStat:   b.AutodepOptions.IgnoreStat,
		},
	}
	extra := map[string]string{"LMAKE_JOB_ID": strconv.FormatUint(uint64(jobIdx), 10)}

	cmd := exec.CommandContext(ctx, bin, "/bin/sh", "-c", cmdLine)
	cmd.Env = jobenv.BuildEnv(env, hostEnvKeys(), extra)
	return cmd
}

// hostEnvKeys lists every variable name currently set in this process's
// environment, so BuildEnv can pass the traced job the same environment a
// bare exec would have inherited, plus LMAKE_AUTODEP_ENV.
func hostEnvKeys() []string {
	envs := os.Environ()
	keys := make([]string, 0, len(envs))
	for _, e := range envs {
		if i := strings.IndexByte(e, '='); i >= 0 {
			keys = append(keys, e[:i])
		}
	}
	return keys
}
