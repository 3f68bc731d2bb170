package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lmake/internal/engine"
	"lmake/internal/graph"
	"lmake/internal/query"
	"lmake/internal/rule"
	"lmake/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query <target>",
	Short: "Show what a target transitively depends on",
	Long: `Reports every node target transitively depends on, according to
the query fact store. The store is held in memory and created fresh by
this command, so it only holds facts recorded in the same process; facts
from an earlier lmaked build run are not seen.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var whyCmd = &cobra.Command{
	Use:   "why <target>",
	Short: "Explain why a target is (or isn't) buildable",
	Long: `Renders the producer chain the engine would walk to decide
whether target is buildable, the same walk a dependency cycle report
uses but stopped at the first node lacking a producer (spec §4.3 "why
is this buildable reporting").`,
	Args: cobra.ExactArgs(1),
	RunE: runWhy,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the compiled rule set",
	RunE:  runStatus,
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRepo()
	if err != nil {
		return err
	}
	if _, err := buildEngine(cfg); err != nil {
		return err
	}
	qs, err := query.NewStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	deps, err := qs.DependsOn(ctx, args[0])
	if err != nil {
		return err
	}
	if len(deps) == 0 {
		fmt.Printf("%s has no recorded dependencies (build it first)\n", args[0])
		return nil
	}
	fmt.Printf("%s depends on:\n", args[0])
	for _, d := range deps {
		fmt.Printf("  %s\n", d)
	}
	return nil
}

func runWhy(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRepo()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	startIdx := eng.NodeIdx(args[0])
	if _, err := eng.Classify(startIdx); err != nil {
		return err
	}

	label := func(idx store.Idx) string { return eng.Nodes.Get(idx).Path }
	trace := query.WhyBuildable(startIdx, jobDeps(eng), eng.ConformJob, label)
	fmt.Print(trace.RenderASCII())
	return nil
}

// jobDeps returns a depsOf closure reading every Dep recorded on a Job,
// resolving store indices through eng.
func jobDeps(eng *engine.Engine) func(store.Idx) []store.Idx {
	return func(jobIdx store.Idx) []store.Idx {
		job := eng.Jobs.Get(jobIdx)
		var out []store.Idx
		job.Deps.Each(func(d graph.Dep, access graph.Access, flags rule.Dflags) {
			out = append(out, d.Node)
		})
		return out
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, repoRoot, err := loadRepo()
	if err != nil {
		return err
	}
	fmt.Printf("repo root:  %s\n", repoRoot)
	fmt.Printf("store dir:  %s\n", cfg.Repo.StoreDir)
	fmt.Printf("backend:    capacity=%d max_retries=%d\n", cfg.Backend.Capacity, cfg.Backend.MaxRetriesOnLost)
	fmt.Printf("rules:      %d\n", len(cfg.Rules))
	for _, rc := range cfg.Rules {
		fmt.Printf("  - %s\n", rc.Name)
	}
	return nil
}

func execStatusName(s graph.ExecStatus) string {
	switch s {
	case graph.ExecOk:
		return "ok"
	case graph.ExecEarlyErr:
		return "early_err"
	case graph.ExecLateLost:
		return "late_lost"
	case graph.ExecRunErr:
		return "run_err"
	case graph.ExecUpToDate:
		return "up_to_date"
	default:
		return "none(" + strconv.Itoa(int(s)) + ")"
	}
}
