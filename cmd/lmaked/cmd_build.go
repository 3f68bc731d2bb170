package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lmake/internal/audit"
	"lmake/internal/backend"
	"lmake/internal/config"
	"lmake/internal/engine"
	"lmake/internal/orchestrate"
	"lmake/internal/query"
	"lmake/internal/req"
	"lmake/internal/store"
)

var buildCmd = &cobra.Command{
	Use:   "build [targets...]",
	Short: "Build one or more targets",
	Long: `Loads the repo config and rule set, classifies every requested
target against the compiled rules, and runs whatever jobs are needed
to bring it up to date.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

// loadRepo resolves the repo root, config, and compiled rule set shared by
// every subcommand that needs a live Engine.
func loadRepo() (*config.Config, string, error) {
	root := workspace
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, "", err
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}

	cfgFile := configPath
	if !filepath.IsAbs(cfgFile) {
		cfgFile = filepath.Join(abs, cfgFile)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Repo.Root == "" || cfg.Repo.Root == "." {
		cfg.Repo.Root = abs
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config: %w", err)
	}
	return cfg, abs, nil
}

// buildEngine compiles cfg.Rules and registers them on a fresh Engine.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	rules, err := config.CompileAll(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	eng := engine.New(verbose)
	for _, r := range rules {
		eng.RegisterRule(r)
	}
	return eng, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, repoRoot, err := loadRepo()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	qs, err := query.NewStore()
	if err != nil {
		return fmt.Errorf("new query store: %w", err)
	}

	be := backend.NewLocal(cfg.Backend.Capacity, cfg.Backend.MaxRetriesOnLost)
	sockDir := cfg.Autodep.SockDir
	if !filepath.IsAbs(sockDir) {
		sockDir = filepath.Join(repoRoot, sockDir)
	}
	b := orchestrate.NewBuilder(eng, be, qs, repoRoot).WithAutodep(cfg.Autodep.Options(), sockDir)

	logRoot := filepath.Join(repoRoot, cfg.Repo.StoreDir)
	if err := os.MkdirAll(logRoot, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	pr, pw := io.Pipe()
	go printAuditFrames(pr)
	defer pw.Close()

	r, err := req.New(store.None, pw, logRoot, req.Options{Targets: args})
	if err != nil {
		return fmt.Errorf("new req: %w", err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	summary, err := b.Build(ctx, r, args)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Println("build summary:")
	for status, n := range summary.Ended {
		fmt.Printf("  %s: %d (%s)\n", execStatusName(status), n, summary.JobsTime[status])
	}
	return nil
}

// printAuditFrames decodes framed audit.Message values off r and prints
// them as plain lines, standing in for the interactive client a real
// lmake CLI process would be on the other end of this pipe (spec §4.8).
func printAuditFrames(r io.Reader) {
	for {
		msg, err := audit.ReadFramed(r)
		if err != nil {
			return
		}
		switch msg.Kind {
		case audit.KindStdout:
			fmt.Println(msg.Line)
		case audit.KindStderr:
			fmt.Fprintln(os.Stderr, msg.Line)
		case audit.KindFile:
			fmt.Printf("  wrote %s\n", msg.Line)
		case audit.KindStatus:
			if !msg.Ok {
				fmt.Fprintf(os.Stderr, "error: %s\n", msg.Line)
			}
		}
	}
}
