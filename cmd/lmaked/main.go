// Package main implements lmaked, the build daemon's CLI front end.
//
// File index, mirroring the split the teacher's cmd/nerd uses:
//
//   - main.go       - entry point, rootCmd, global flags, init()
//   - cmd_build.go  - buildCmd: load config, compile rules, run a Req
//   - cmd_query.go  - queryCmd/whyCmd/statusCmd: read-only introspection
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lmake/internal/logging"
)

var (
	workspace  string
	configPath string
	verbose    bool
	timeout    time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lmaked",
	Short: "lmaked - content-aware build orchestrator",
	Long: `lmaked drives a content-aware, job-DAG build: it classifies targets
against a compiled rule set, runs only the jobs whose recorded
dependencies have actually changed, and reports progress over the
audit protocol.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Configure(logger)
		logging.ConfigureDebug(verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Repo root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lmake.yaml", "Path to lmake.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Build timeout")

	rootCmd.AddCommand(
		buildCmd,
		queryCmd,
		whyCmd,
		statusCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
