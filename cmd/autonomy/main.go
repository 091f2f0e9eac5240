// Package main implements the autonomy CLI: the single entry point that
// wires the Persistent State Store, Message Bus, Tool Registry, Model
// Client, Conversation Manager, Phase Kernel, Orchestrator, and Child
// Process Supervisor together and runs the pipeline to completion.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"autonomy/internal/logging"
)

var (
	// Global flags.
	verbose           bool
	masterPlan        string
	debugQA           bool
	childCommand      string
	testDurationSec   int
	successTimeoutSec int
	detach            bool
	followPath        string
	enableMetaPhases  bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "autonomy [project-directory]",
	Short: "autonomy - autonomous software-development orchestration pipeline",
	Long: `autonomy drives an unattended coding pipeline over a target project:
planning, coding, QA, debugging, refactoring, documentation, and the
meta-phases that design the pipeline's own tools and prompts.

The target project directory is given as a positional argument (default:
current directory). A master plan or objective reference seeds the first
planning pass.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := resolveWorkspace(args)
		logging.SetBaseDir(filepath.Join(ws, ".autonomy", "logs"))
		logging.SetVerbose(verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
	RunE: runAutonomy,
}

func resolveWorkspace(args []string) string {
	if len(args) == 0 || args[0] == "" {
		ws, _ := os.Getwd()
		return ws
	}
	if abs, err := filepath.Abs(args[0]); err == nil {
		return abs
	}
	return args[0]
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&masterPlan, "master-plan", "", "Path to a master plan / objective document seeding the first planning pass")
	rootCmd.Flags().BoolVar(&debugQA, "debug-qa", false, "Enable QA-focused debug mode")
	rootCmd.Flags().StringVar(&childCommand, "command", "", "Command used to launch the program under test")
	rootCmd.Flags().IntVar(&testDurationSec, "test-duration", 30, "Seconds to monitor the program under test before deciding success")
	rootCmd.Flags().IntVar(&successTimeoutSec, "success-timeout", 60, "Extended monitoring window after a clean run")
	rootCmd.Flags().BoolVar(&detach, "detach", false, "Exit after confirming the program under test started successfully")
	rootCmd.Flags().StringVar(&followPath, "follow", "", "Tail a log file while the pipeline runs")
	rootCmd.Flags().BoolVar(&enableMetaPhases, "enable-meta-phases", false, "Enable the tool/prompt/role design meta-phases")

	rootCmd.AddCommand(stopCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
