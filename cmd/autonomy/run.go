package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autonomy/internal/bus"
	"autonomy/internal/config"
	"autonomy/internal/conversation"
	"autonomy/internal/logging"
	"autonomy/internal/modelclient"
	"autonomy/internal/orchestrator"
	"autonomy/internal/patchfs"
	"autonomy/internal/phase"
	"autonomy/internal/statestore"
	"autonomy/internal/supervisor"
	"autonomy/internal/toolkit"
	"autonomy/internal/toolkit/core"
)

// configError marks a failure that must exit 2 rather than the generic 1.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// exitCodeFor maps a run error to the exit code contract: 0 success,
// 1 generic failure, 2 configuration error, 3 user-abort, 4 unrecoverable
// loop.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *configError
	switch {
	case errors.As(err, &cfgErr):
		return 2
	case errors.Is(err, orchestrator.ErrUserAbort):
		return 3
	case errors.Is(err, orchestrator.ErrUserInputRequired):
		return 4
	default:
		return 1
	}
}

func runAutonomy(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace(args)
	autonomyDir := filepath.Join(ws, ".autonomy")

	cfg, err := config.Load(filepath.Join(autonomyDir, "config.json"))
	if err != nil {
		return &configError{err}
	}
	applyFlagOverrides(cmd, cfg)

	store, err := statestore.Open(autonomyDir)
	if err != nil {
		return &configError{fmt.Errorf("open state store: %w", err)}
	}

	msgBus := bus.New(1000)
	messagesDir := filepath.Join(autonomyDir, "messages")
	if archive, err := bus.OpenHistoryArchive(messagesDir); err != nil {
		logging.Bus("history archive unavailable, continuing without overflow: %v", err)
	} else {
		msgBus.AttachArchive(archive)
		defer archive.Close()
	}
	defer func() {
		if err := msgBus.DumpHistory(filepath.Join(messagesDir, "history.json")); err != nil {
			logging.Bus("dump history: %v", err)
		}
	}()

	reg := toolkit.NewRegistry()
	layer, err := patchfs.NewLayer(ws)
	if err != nil {
		return &configError{fmt.Errorf("open patch/fs layer: %w", err)}
	}
	core.Register(reg, layer)
	core.RegisterTaskOps(reg)
	core.RegisterValidation(reg)
	core.RegisterAnalysis(reg)
	core.RegisterReporting(reg, filepath.Join(autonomyDir, "reports"))
	if cfg.EnableMetaPhases {
		core.RegisterMeta(reg)
	}

	mc := modelclient.New(cfg.ModelClientConfig(), modelclient.NewHTTPTransport())
	convMgr := conversation.New(conversation.DefaultConfig(), &modelSummarizer{client: mc})
	kernel := phase.NewKernel(msgBus, reg, mc, convMgr)
	kernel.IPCRoot = autonomyDir

	if watcher, err := phase.NewWatcher(autonomyDir); err != nil {
		logging.Phase("ipc watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
		go func() {
			for ev := range watcher.Events() {
				logging.PhaseDebug("ipc document changed: %s (%s)", ev.Name, ev.Op)
			}
		}()
	}

	orchCfg := orchestrator.DefaultConfig(ws)
	orchCfg.MasterPlanPath = masterPlan
	orchCfg.ReportsDir = filepath.Join(autonomyDir, "reports")
	orchCfg.EnableMetaPhases = cfg.EnableMetaPhases
	orchCfg.DebugQA = cfg.DebugQA
	if cfg.LoopThreshold > 0 {
		orchCfg.LoopThreshold = cfg.LoopThreshold
	}
	if cfg.LoopHistoryWindow > 0 {
		orchCfg.LoopHistoryWindow = cfg.LoopHistoryWindow
	}
	if cfg.ResolverCooldown > 0 {
		orchCfg.ResolverCooldown = cfg.ResolverCooldown
	}
	orch := orchestrator.New(orchCfg, store, msgBus, kernel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if followPath != "" {
		stopFollow := followFile(ctx, followPath)
		defer stopFollow()
	}

	if cfg.Command == "" {
		return runPipeline(ctx, orch, store)
	}
	return runPipelineWithSupervisor(ctx, orch, store, cfg, ws)
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("debug-qa") {
		cfg.DebugQA = debugQA
	}
	if cmd.Flags().Changed("command") {
		cfg.Command = childCommand
	}
	if cmd.Flags().Changed("test-duration") {
		cfg.TestDurationSec = testDurationSec
	}
	if cmd.Flags().Changed("success-timeout") {
		cfg.SuccessTimeoutSec = successTimeoutSec
	}
	if cmd.Flags().Changed("detach") {
		cfg.Detach = detach
	}
	if cmd.Flags().Changed("follow") {
		cfg.FollowPath = followPath
	}
	if cmd.Flags().Changed("enable-meta-phases") {
		cfg.EnableMetaPhases = enableMetaPhases
	}
	cfg.Verbose = verbose
}

// runPipeline drives the Orchestrator alone, used when no program under
// test is configured.
func runPipeline(ctx context.Context, orch *orchestrator.Orchestrator, store *statestore.Store) error {
	err := orch.Run(ctx)
	if err != nil && errors.Is(err, orchestrator.ErrUserInputRequired) {
		printRecentPhaseHistory(store)
	}
	return err
}

// splitCommand breaks a --command string into binary + arguments.
func splitCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// runPipelineWithSupervisor runs the Orchestrator and the Child Process
// Supervisor concurrently. --detach short-circuits: once the supervisor
// confirms the child started healthy, the stop command is printed and
// the process exits without waiting for the Orchestrator.
func runPipelineWithSupervisor(ctx context.Context, orch *orchestrator.Orchestrator, store *statestore.Store, cfg *config.Config, ws string) error {
	bin, binArgs := splitCommand(cfg.Command)
	if bin == "" {
		return &configError{fmt.Errorf("empty --command")}
	}

	sup := supervisor.New()
	runCfg := supervisor.RunConfig{
		Command:        bin,
		Args:           binArgs,
		WorkingDir:     ws,
		TestDuration:   time.Duration(cfg.TestDurationSec) * time.Second,
		SuccessTimeout: time.Duration(cfg.SuccessTimeoutSec) * time.Second,
	}

	if cfg.Detach {
		runCfg.Mode = supervisor.ModeDetach
		result, err := sup.Run(ctx, runCfg)
		if err != nil {
			return fmt.Errorf("supervisor: %w", err)
		}
		fmt.Println(result.StopCmd)
		return nil
	}

	runCfg.Mode = supervisor.ModeSuccessTimeout

	type supOutcome struct {
		result *supervisor.RunResult
		err    error
	}
	supDone := make(chan supOutcome, 1)
	go func() {
		result, err := sup.Run(ctx, runCfg)
		supDone <- supOutcome{result, err}
	}()

	orchErr := orch.Run(ctx)

	select {
	case outcome := <-supDone:
		if outcome.err != nil {
			logging.Tactile("supervised run ended with error: %v", outcome.err)
		} else if outcome.result != nil {
			logging.Tactile("supervised run finished: exit=%d detached=%v", outcome.result.ExitCode, outcome.result.Detached)
		}
	case <-time.After(time.Second):
		logging.Tactile("supervisor still running after pipeline completion")
	}

	if orchErr != nil && errors.Is(orchErr, orchestrator.ErrUserInputRequired) {
		printRecentPhaseHistory(store)
	}
	return orchErr
}

func printRecentPhaseHistory(store *statestore.Store) {
	const lastN = 10
	state := store.State()
	history := state.PhaseHistory
	if len(history) > lastN {
		history = history[len(history)-lastN:]
	}
	fmt.Fprintln(os.Stderr, "last phase_history entries:")
	for _, p := range history {
		fmt.Fprintln(os.Stderr, " ", p)
	}
}
