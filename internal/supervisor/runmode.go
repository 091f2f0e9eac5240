package supervisor

import (
	"context"
	"fmt"
	"time"

	"autonomy/internal/logging"
)

// RunConfig configures one supervised run (CLI flags
// --test-duration, --success-timeout, --detach).
type RunConfig struct {
	Mode              RunMode
	Command           string
	Args              []string
	WorkingDir        string
	Env               []string
	TestDuration      time.Duration
	SuccessTimeout    time.Duration
	PoliteStopTimeout time.Duration
}

// RunResult is the outcome of one monitored run.
type RunResult struct {
	Handle   *Handle
	ExitCode int
	Detached bool
	StopCmd  string // printed when --detach succeeds
}

// Run launches the command and monitors it per the configured run mode:
// fixed duration, success-timeout, or detach.
func (s *Supervisor) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if cfg.PoliteStopTimeout <= 0 {
		cfg.PoliteStopTimeout = 5 * time.Second
	}

	h, err := s.Start(ctx, cfg.Command, cfg.Args, cfg.WorkingDir, cfg.Env)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeDetach:
		// Give the process a brief quiet period to confirm it started
		// healthy, then leave it running and hand back the stop command.
		quiet := cfg.SuccessTimeout
		if quiet <= 0 {
			quiet = 2 * time.Second
		}
		select {
		case <-h.done:
			_, code := h.Status()
			return &RunResult{Handle: h, ExitCode: code}, fmt.Errorf("supervisor: process exited during detach quiet period")
		case <-time.After(quiet):
		}
		stopCmd := fmt.Sprintf("kill -TERM -%d", processGroupID(h.cmd))
		logging.Tactile("detached pid=%d, stop with: %s", h.cmd.Process.Pid, stopCmd)
		return &RunResult{Handle: h, Detached: true, StopCmd: stopCmd}, nil

	case ModeSuccessTimeout:
		select {
		case <-h.done:
			_, code := h.Status()
			return &RunResult{Handle: h, ExitCode: code}, nil
		case <-time.After(cfg.TestDuration):
		}
		// Extended quiet monitoring after the initial window: if it's
		// still running and stays up through SuccessTimeout, call it
		// healthy and stop it cleanly.
		select {
		case <-h.done:
			_, code := h.Status()
			return &RunResult{Handle: h, ExitCode: code}, nil
		case <-time.After(cfg.SuccessTimeout):
		}
		if err := s.Stop(h, cfg.PoliteStopTimeout); err != nil {
			return nil, err
		}
		_, code := h.Status()
		return &RunResult{Handle: h, ExitCode: code}, nil

	default: // ModeFixedDuration
		select {
		case <-h.done:
			_, code := h.Status()
			return &RunResult{Handle: h, ExitCode: code}, nil
		case <-time.After(cfg.TestDuration):
		}
		if err := s.Stop(h, cfg.PoliteStopTimeout); err != nil {
			return nil, err
		}
		_, code := h.Status()
		return &RunResult{Handle: h, ExitCode: code}, nil
	}
}
