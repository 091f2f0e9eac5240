package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartWaitExit(t *testing.T) {
	s := New()
	h, err := s.Start(context.Background(), "sh", []string{"-c", "exit 3"}, ".", nil)
	require.NoError(t, err)

	code, err := s.Wait(h, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, code)

	status, gotCode := h.Status()
	require.Equal(t, StatusExited, status)
	require.Equal(t, 3, gotCode)
}

func TestWaitTimeout(t *testing.T) {
	s := New()
	h, err := s.Start(context.Background(), "sleep", []string{"5"}, ".", nil)
	require.NoError(t, err)
	defer s.Stop(h, time.Second)

	_, err = s.Wait(h, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrWaitTimeout)
}

func TestStopKillsProcessGroup(t *testing.T) {
	s := New()
	h, err := s.Start(context.Background(), "sh", []string{"-c", "sleep 30"}, ".", nil)
	require.NoError(t, err)

	err = s.Stop(h, 200*time.Millisecond)
	require.NoError(t, err)

	status, _ := h.Status()
	require.Equal(t, StatusKilled, status)
	require.False(t, processAlive(h.cmd.Process.Pid))
}

func TestStopIdempotentAfterExit(t *testing.T) {
	s := New()
	h, err := s.Start(context.Background(), "sh", []string{"-c", "exit 0"}, ".", nil)
	require.NoError(t, err)
	_, err = s.Wait(h, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Stop(h, time.Second))
}

func TestRunFixedDurationStopsChild(t *testing.T) {
	s := New()
	result, err := s.Run(context.Background(), RunConfig{
		Mode:         ModeFixedDuration,
		Command:      "sh",
		Args:         []string{"-c", "sleep 30"},
		WorkingDir:   ".",
		TestDuration: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	status, _ := result.Handle.Status()
	require.Equal(t, StatusKilled, status)
}

func TestRunDetachReturnsStopCommand(t *testing.T) {
	s := New()
	result, err := s.Run(context.Background(), RunConfig{
		Mode:           ModeDetach,
		Command:        "sh",
		Args:           []string{"-c", "sleep 30"},
		WorkingDir:     ".",
		SuccessTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, result.Detached)
	require.NotEmpty(t, result.StopCmd)

	require.NoError(t, s.Stop(result.Handle, time.Second))
}

func TestRunDetachFailsIfProcessExitsEarly(t *testing.T) {
	s := New()
	_, err := s.Run(context.Background(), RunConfig{
		Mode:           ModeDetach,
		Command:        "sh",
		Args:           []string{"-c", "exit 1"},
		WorkingDir:     ".",
		SuccessTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
}
