package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

const (
	// maxTaskAttempts bounds retries before a task is marked blocked
	// pending human review.
	maxTaskAttempts = 3

	retryBackoffBase = 5 * time.Second
	retryBackoffMax  = 5 * time.Minute
)

// complexityHints are keyword signals in model output that a task is too
// hard for the pipeline and should be escalated rather than retried.
var complexityHints = []string{
	"too complex",
	"cannot be automated",
	"requires human",
	"beyond my capabilities",
}

// classifyTaskError uses heuristics to bucket errors into retry taxonomies.
func classifyTaskError(msg string) string {
	if msg == "" {
		return "/logic"
	}
	msg = strings.ToLower(msg)
	transientHints := []string{
		"timeout",
		"context deadline",
		"rate limit",
		"too many requests",
		"temporar",
		"connection",
		"unavailable",
		"network",
		"i/o",
	}
	for _, h := range transientHints {
		if strings.Contains(msg, h) {
			return "/transient"
		}
	}
	return "/logic"
}

// computeRetryBackoff returns exponential backoff based on attempt number.
func computeRetryBackoff(errorType string, attemptNum int) time.Duration {
	shift := attemptNum - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 10 {
		shift = 10
	}
	backoff := retryBackoffBase * time.Duration(1<<shift)

	// Logic errors often benefit from faster replans; cap their backoff lower.
	if errorType == "/logic" && backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	if backoff > retryBackoffMax {
		backoff = retryBackoffMax
	}
	return backoff
}

// tooComplexSignal reports whether model output carries a keyword signal
// that the task should be escalated to a human instead of retried.
func tooComplexSignal(message string) bool {
	lower := strings.ToLower(message)
	for _, h := range complexityHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// handleTaskFailure records a failed attempt against the task, schedules
// a backoff before the next retry, and escalates to BLOCKED with a
// report once retries are exhausted or the output signals the task is
// too complex to automate.
func (o *Orchestrator) handleTaskFailure(state *model.PipelineState, task *model.Task, phaseName model.PhaseName, message string) {
	errorType := classifyTaskError(message)
	attemptNum := len(task.Attempts) + 1

	task.Attempts = append(task.Attempts, model.Attempt{
		Number:    attemptNum,
		Outcome:   "failure",
		Timestamp: time.Now(),
		Error:     message,
	})
	task.LastError = message

	state.FixHistory = append(state.FixHistory, model.FixRecord{
		TaskID:    task.ID,
		File:      task.TargetFile,
		ErrorSig:  message,
		Phase:     phaseName,
		Timestamp: time.Now(),
		Success:   false,
	})

	if attemptNum >= maxTaskAttempts || tooComplexSignal(message) {
		logging.Get(logging.CategoryOrchestrator).Error(
			"task %s blocked after %d attempts: %s", task.ID, attemptNum, message)
		task.Status = model.TaskBlocked
		task.NextRetryAt = time.Time{}
		o.writeBlockedTaskReport(task, attemptNum)

		o.bus.Publish(model.Message{
			Sender:    phaseName,
			Recipient: model.Broadcast,
			Type:      model.MsgIssueReported,
			Priority:  model.PriorityMsgCritical,
			TaskID:    task.ID,
			FilePath:  task.TargetFile,
			Payload:   "task blocked pending developer review: " + message,
		})
		return
	}

	backoff := computeRetryBackoff(errorType, attemptNum)
	task.NextRetryAt = time.Now().Add(backoff)
	logging.OrchestratorDebug("task %s attempt %d failed (%s), retrying after %s",
		task.ID, attemptNum, errorType, backoff)
}

// recordTaskSuccess appends a successful fix record so the pattern
// detector sees resolution, not just failure streaks.
func (o *Orchestrator) recordTaskSuccess(state *model.PipelineState, task *model.Task, phaseName model.PhaseName) {
	if task.LastError == "" {
		return
	}
	state.FixHistory = append(state.FixHistory, model.FixRecord{
		TaskID:    task.ID,
		File:      task.TargetFile,
		ErrorSig:  task.LastError,
		Phase:     phaseName,
		Timestamp: time.Now(),
		Success:   true,
	})
}

// writeBlockedTaskReport emits a human-readable ISSUE report for a task
// that exhausted its retries.
func (o *Orchestrator) writeBlockedTaskReport(task *model.Task, attempts int) {
	dir := o.cfg.ReportsDir
	if dir == "" {
		dir = filepath.Join(o.cfg.Workspace, ".autonomy", "reports")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("reports dir: %v", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("ISSUE_%s.md", task.ID))
	body := fmt.Sprintf("# Blocked task %s\n\nDescription: %s\nTarget file: %s\nAttempts: %d\n\nLast error:\n\n```\n%s\n```\n",
		task.ID, task.Description, task.TargetFile, attempts, task.LastError)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("write issue report: %v", err)
	}
}
