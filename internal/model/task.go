// Package model defines the data entities shared across the orchestration
// engine: Task, Objective, PhaseState, PipelineState, Message, ToolCall,
// and ConversationThread.
package model

import "time"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskNew        TaskStatus = "NEW"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskQAPending  TaskStatus = "QA_PENDING"
	TaskNeedsFixes TaskStatus = "NEEDS_FIXES"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskBlocked    TaskStatus = "BLOCKED"
)

// TaskPriority orders tasks for the tactical decision tree.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "CRITICAL"
	PriorityHigh     TaskPriority = "HIGH"
	PriorityMedium   TaskPriority = "MEDIUM"
	PriorityLow      TaskPriority = "LOW"
	PriorityNewTask  TaskPriority = "NEW_TASK"
)

// priorityRank gives a total order for sorting; lower sorts first.
var priorityRank = map[TaskPriority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
	PriorityNewTask:  4,
}

// Rank returns the sort rank of a priority; unknown priorities sort last.
func (p TaskPriority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Attempt records one execution attempt of a Task.
type Attempt struct {
	Number    int       `json:"number"`
	Outcome   string    `json:"outcome"` // "success" | "failure"
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Task is a single unit of work. Its id is a deterministic fingerprint of
// (Description, TargetFile, ObjectiveID) so replanning never manufactures
// duplicates.
type Task struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	TargetFile  string       `json:"target_file"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	Attempts    []Attempt    `json:"attempts,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
	DependsOn   []string     `json:"depends_on,omitempty"`
	ObjectiveID string       `json:"objective_id"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
	NextRetryAt time.Time    `json:"next_retry_at,omitzero"`
}

// IsTerminal reports whether the task has reached a lifecycle endpoint.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}
