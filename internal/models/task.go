package models

import "time"

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task represents a unit of work with a deadline and an hour estimate.
// EstimatedHours is the remaining work and shrinks as sessions complete.
type Task struct {
	ID             string
	Title          string
	Description    string
	Deadline       string // calendar date, "2006-01-02"
	Importance     bool
	EstimatedHours float64
	Status         TaskStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Pending reports whether the task still needs scheduling.
func (t *Task) Pending() bool {
	return t.Status == TaskStatusPending && t.EstimatedHours > 0
}
