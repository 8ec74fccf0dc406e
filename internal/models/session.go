package models

import "time"

// SessionStatus represents the state of a study session.
type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "scheduled"
	SessionStatusInProgress  SessionStatus = "in_progress"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusMissed      SessionStatus = "missed"
	SessionStatusOverdue     SessionStatus = "overdue"
	SessionStatusRescheduled SessionStatus = "rescheduled"
	// SessionStatusSkipped sessions are retained but excluded from
	// capacity accounting, combination, and display.
	SessionStatusSkipped SessionStatus = "skipped"
)

// Session is a single contiguous block of allocated study time for one
// task on one date. StartTime/EndTime may be empty when no open slot was
// found; AllocatedHours still counts toward the task's estimate.
type Session struct {
	ID             string
	TaskID         string
	StartTime      string // "HH:MM", empty if unplaced
	EndTime        string // "HH:MM", empty if unplaced
	AllocatedHours float64
	SessionNumber  int
	Status         SessionStatus
	Done           bool
	ActualHours    float64
	CompletedAt    *time.Time

	// Redistribution metadata, present iff the session was moved from its
	// originally generated slot.
	OriginalTime     string
	OriginalDate     string
	RescheduledAt    *time.Time
	IsManualOverride bool
}

// Redistributed reports whether the session carries redistribution
// metadata, i.e. was moved from its original slot.
func (s *Session) Redistributed() bool {
	return s.OriginalTime != "" && s.OriginalDate != ""
}

// Finished reports whether the session no longer needs attention:
// explicitly done, marked completed, or skipped.
func (s *Session) Finished() bool {
	return s.Done || s.Status == SessionStatusCompleted || s.Status == SessionStatusSkipped
}

// Placed reports whether the session holds a concrete time-of-day slot.
func (s *Session) Placed() bool {
	return s.StartTime != "" && s.EndTime != ""
}

// Clone returns a copy of the session. Pointer fields are duplicated so
// the copy can be mutated independently.
func (s *Session) Clone() *Session {
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.RescheduledAt != nil {
		t := *s.RescheduledAt
		c.RescheduledAt = &t
	}
	return &c
}
