package models

import "time"

// CommitmentType represents the kind of fixed obligation.
type CommitmentType string

const (
	CommitmentTypeClass       CommitmentType = "class"
	CommitmentTypeWork        CommitmentType = "work"
	CommitmentTypeAppointment CommitmentType = "appointment"
	CommitmentTypeOther       CommitmentType = "other"
	// CommitmentTypeBuffer blocks time but is suppressed from display.
	CommitmentTypeBuffer CommitmentType = "buffer"
)

// OccurrenceOverride is a partial per-date override of a commitment.
// Nil fields fall back to the base commitment values.
type OccurrenceOverride struct {
	Title     *string         `json:"title,omitempty"`
	StartTime *string         `json:"start_time,omitempty"`
	EndTime   *string         `json:"end_time,omitempty"`
	Type      *CommitmentType `json:"type,omitempty"`
}

// Commitment is a fixed, non-study obligation that blocks scheduling
// during its time range. Either Recurring with DaysOfWeek, or one-off
// with SpecificDates. Same-day only: StartTime < EndTime.
type Commitment struct {
	ID        string
	Title     string
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
	Type      CommitmentType

	Recurring     bool
	DaysOfWeek    []int    // 0=Sunday..6=Saturday, when Recurring
	SpecificDates []string // "2006-01-02" dates, when not Recurring

	// DeletedOccurrences suppresses single dates of a recurring commitment,
	// or records that a one-off overrode a recurring slot.
	DeletedOccurrences []string
	// ModifiedOccurrences overrides title/times/type for single dates.
	ModifiedOccurrences map[string]OccurrenceOverride

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Occurrence is one concrete date-instance of a commitment, after
// deleted/modified overrides have been applied.
type Occurrence struct {
	CommitmentID string
	Title        string
	StartTime    string
	EndTime      string
	Type         CommitmentType
}
