package scheduling

import (
	"time"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// Classify maps a session and its plan date to a display status at the
// given wall-clock instant. Decision order, first match wins:
//
//  1. done or completed -> completed
//  2. skipped -> completed (accounting only; callers that care read the
//     stored status field)
//  3. past date: redistributed-into-the-past -> scheduled, else missed
//  4. redistribution metadata -> rescheduled
//  5. today: before start -> scheduled, within -> in_progress, after
//     end -> overdue
//  6. future date -> scheduled
//
// The past-date check deliberately runs before the rescheduled label so a
// session redistributed to a date that has since passed reads as
// scheduled rather than rescheduled.
func Classify(s *models.Session, planDate string, now time.Time) models.SessionStatus {
	if s.Done || s.Status == models.SessionStatusCompleted {
		return models.SessionStatusCompleted
	}
	if s.Status == models.SessionStatusSkipped {
		return models.SessionStatusCompleted
	}

	today := timeutil.FormatDate(now)
	if planDate < today {
		if s.Redistributed() {
			return models.SessionStatusScheduled
		}
		return models.SessionStatusMissed
	}

	if s.Redistributed() {
		return models.SessionStatusRescheduled
	}

	if planDate == today && s.Placed() {
		nowMin := now.Hour()*60 + now.Minute()
		switch {
		case nowMin < timeutil.TimeToMinutes(s.StartTime):
			return models.SessionStatusScheduled
		case nowMin < timeutil.TimeToMinutes(s.EndTime):
			return models.SessionStatusInProgress
		default:
			return models.SessionStatusOverdue
		}
	}

	return models.SessionStatusScheduled
}
