package models

// PlanMode selects the scheduling strategy.
type PlanMode string

const (
	// PlanModeEven spreads each task's hours across its full window.
	PlanModeEven PlanMode = "even"
	// PlanModeEisenhower fills days greedily in priority order.
	PlanModeEisenhower PlanMode = "eisenhower"
)

// Settings holds the user's scheduling preferences.
type Settings struct {
	DailyAvailableHours       float64
	WorkDays                  []int // weekday numbers eligible for scheduling, 0=Sunday
	BufferDays                int   // finish this many days before the deadline
	MinSessionLength          int   // minutes, shortest allocation created
	BufferTimeBetweenSessions int   // minutes inserted after each placed interval
	StudyWindowStartHour      int   // 0-23
	StudyWindowEndHour        int   // 0-23, must exceed StudyWindowStartHour
	StudyPlanMode             PlanMode
}

// DefaultSettings returns the out-of-the-box scheduling preferences.
func DefaultSettings() Settings {
	return Settings{
		DailyAvailableHours:       4,
		WorkDays:                  []int{1, 2, 3, 4, 5},
		BufferDays:                0,
		MinSessionLength:          30,
		BufferTimeBetweenSessions: 10,
		StudyWindowStartHour:      8,
		StudyWindowEndHour:        22,
		StudyPlanMode:             PlanModeEven,
	}
}

// IsWorkDay reports whether the given weekday (0=Sunday) is eligible for
// scheduling.
func (s Settings) IsWorkDay(weekday int) bool {
	for _, d := range s.WorkDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// MaxSessionHours is the per-session cap: 4 hours or the daily capacity,
// whichever is smaller. Avoids marathon sessions.
func (s Settings) MaxSessionHours() float64 {
	if s.DailyAvailableHours < 4 {
		return s.DailyAvailableHours
	}
	return 4
}

// MinSessionHours returns the minimum session length in hours.
func (s Settings) MinSessionHours() float64 {
	return float64(s.MinSessionLength) / 60
}
