package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

func slotSettings() models.Settings {
	st := models.DefaultSettings()
	st.StudyWindowStartHour = 8
	st.StudyWindowEndHour = 18
	st.BufferTimeBetweenSessions = 10
	return st
}

func TestFindSlot_EmptyDay(t *testing.T) {
	start, end, ok := FindSlot(1.5, nil, nil, slotSettings())
	require.True(t, ok)
	assert.Equal(t, "08:00", start)
	assert.Equal(t, "09:30", end)
}

func TestFindSlot_SkipsBusyWithBuffer(t *testing.T) {
	busy := []timeutil.Interval{{Start: 8 * 60, End: 10 * 60}}
	start, end, ok := FindSlot(1, nil, busy, slotSettings())
	require.True(t, ok)
	assert.Equal(t, "10:10", start, "cursor advances past busy end plus buffer")
	assert.Equal(t, "11:10", end)
}

func TestFindSlot_FirstFitNotBestFit(t *testing.T) {
	// A 1h gap at 09:00 and a huge gap later: the earliest gap wins.
	busy := []timeutil.Interval{
		{Start: 8 * 60, End: 9 * 60},
		{Start: 10*60 + 10, End: 11 * 60},
	}
	start, _, ok := FindSlot(1, nil, busy, slotSettings())
	require.True(t, ok)
	assert.Equal(t, "09:10", start)
}

func TestFindSlot_PlacedSessionsBlock(t *testing.T) {
	placed := []*models.Session{
		{ID: "s1", StartTime: "08:00", EndTime: "12:00", Status: models.SessionStatusScheduled, AllocatedHours: 4},
	}
	start, _, ok := FindSlot(2, placed, nil, slotSettings())
	require.True(t, ok)
	assert.Equal(t, "12:10", start)
}

func TestFindSlot_SkippedAndUnplacedSessionsIgnored(t *testing.T) {
	placed := []*models.Session{
		{ID: "s1", StartTime: "08:00", EndTime: "12:00", Status: models.SessionStatusSkipped},
		{ID: "s2", StartTime: "", EndTime: "", Status: models.SessionStatusScheduled, AllocatedHours: 1},
	}
	start, _, ok := FindSlot(2, placed, nil, slotSettings())
	require.True(t, ok)
	assert.Equal(t, "08:00", start)
}

func TestFindSlot_WindowFull(t *testing.T) {
	// Commitment spanning the entire study window leaves zero placeable
	// slots that day.
	busy := []timeutil.Interval{{Start: 8 * 60, End: 18 * 60}}
	_, _, ok := FindSlot(0.5, nil, busy, slotSettings())
	assert.False(t, ok)
}

func TestFindSlot_TooLongForWindow(t *testing.T) {
	_, _, ok := FindSlot(11, nil, nil, slotSettings()) // 10h window
	assert.False(t, ok)
}

func TestFindSlot_ZeroDuration(t *testing.T) {
	_, _, ok := FindSlot(0, nil, nil, slotSettings())
	assert.False(t, ok)
}
