package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", FormatDate(d))

	_, err = ParseDate("09/01/2026")
	assert.Error(t, err)
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2026-09-03", AddDays("2026-09-01", 2))
	assert.Equal(t, "2026-08-30", AddDays("2026-09-01", -2))
	assert.Equal(t, "2026-10-01", AddDays("2026-09-01", 30))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 2, DaysBetween("2026-09-01", "2026-09-03"))
	assert.Equal(t, -2, DaysBetween("2026-09-03", "2026-09-01"))
	assert.Equal(t, 0, DaysBetween("2026-09-01", "2026-09-01"))
}

func TestWeekday(t *testing.T) {
	// 2026-09-01 is a Tuesday.
	assert.Equal(t, 2, Weekday("2026-09-01"))
	assert.Equal(t, 0, Weekday("2026-09-06"))
	assert.Equal(t, -1, Weekday("not-a-date"))
}

func TestTimeMinutesConversion(t *testing.T) {
	tests := []struct {
		hhmm string
		mins int
	}{
		{"00:00", 0},
		{"08:30", 510},
		{"23:59", 1439},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.mins, TimeToMinutes(tt.hhmm))
		assert.Equal(t, tt.hhmm, MinutesToTime(tt.mins))
	}
	assert.Equal(t, 0, TimeToMinutes("garbage"))
}

func TestOverlaps(t *testing.T) {
	a := Interval{Start: 60, End: 120}
	assert.True(t, a.Overlaps(Interval{Start: 90, End: 150}))
	assert.True(t, a.Overlaps(Interval{Start: 0, End: 61}))
	assert.False(t, a.Overlaps(Interval{Start: 120, End: 180}), "touching intervals do not overlap")
	assert.False(t, a.Overlaps(Interval{Start: 0, End: 60}))
}

func TestMergeIntervals(t *testing.T) {
	merged := MergeIntervals([]Interval{
		{Start: 600, End: 660},
		{Start: 540, End: 630},
		{Start: 700, End: 720},
		{Start: 660, End: 680},
	})
	assert.Equal(t, []Interval{
		{Start: 540, End: 680},
		{Start: 700, End: 720},
	}, merged)

	assert.Nil(t, MergeIntervals(nil))
}
