package stats

import (
	"testing"
	"time"

	"flowcast/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func midnight(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestReconstructSizeIntervals(t *testing.T) {
	t.Run("NoChanges", func(t *testing.T) {
		assert.Nil(t, ReconstructSizeIntervals("A-1", nil, eventlog.Float(3), day(9)))
	})

	t.Run("ContiguousAndTruncated", func(t *testing.T) {
		changes := []eventlog.SizeChange{
			{Date: day(4), Size: eventlog.Float(5)},
			{Date: day(1), Size: eventlog.Float(2)},
		}
		got := ReconstructSizeIntervals("A-1", changes, eventlog.Float(5), day(9))
		require.Len(t, got, 2)

		assert.Equal(t, midnight(1), got[0].From)
		assert.Equal(t, midnight(4), got[0].To)
		assert.Equal(t, 2.0, *got[0].Size)

		assert.Equal(t, got[0].To, got[1].From)
		assert.Equal(t, midnight(9), got[1].To)
		assert.Equal(t, 5.0, *got[1].Size)
	})

	t.Run("SingleIntervalTakesCurrentSize", func(t *testing.T) {
		changes := []eventlog.SizeChange{{Date: day(1), Size: nil}}
		got := ReconstructSizeIntervals("A-1", changes, eventlog.Float(8), day(3))
		require.Len(t, got, 1)
		require.NotNil(t, got[0].Size)
		assert.Equal(t, 8.0, *got[0].Size)
	})

	t.Run("SingleIntervalWithoutCurrentSize", func(t *testing.T) {
		changes := []eventlog.SizeChange{{Date: day(1), Size: eventlog.Float(1)}}
		got := ReconstructSizeIntervals("A-1", changes, nil, day(3))
		require.Len(t, got, 1)
		assert.Equal(t, 1.0, *got[0].Size)
	})
}

func TestBuildSizeMatrix(t *testing.T) {
	intervals := []SizeInterval{
		{Key: "A-10", From: midnight(1), To: midnight(3), Size: eventlog.Float(1)},
		{Key: "A-10", From: midnight(3), To: midnight(5), Size: eventlog.Float(3)},
		{Key: "A-9", From: midnight(2), To: midnight(4), Size: eventlog.Float(5)},
	}
	m := BuildSizeMatrix(intervals)

	assert.Equal(t, []string{"A-9", "A-10"}, m.Keys())
	assert.Equal(t, []time.Time{midnight(1), midnight(2), midnight(3), midnight(4), midnight(5)}, m.Days())

	tests := []struct {
		key  string
		day  int
		want float64
		ok   bool
	}{
		{"A-10", 1, 1, true},
		{"A-10", 2, 1, true},
		{"A-10", 3, 3, true}, // change takes effect on its own day
		{"A-10", 5, 3, true}, // last interval includes its end
		{"A-10", 20, 3, true},
		{"A-9", 1, 0, false},
		{"A-9", 4, 5, true},
		{"A-9", 5, 0, false}, // only missing days are filled, not missing cells
		{"A-10", 0, 0, false},
		{"B-1", 2, 0, false},
	}
	for _, tt := range tests {
		got, ok := m.SizeOn(tt.key, midnight(1).AddDate(0, 0, tt.day-1))
		assert.Equal(t, tt.ok, ok, "%s on day %d", tt.key, tt.day)
		assert.Equal(t, tt.want, got, "%s on day %d", tt.key, tt.day)
	}
}

func TestBuildSizeMatrix_ChangeDay(t *testing.T) {
	at := func(d, hour int) time.Time { return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC) }
	intervals := []SizeInterval{
		{Key: "A-1", From: at(3, 18), To: at(5, 10), Size: eventlog.Float(8)},
		{Key: "A-1", From: at(1, 9), To: at(3, 15), Size: eventlog.Float(1)},
		{Key: "A-1", From: at(3, 15), To: at(3, 18), Size: eventlog.Float(3)},
	}
	m := BuildSizeMatrix(intervals)

	tests := []struct {
		name string
		day  int
		want float64
	}{
		{"BeforeChange", 2, 1},
		{"ChangeDayHoldsLastSize", 3, 8},
		{"AfterChange", 4, 8},
		{"LastIntervalEnd", 5, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.SizeOn("A-1", midnight(tt.day))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSizeMatrix_FillsGapDays(t *testing.T) {
	intervals := []SizeInterval{
		{Key: "A-1", From: midnight(1), To: midnight(1), Size: eventlog.Float(2)},
		{Key: "B-1", From: midnight(4), To: midnight(4), Size: eventlog.Float(7)},
	}
	m := BuildSizeMatrix(intervals)
	require.Len(t, m.Days(), 4)

	v, ok := m.SizeOn("A-1", midnight(3))
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = m.SizeOn("A-1", midnight(4))
	assert.False(t, ok)
}

func TestBuildSizeMatrix_Empty(t *testing.T) {
	m := BuildSizeMatrix(nil)
	assert.True(t, m.Empty())
	_, ok := m.SizeOn("A-1", midnight(1))
	assert.False(t, ok)
}
