package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucket(t *testing.T) {
	for in, want := range map[string]Bucket{"": Day, "1D": Day, "week": Week, "1W": Week, "Monthly": Month} {
		got, err := ParseBucket(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBucket("fortnight")
	assert.Error(t, err)
}

func TestSnapping(t *testing.T) {
	wed := time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, midnight(1), SnapToStart(wed, Week))
	assert.Equal(t, midnight(1), SnapToStart(wed, Month))
	assert.Equal(t, midnight(3), TruncateDay(wed))
	assert.Equal(t, midnight(4).Add(-time.Nanosecond), SnapToEnd(wed, Day))

	sunday := time.Date(2024, 1, 7, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight(1), SnapToStart(sunday, Week))
}

func TestAnalysisWindow(t *testing.T) {
	w := NewAnalysisWindow(day(1), day(14), Week)
	assert.Equal(t, midnight(1), w.Start)
	assert.Equal(t, midnight(15).Add(-time.Nanosecond), w.End)
	assert.False(t, w.Contains(day(15)))
	assert.True(t, w.Contains(day(14)))
	assert.Equal(t, "2024-W02", GenerateLabel(midnight(8), Week))
}
