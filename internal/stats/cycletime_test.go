package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycleTable(days ...int) TimelineTable {
	var rows []IssueTimeline
	for i, d := range days {
		rows = append(rows, completedRow("A-"+string(rune('0'+i)), day(1), day(1+d), nil))
	}
	return threeStepTable(rows...)
}

func TestCycleTimePercentiles(t *testing.T) {
	got := CycleTimePercentiles(cycleTable(1, 2, 3, 4, 5), []float64{0.5, 0.75, 1})
	require.Len(t, got, 3)
	assert.InDelta(t, 3.0, got[0].Days, 1e-9)
	assert.InDelta(t, 4.0, got[1].Days, 1e-9)
	assert.InDelta(t, 5.0, got[2].Days, 1e-9)

	assert.Nil(t, CycleTimePercentiles(threeStepTable(), DefaultQuantiles))
}

func TestCycleTimeHistogram(t *testing.T) {
	bins := CycleTimeHistogram(cycleTable(0, 1, 1, 10), 10)
	require.Len(t, bins, 10)
	assert.Equal(t, "0.0 to 1.0", bins[0].Label)
	assert.Equal(t, 1, bins[0].Count)
	assert.Equal(t, 2, bins[1].Count)
	assert.Equal(t, 1, bins[9].Count, "upper edge belongs to the last bin")

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 4, total)
}

func TestCycleTimeHistogram_SingleValue(t *testing.T) {
	bins := CycleTimeHistogram(cycleTable(3, 3), 2)
	require.Len(t, bins, 2)
	assert.Equal(t, "2.5 to 3.0", bins[0].Label)
	assert.Equal(t, 0, bins[0].Count)
	assert.Equal(t, 2, bins[1].Count)
}

func TestScatterplot(t *testing.T) {
	table := cycleTable(2)
	table.Rows[0].CompletedAt = ptr(day(3).Add(5 * time.Hour))
	table.Rows = append(table.Rows, timelineRow("B-1", day(1), time.Time{}, time.Time{}))

	points := Scatterplot(table)
	require.Len(t, points, 1)
	assert.Equal(t, midnight(3), points[0].CompletedDate)
	assert.Equal(t, 2, points[0].CycleDays)
}

func ptr[T any](v T) *T { return &v }
