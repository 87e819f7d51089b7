package stats

import (
	"fmt"
	"testing"
	"time"

	"flowcast/internal/eventlog"
	"flowcast/internal/jira"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedRow(key string, committed, done time.Time, size *float64) IssueTimeline {
	ct := done.Sub(committed)
	return IssueTimeline{
		Key:         key,
		Size:        size,
		StepDates:   []time.Time{committed, committed, done},
		CycleTime:   &ct,
		CompletedAt: &done,
	}
}

func TestCalculateThroughput(t *testing.T) {
	// Jan 1 2024 is a Monday.
	tests := []struct {
		name      string
		rows      []IssueTimeline
		window    AnalysisWindow
		sized     bool
		want      []float64
		firstDate time.Time
		column    string
	}{
		{
			name: "DailyZeroFilled",
			rows: []IssueTimeline{
				completedRow("A-1", day(1), day(2), nil),
				completedRow("A-2", day(1), day(2).Add(3*time.Hour), nil),
				completedRow("A-3", day(1), day(5), nil),
				timelineRow("A-4", day(1), time.Time{}, time.Time{}),
			},
			window:    AnalysisWindow{Bucket: Day},
			want:      []float64{2, 0, 0, 1},
			firstDate: midnight(2),
			column:    "count",
		},
		{
			name: "WindowAndSize",
			rows: []IssueTimeline{
				completedRow("A-1", day(1), day(2), eventlog.Float(3)),
				completedRow("A-2", day(1), day(10), eventlog.Float(5)),
				completedRow("A-3", day(1), day(12), nil),
			},
			window:    TrailingWindow(5, day(12), Day),
			sized:     true,
			want:      []float64{5, 0, 0},
			firstDate: midnight(10),
			column:    "sum",
		},
		{
			name: "Weekly",
			rows: []IssueTimeline{
				completedRow("A-1", day(1), day(2), nil),
				completedRow("A-2", day(1), day(7), nil),
				completedRow("A-3", day(1), day(22), nil),
			},
			window:    AnalysisWindow{Bucket: Week},
			want:      []float64{2, 0, 0, 1},
			firstDate: midnight(1),
			column:    "count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := CalculateThroughput(threeStepTable(tt.rows...), tt.window, tt.sized)
			require.Len(t, series.Points, len(tt.want))
			assert.Equal(t, tt.want, series.Values())
			assert.Equal(t, tt.firstDate, series.Points[0].Date)
			assert.Equal(t, tt.column, series.ColumnName())
		})
	}
}

func TestCalculateThroughput_MixedOffsets(t *testing.T) {
	parse := func(s string) time.Time {
		ts, err := jira.ParseTime(s)
		require.NoError(t, err)
		return ts
	}

	tests := []struct {
		name      string
		bucket    Bucket
		completed []string
		want      []float64
		firstDate time.Time
	}{
		{
			name:   "HalfHourOffset",
			bucket: Day,
			completed: []string{
				"2024-01-02T10:00:00.000+0530",
				"2024-01-02T18:00:00.000+0530",
				"2024-01-04T09:00:00.000+0530",
			},
			want:      []float64{2, 0, 1},
			firstDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "DaylightSavingChange",
			bucket: Week,
			completed: []string{
				"2024-03-29T12:00:00.000+0000",
				"2024-04-02T12:00:00.000+0100",
			},
			want:      []float64{1, 1},
			firstDate: time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "CivilDateOfEachOffset",
			bucket: Day,
			completed: []string{
				"2024-01-02T23:30:00.000-0330",
				"2024-01-03T00:15:00.000+0545",
			},
			want:      []float64{1, 1},
			firstDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []IssueTimeline
			for i, s := range tt.completed {
				done := parse(s)
				rows = append(rows, completedRow(fmt.Sprintf("A-%d", i+1), done.Add(-48*time.Hour), done, nil))
			}

			series := CalculateThroughput(threeStepTable(rows...), AnalysisWindow{Bucket: tt.bucket}, false)
			assert.Equal(t, tt.want, series.Values())
			assert.Equal(t, float64(len(tt.completed)), series.Sum())
			require.NotEmpty(t, series.Points)
			assert.Equal(t, tt.firstDate, series.Points[0].Date)
		})
	}
}

func TestCalculateThroughput_Empty(t *testing.T) {
	series := CalculateThroughput(threeStepTable(), AnalysisWindow{}, false)
	assert.True(t, series.Empty())
	assert.Equal(t, Day, series.Bucket)
}
