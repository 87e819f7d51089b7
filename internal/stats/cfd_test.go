package stats

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"flowcast/internal/cycle"
	"flowcast/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStepTable(rows ...IssueTimeline) TimelineTable {
	return TimelineTable{
		Steps: []string{"todo", "doing", "done"},
		Kinds: []cycle.Kind{cycle.Backlog, cycle.Committed, cycle.Complete},
		Rows:  rows,
	}
}

func timelineRow(key string, dates ...time.Time) IssueTimeline {
	return IssueTimeline{Key: key, StepDates: dates}
}

// A finished on Jan 3 after starting on Jan 1 without a recorded todo date;
// B has been waiting in todo since Jan 1.
func finishedAndWaiting() TimelineTable {
	a := timelineRow("A-1", time.Time{}, day(1), day(3))
	a.Size = eventlog.Float(5)
	b := timelineRow("B-1", day(1), time.Time{}, time.Time{})
	b.Size = eventlog.Float(2)
	return threeStepTable(a, b)
}

func calculateCFD(t *testing.T, table TimelineTable, opts CFDOptions) CFDTable {
	t.Helper()
	cfd, err := CalculateCFD(context.Background(), table, opts)
	require.NoError(t, err)
	return cfd
}

func TestCalculateCFD(t *testing.T) {
	asOfDay := BuildSizeMatrix([]SizeInterval{
		{Key: "A-1", From: midnight(1), To: midnight(3), Size: eventlog.Float(3)},
		{Key: "A-1", From: midnight(3), To: midnight(3), Size: eventlog.Float(8)},
		{Key: "B-1", From: midnight(1), To: midnight(3), Size: eventlog.Float(1)},
	})

	tests := []struct {
		name    string
		opts    CFDOptions
		columns []string
		// rows are the values on Jan 1, 2 and 3.
		rows [][]float64
	}{
		{
			// A counts in every step it has reached.
			name:    "Unstacked",
			opts:    CFDOptions{},
			columns: []string{"todo", "doing", "done"},
			rows:    [][]float64{{2, 1, 0}, {2, 1, 0}, {2, 1, 1}},
		},
		{
			name:    "Stacked",
			opts:    CFDOptions{Stacked: true},
			columns: []string{"todo", "doing", "done"},
			rows:    [][]float64{{1, 1, 0}, {1, 1, 0}, {1, 0, 1}},
		},
		{
			name:    "SizedUsesCurrentSize",
			opts:    CFDOptions{Stacked: true, SizeColumn: "StoryPoints"},
			columns: []string{"todoSized", "doingSized", "doneSized"},
			rows:    [][]float64{{2, 5, 0}, {2, 5, 0}, {2, 0, 5}},
		},
		{
			name:    "SizedUsesSizeAsOfDay",
			opts:    CFDOptions{Stacked: true, SizeColumn: "StoryPoints", Sizes: asOfDay},
			columns: []string{"todoSized", "doingSized", "doneSized"},
			rows:    [][]float64{{1, 3, 0}, {1, 3, 0}, {1, 0, 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfd := calculateCFD(t, finishedAndWaiting(), tt.opts)
			assert.Equal(t, tt.columns, cfd.Columns)
			require.Len(t, cfd.Rows, len(tt.rows))
			assert.Equal(t, midnight(1), cfd.Rows[0].Date)
			assert.Equal(t, midnight(3), cfd.LastDate())
			for i, want := range tt.rows {
				assert.Equal(t, want, cfd.Rows[i].Values, "row %d", i)
			}
		})
	}
}

func TestCFDTable_Max(t *testing.T) {
	cfd := calculateCFD(t, finishedAndWaiting(), CFDOptions{Stacked: true})

	doneMax, ok := cfd.Max("done")
	assert.True(t, ok)
	assert.Equal(t, 1.0, doneMax)

	_, ok = cfd.Max("missing")
	assert.False(t, ok)
}

func TestCalculateCFD_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CalculateCFD(ctx, finishedAndWaiting(), CFDOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateCFD_Empty(t *testing.T) {
	cfd := calculateCFD(t, threeStepTable(), CFDOptions{Stacked: true})
	assert.True(t, cfd.Empty())
	assert.Equal(t, []string{"todo", "doing", "done"}, cfd.Columns)

	cfd = calculateCFD(t, threeStepTable(timelineRow("A-1", time.Time{}, time.Time{}, time.Time{})), CFDOptions{})
	assert.True(t, cfd.Empty())
	assert.True(t, cfd.LastDate().IsZero())
}

func TestCalculateCFD_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	var rows []IssueTimeline
	for i := 0; i < 60; i++ {
		dates := make([]time.Time, 3)
		cursor := 1 + rng.IntN(20)
		for j := range dates {
			if rng.IntN(3) == 0 {
				continue
			}
			cursor += rng.IntN(6)
			dates[j] = day(cursor)
		}
		rows = append(rows, timelineRow("P-1", dates...))
	}
	table := threeStepTable(rows...)

	stacked := calculateCFD(t, table, CFDOptions{Stacked: true, Workers: 3})
	unstacked := calculateCFD(t, table, CFDOptions{Workers: 1})
	require.False(t, stacked.Empty())
	require.Equal(t, len(stacked.Rows), len(unstacked.Rows))

	for i, r := range stacked.Rows {
		if i > 0 {
			assert.Equal(t, stacked.Rows[i-1].Date.AddDate(0, 0, 1), r.Date, "gap before row %d", i)
		}
		total := 0.0
		for _, v := range r.Values {
			total += v
		}
		assert.LessOrEqual(t, total, float64(len(rows)), "issue counted twice on %s", r.Date)

		// Unstacked counts are always at least the stacked ones.
		for j, v := range r.Values {
			assert.GreaterOrEqual(t, unstacked.Rows[i].Values[j], v)
		}
	}
}

func TestKeepRightmost(t *testing.T) {
	tests := []struct {
		name string
		in   []bool
		want []bool
	}{
		{"None", []bool{false, false, false}, []bool{false, false, false}},
		{"First", []bool{true, false, false}, []bool{true, false, false}},
		{"All", []bool{true, true, true}, []bool{false, false, true}},
		{"Gap", []bool{true, false, true, false}, []bool{false, false, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := append([]bool(nil), tt.in...)
			keepRightmost(flags)
			assert.Equal(t, tt.want, flags)
		})
	}
}

func TestCFDTable_Slice(t *testing.T) {
	cfd := calculateCFD(t, finishedAndWaiting(), CFDOptions{})
	sliced := cfd.Slice(day(2), midnight(3))
	require.Len(t, sliced.Rows, 2)
	assert.Equal(t, midnight(2), sliced.Rows[0].Date)
}
