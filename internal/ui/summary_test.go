package ui

import (
	"bytes"
	"testing"
	"time"

	"flowcast/internal/simulation"
	"flowcast/internal/stats"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestSummary_Print(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	s := Summary{
		Issues:      12,
		Completed:   7,
		Percentiles: []stats.PercentileValue{{Quantile: 0.5, Days: 3.3}},
		Throughput: &stats.ThroughputSeries{
			Bucket: stats.Week,
			Points: []stats.ThroughputPoint{{Date: day, Value: 3}, {Date: day.AddDate(0, 0, 7), Value: 4}},
		},
		Forecast: &simulation.BurnupResult{
			DoneColumn:  "Done",
			StartValue:  7,
			Target:      12,
			FinishDates: []simulation.FinishDate{{Quantile: 0.85, Date: day.AddDate(0, 0, 20)}},
			Unfinished:  3,
		},
		Warnings: []string{"burn-up forecast: no throughput"},
		Outputs:  []string{"cycle.csv"},
	}

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "flowcast 12 issues, 7 completed")
	assert.Contains(t, out, " 50% 3.3 days")
	assert.Contains(t, out, "Throughput 7 over 2 week periods (mean 3.50)")
	assert.Contains(t, out, "Forecast Done from 7 to 12")
	assert.Contains(t, out, " 85% 2024-02-21")
	assert.Contains(t, out, "gave up 3 trials did not reach the target")
	assert.Contains(t, out, "skipped burn-up forecast: no throughput")
	assert.Contains(t, out, "wrote cycle.csv")
	assert.NotContains(t, out, "\x1b[")
	assert.NotContains(t, out, "unstable")
}

func TestSummary_UnstableThroughput(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	series := &stats.ThroughputSeries{Bucket: stats.Day}
	for i, v := range []float64{1, 0, 1, 0, 1, 0, 1, 0, 12} {
		series.Points = append(series.Points, stats.ThroughputPoint{Date: day.AddDate(0, 0, i), Value: v})
	}

	var buf bytes.Buffer
	Summary{Throughput: series}.Print(&buf)
	assert.Contains(t, buf.String(), "unstable 2 periods outside 0.0 to 8.1 or shifted")
}

func TestSummary_Minimal(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	Summary{}.Print(&buf)
	assert.Equal(t, "flowcast 0 issues, 0 completed\n", buf.String())
}
