package stats

import (
	"time"
)

// ThroughputPoint is the delivery volume of one period.
type ThroughputPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ThroughputSeries is a gap-free, period-indexed delivery series. Value is an
// item count, or summed size when Sized is set.
type ThroughputSeries struct {
	Bucket Bucket            `json:"bucket"`
	Sized  bool              `json:"sized"`
	Points []ThroughputPoint `json:"points"`
}

// Empty reports whether the series has no periods.
func (s ThroughputSeries) Empty() bool { return len(s.Points) == 0 }

// Values returns the per-period values.
func (s ThroughputSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Sum returns the total delivered volume.
func (s ThroughputSeries) Sum() float64 {
	total := 0.0
	for _, p := range s.Points {
		total += p.Value
	}
	return total
}

// ColumnName is "sum" for sized series and "count" otherwise.
func (s ThroughputSeries) ColumnName() string {
	if s.Sized {
		return "sum"
	}
	return "count"
}

// civilDate is the calendar day of t in its own location, expressed in UTC so
// that days parsed with different offsets compare equal.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalculateThroughput groups the completed issues inside window by period.
// Periods run from the first to the last completion, with empty periods
// reported as zero. Periods are keyed by the civil completion date and
// reported in UTC. When sized is set, each issue contributes its current
// size instead of one.
func CalculateThroughput(table TimelineTable, window AnalysisWindow, sized bool) ThroughputSeries {
	bucket := window.Bucket
	if bucket == "" {
		bucket = Day
	}
	series := ThroughputSeries{Bucket: bucket, Sized: sized}

	totals := make(map[time.Time]float64)
	var first, last time.Time
	for _, row := range table.Completed() {
		completed := *row.CompletedAt
		if !window.Start.IsZero() && completed.Before(window.Start) {
			continue
		}
		if !window.End.IsZero() && completed.After(window.End) {
			continue
		}

		period := SnapToStart(civilDate(completed), bucket)
		value := 1.0
		if sized {
			value = 0
			if row.Size != nil {
				value = *row.Size
			}
		}
		totals[period] += value

		if first.IsZero() || period.Before(first) {
			first = period
		}
		if last.IsZero() || period.After(last) {
			last = period
		}
	}

	if first.IsZero() {
		return series
	}
	for p := first; !p.After(last); p = Advance(p, bucket, 1) {
		series.Points = append(series.Points, ThroughputPoint{Date: p, Value: totals[p]})
	}
	return series
}
