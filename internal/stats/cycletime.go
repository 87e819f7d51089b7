package stats

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// DefaultQuantiles are used when none are configured.
var DefaultQuantiles = []float64{0.3, 0.5, 0.75, 0.85, 0.95}

// PercentileValue is a cycle-time quantile in days.
type PercentileValue struct {
	Quantile float64 `json:"quantile"`
	Days     float64 `json:"days"`
}

// CycleTimePercentiles reports the requested quantiles of the cycle times in
// the table. Issues without a cycle time are ignored.
func CycleTimePercentiles(table TimelineTable, quantiles []float64) []PercentileValue {
	var days []float64
	for _, row := range table.Rows {
		if d, ok := row.CycleDays(); ok {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil
	}
	slices.Sort(days)

	out := make([]PercentileValue, len(quantiles))
	for i, q := range quantiles {
		out[i] = PercentileValue{Quantile: q, Days: quantileSorted(days, q)}
	}
	return out
}

// HistogramBin is one equal-width bin of whole-day cycle times.
type HistogramBin struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"items"`
}

// CycleTimeHistogram spreads whole-day cycle times over equal-width bins
// covering their range. The last bin includes its upper edge.
func CycleTimeHistogram(table TimelineTable, bins int) []HistogramBin {
	if bins <= 0 {
		bins = 10
	}

	var days []float64
	for _, row := range table.Rows {
		if d, ok := row.CycleDays(); ok {
			days = append(days, math.Floor(d))
		}
	}
	if len(days) == 0 {
		return nil
	}

	lo, hi := slices.Min(days), slices.Max(days)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)

	out := make([]HistogramBin, bins)
	for i := range out {
		lower := lo + float64(i)*width
		upper := lo + float64(i+1)*width
		if i == bins-1 {
			upper = hi
		}
		out[i] = HistogramBin{Label: fmt.Sprintf("%.1f to %.1f", lower, upper), Lower: lower, Upper: upper}
	}
	for _, d := range days {
		idx := int((d - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

// ScatterPoint is one completed issue for a cycle-time scatter plot.
type ScatterPoint struct {
	CompletedDate time.Time     `json:"completed_date"`
	CycleDays     int           `json:"cycle_time"`
	Issue         IssueTimeline `json:"issue"`
}

// Scatterplot lists the completed issues with their completion day and
// cycle time in whole days.
func Scatterplot(table TimelineTable) []ScatterPoint {
	var out []ScatterPoint
	for _, row := range table.Completed() {
		days, _ := row.CycleDays()
		out = append(out, ScatterPoint{
			CompletedDate: TruncateDay(*row.CompletedAt),
			CycleDays:     int(math.Floor(days)),
			Issue:         row,
		})
	}
	return out
}
