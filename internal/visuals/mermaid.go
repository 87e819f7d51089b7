package visuals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"flowcast/internal/simulation"
	"flowcast/internal/stats"
)

// maxPoints is roughly where Mermaid's xychart starts overlapping labels.
const maxPoints = 60

// Chart is the body of a Mermaid diagram, without markdown fences.
type Chart struct {
	Title string
	Body  string
}

// Markdown wraps the chart in a mermaid code fence.
func (c Chart) Markdown() string {
	if c.Body == "" {
		return ""
	}
	return "```mermaid\n" + c.Body + "```"
}

type xyChart struct {
	title  string
	labels []string
	yLabel string
	yMax   float64
	series []string
}

func (x xyChart) render() Chart {
	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"%s\"\n", x.title))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(x.labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"%s\" 0 --> %d\n", x.yLabel, int(math.Ceil(math.Max(x.yMax, 1)))))
	for _, s := range x.series {
		sb.WriteString("    " + s + "\n")
	}
	return Chart{Title: x.title, Body: sb.String()}
}

// sampleRate keeps at most maxPoints of n, always including the last one.
func sampleRate(n int) int {
	if n <= maxPoints {
		return 1
	}
	return int(math.Ceil(float64(n) / maxPoints))
}

func keep(i, n, rate int) bool {
	return i%rate == 0 || i == n-1
}

func quote(s string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(s, "\"", "'"))
}

// CFDChart draws one line per CFD column, backlog first.
func CFDChart(cfd stats.CFDTable) Chart {
	if cfd.Empty() {
		return Chart{}
	}

	n := len(cfd.Rows)
	rate := sampleRate(n)
	var labels []string
	cols := make([][]string, len(cfd.Columns))
	maxY := 0.0

	for i, row := range cfd.Rows {
		if !keep(i, n, rate) {
			continue
		}
		labels = append(labels, quote(row.Date.Format("Jan02")))
		for c, v := range row.Values {
			cols[c] = append(cols[c], fmt.Sprintf("%.1f", v))
			maxY = math.Max(maxY, v)
		}
	}

	series := make([]string, len(cols))
	for c, values := range cols {
		series[c] = fmt.Sprintf("line [%s]", strings.Join(values, ", "))
	}

	return xyChart{
		title:  "Cumulative Flow (" + strings.Join(cfd.Columns, ", ") + ")",
		labels: labels,
		yLabel: "Items",
		yMax:   maxY * 1.1,
		series: series,
	}.render()
}

// ThroughputChart draws delivered volume per period.
func ThroughputChart(series stats.ThroughputSeries) Chart {
	if series.Empty() {
		return Chart{}
	}

	var labels, values []string
	maxVal := 0.0
	n := len(series.Points)
	rate := sampleRate(n)
	for i, p := range series.Points {
		if !keep(i, n, rate) {
			continue
		}
		labels = append(labels, quote(stats.GenerateLabel(p.Date, series.Bucket)))
		values = append(values, fmt.Sprintf("%g", p.Value))
		maxVal = math.Max(maxVal, p.Value)
	}

	yLabel := "Items Delivered"
	if series.Sized {
		yLabel = "Size Delivered"
	}
	return xyChart{
		title:  "Delivery Cadence (Throughput)",
		labels: labels,
		yLabel: yLabel,
		yMax:   maxVal + math.Max(1, maxVal*0.2),
		series: []string{fmt.Sprintf("bar [%s]", strings.Join(values, ", "))},
	}.render()
}

// HistogramChart draws the cycle-time distribution.
func HistogramChart(bins []stats.HistogramBin) Chart {
	if len(bins) == 0 {
		return Chart{}
	}

	var labels, values []string
	maxVal := 0
	for _, b := range bins {
		labels = append(labels, quote(b.Label))
		values = append(values, fmt.Sprintf("%d", b.Count))
		maxVal = max(maxVal, b.Count)
	}
	return xyChart{
		title:  "Cycle Time Distribution",
		labels: labels,
		yLabel: "Items",
		yMax:   float64(maxVal) * 1.2,
		series: []string{fmt.Sprintf("bar [%s]", strings.Join(values, ", "))},
	}.render()
}

// ForecastChart draws the days from the forecast start to each finish date.
func ForecastChart(result *simulation.BurnupResult) Chart {
	if result == nil || len(result.FinishDates) == 0 {
		return Chart{}
	}

	var labels, values []string
	maxVal := 0.0
	for _, fd := range result.FinishDates {
		days := fd.Date.Sub(stats.TruncateDay(result.StartDate)).Hours() / 24
		labels = append(labels, quote(fmt.Sprintf("%.0f%% (%s)", fd.Quantile*100, fd.Date.Format(time.DateOnly))))
		values = append(values, fmt.Sprintf("%.0f", days))
		maxVal = math.Max(maxVal, days)
	}
	return xyChart{
		title:  fmt.Sprintf("Burn-up Forecast (%s to %g)", result.DoneColumn, result.Target),
		labels: labels,
		yLabel: "Days from " + result.StartDate.Format(time.DateOnly),
		yMax:   maxVal * 1.1,
		series: []string{fmt.Sprintf("bar [%s]", strings.Join(values, ", "))},
	}.render()
}
