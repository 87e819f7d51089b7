package export

import (
	"io"
	"strconv"

	"flowcast/internal/eventlog"
	"flowcast/internal/simulation"
	"flowcast/internal/stats"
)

// CycleDataOptions names the metadata columns of the cycle data export.
type CycleDataOptions struct {
	// Fields are the configured attribute names, in column order.
	Fields []string
	// QueryAttribute, when set, adds a column with each row's query value.
	QueryAttribute string
}

// CycleData writes one row per issue: identity, the step entry dates, then
// the metadata columns. JSON output is an array of arrays whose first entry
// is the header, with null for empty cells.
func CycleData(w io.Writer, table stats.TimelineTable, opts CycleDataOptions, format Format) error {
	header := append([]string{"ID", "Link", "Name"}, table.Steps...)
	header = append(header, "Type", "Status", "Resolution")
	header = append(header, opts.Fields...)
	if opts.QueryAttribute != "" {
		header = append(header, opts.QueryAttribute)
	}

	rows := make([][]string, len(table.Rows))
	for i, r := range table.Rows {
		row := []string{r.Key, r.URL, r.Summary}
		for s := range table.Steps {
			d, _ := r.StepDate(s)
			row = append(row, formatDate(d))
		}
		row = append(row, r.IssueType, r.Status, r.Resolution)
		for _, f := range opts.Fields {
			row = append(row, r.Fields[f])
		}
		if opts.QueryAttribute != "" {
			row = append(row, r.QueryValue)
		}
		rows[i] = row
	}

	if format == JSON {
		out := make([][]*string, 0, len(rows)+1)
		out = append(out, nullable(header))
		for _, row := range rows {
			out = append(out, nullable(row))
		}
		return writeJSON(w, out)
	}
	return writeTable(w, header, rows)
}

func nullable(row []string) []*string {
	out := make([]*string, len(row))
	for i := range row {
		if row[i] != "" {
			out[i] = &row[i]
		}
	}
	return out
}

// Records writes the full timeline rows as JSON records.
func Records(w io.Writer, table stats.TimelineTable) error {
	return writeJSON(w, table.Rows)
}

// CFD writes the cumulative flow table with the date as first column.
func CFD(w io.Writer, cfd stats.CFDTable, format Format) error {
	if format == JSON {
		return writeJSON(w, cfd)
	}
	header := append([]string{"Date"}, cfd.Columns...)
	rows := make([][]string, len(cfd.Rows))
	for i, r := range cfd.Rows {
		row := []string{formatDate(r.Date)}
		for _, v := range r.Values {
			row = append(row, formatFloat(v))
		}
		rows[i] = row
	}
	return writeTable(w, header, rows)
}

// Throughput writes one row per period.
func Throughput(w io.Writer, series stats.ThroughputSeries, format Format) error {
	if format == JSON {
		return writeJSON(w, series)
	}
	rows := make([][]string, len(series.Points))
	for i, p := range series.Points {
		rows[i] = []string{formatDate(p.Date), formatFloat(p.Value)}
	}
	return writeTable(w, []string{"completed_timestamp", series.ColumnName()}, rows)
}

// Percentiles writes the cycle-time quantiles in days.
func Percentiles(w io.Writer, values []stats.PercentileValue, format Format) error {
	if format == JSON {
		return writeJSON(w, values)
	}
	rows := make([][]string, len(values))
	for i, p := range values {
		rows[i] = []string{formatFloat(p.Quantile), formatFloat(p.Days)}
	}
	return writeTable(w, []string{"", "percentiles"}, rows)
}

// Histogram writes the item count of every cycle-time bin.
func Histogram(w io.Writer, bins []stats.HistogramBin, format Format) error {
	if format == JSON {
		return writeJSON(w, bins)
	}
	rows := make([][]string, len(bins))
	for i, b := range bins {
		rows[i] = []string{b.Label, strconv.Itoa(b.Count)}
	}
	return writeTable(w, []string{"", "histogram"}, rows)
}

// Scatterplot writes the completion day and whole-day cycle time of every
// completed issue.
func Scatterplot(w io.Writer, points []stats.ScatterPoint, format Format) error {
	if format == JSON {
		return writeJSON(w, points)
	}
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{formatDate(p.CompletedDate), strconv.Itoa(p.CycleDays), p.Issue.Key, p.Issue.URL, p.Issue.Summary}
	}
	return writeTable(w, []string{"completed_date", "cycle_time", "key", "url", "summary"}, rows)
}

// Links writes one row per issue link, naming the relationship from both ends.
func Links(w io.Writer, links []eventlog.IssueLink, format Format) error {
	if format == JSON {
		return writeJSON(w, links)
	}
	rows := make([][]string, len(links))
	for i, l := range links {
		rows[i] = []string{l.Source, l.OutwardLink, l.Target, l.InwardLink, l.LinkType}
	}
	return writeTable(w, []string{"Source", "OutwardLink", "Target", "InwardLink", "LinkType"}, rows)
}

// Forecast writes the finish date of every requested quantile.
func Forecast(w io.Writer, result *simulation.BurnupResult, format Format) error {
	if format == JSON {
		return writeJSON(w, result)
	}
	rows := make([][]string, len(result.FinishDates))
	for i, fd := range result.FinishDates {
		rows[i] = []string{formatFloat(fd.Quantile), formatDate(fd.Date)}
	}
	return writeTable(w, []string{"", "forecast"}, rows)
}

// SizeHistory writes the size intervals of every issue.
func SizeHistory(w io.Writer, intervals []stats.SizeInterval, format Format) error {
	if format == JSON {
		return writeJSON(w, intervals)
	}
	rows := make([][]string, len(intervals))
	for i, iv := range intervals {
		rows[i] = []string{iv.Key, formatDate(iv.From), formatDate(iv.To), formatOptional(iv.Size)}
	}
	return writeTable(w, []string{"key", "fromDate", "toDate", "size"}, rows)
}

// SizeMatrix writes one row per day and one column per issue. Unknown sizes
// are empty cells, or null in JSON.
func SizeMatrix(w io.Writer, m *stats.SizeMatrix, format Format) error {
	if m == nil {
		m = stats.BuildSizeMatrix(nil)
	}
	keys := m.Keys()
	days := m.Days()

	if format == JSON {
		type row struct {
			Date  string              `json:"date"`
			Sizes map[string]*float64 `json:"sizes"`
		}
		out := make([]row, len(days))
		for d, day := range days {
			sizes := make(map[string]*float64, len(keys))
			for k, key := range keys {
				if v, ok := m.Value(d, k); ok {
					sizes[key] = &v
				} else {
					sizes[key] = nil
				}
			}
			out[d] = row{Date: formatDate(day), Sizes: sizes}
		}
		return writeJSON(w, out)
	}

	rows := make([][]string, len(days))
	for d, day := range days {
		row := []string{formatDate(day)}
		for k := range keys {
			cell := ""
			if v, ok := m.Value(d, k); ok {
				cell = formatFloat(v)
			}
			row = append(row, cell)
		}
		rows[d] = row
	}
	return writeTable(w, append([]string{"Date"}, keys...), rows)
}
