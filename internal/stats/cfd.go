package stats

import (
	"context"
	"math"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// SizedSuffix is appended to step names for size-weighted CFD columns.
const SizedSuffix = "Sized"

// noDay marks a step without a date in the replay grid.
const noDay = math.MinInt64

// CFDOptions controls how the cumulative flow table is built.
type CFDOptions struct {
	// Stacked counts each issue only in its most advanced step. Otherwise an
	// issue counts in every step it has reached.
	Stacked bool
	// SizeColumn, when set, weights every issue by its size and names the
	// columns "<step>Sized".
	SizeColumn string
	// Sizes supplies the size each issue carried on each day. Without it the
	// issue's current size is used.
	Sizes *SizeMatrix
	// Workers bounds the per-day parallelism. <= 0 uses GOMAXPROCS.
	Workers int
}

// CFDRow is the state of the board at the end of one day.
type CFDRow struct {
	Date   time.Time `json:"date"`
	Values []float64 `json:"values"`
}

// CFDTable is a day-indexed cumulative flow table with one row per calendar day.
type CFDTable struct {
	Columns []string `json:"columns"`
	Rows    []CFDRow `json:"rows"`
}

// Empty reports whether the table has no rows.
func (c CFDTable) Empty() bool { return len(c.Rows) == 0 }

// ColumnIndex returns the index of the named column, or -1.
func (c CFDTable) ColumnIndex(name string) int {
	return slices.Index(c.Columns, name)
}

// Column returns the values of the named column, oldest first.
func (c CFDTable) Column(name string) []float64 {
	idx := c.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(c.Rows))
	for i, r := range c.Rows {
		out[i] = r.Values[idx]
	}
	return out
}

// Max returns the largest value of the named column.
func (c CFDTable) Max(name string) (float64, bool) {
	col := c.Column(name)
	if len(col) == 0 {
		return 0, false
	}
	return slices.Max(col), true
}

// LastDate returns the date of the last row.
func (c CFDTable) LastDate() time.Time {
	if c.Empty() {
		return time.Time{}
	}
	return c.Rows[len(c.Rows)-1].Date
}

// Slice returns the rows between from and to inclusive. Zero bounds are open.
func (c CFDTable) Slice(from, to time.Time) CFDTable {
	out := CFDTable{Columns: c.Columns}
	for _, r := range c.Rows {
		if !from.IsZero() && r.Date.Before(TruncateDay(from)) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// CalculateCFD replays the cycle table for every day on which any issue
// entered a step, counting (or sizing) the issues that had reached each step
// by the end of that day. Days between sampled days repeat the previous state.
// It fails only when ctx is cancelled.
func CalculateCFD(ctx context.Context, table TimelineTable, opts CFDOptions) (CFDTable, error) {
	columns := slices.Clone(table.Steps)
	if opts.SizeColumn != "" {
		for i, name := range columns {
			columns[i] = name + SizedSuffix
		}
	}
	result := CFDTable{Columns: columns}
	if len(table.Rows) == 0 || len(table.Steps) == 0 {
		return result, nil
	}

	// Day-truncate the step dates and collect the sampling grid. A skipped
	// step inherits the next step's date so that reaching a later step
	// implies occupying the earlier ones.
	filled := make([][]int64, len(table.Rows))
	sampleSet := make(map[int64]bool)
	for i, row := range table.Rows {
		days := make([]int64, len(table.Steps))
		for j := range days {
			days[j] = noDay
			if d, ok := row.StepDate(j); ok {
				days[j] = dayNumber(d)
				sampleSet[days[j]] = true
			}
		}
		for j := len(days) - 2; j >= 0; j-- {
			if days[j] == noDay {
				days[j] = days[j+1]
			}
		}
		filled[i] = days
	}
	if len(sampleSet) == 0 {
		return result, nil
	}

	samples := make([]int64, 0, len(sampleSet))
	for d := range sampleSet {
		samples = append(samples, d)
	}
	slices.Sort(samples)

	sized := opts.SizeColumn != ""
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	sampled := make([][]float64, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for si, day := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			date := dayFromNumber(day)
			sums := make([]float64, len(table.Steps))
			flags := make([]bool, len(table.Steps))
			for i, row := range table.Rows {
				for j, d := range filled[i] {
					flags[j] = d != noDay && d <= day
				}
				if opts.Stacked {
					keepRightmost(flags)
				}

				weight := 1.0
				if sized {
					weight = sizeAsOf(opts.Sizes, row, date)
				}
				for j, on := range flags {
					if on {
						sums[j] += weight
					}
				}
			}
			sampled[si] = sums
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CFDTable{}, err
	}

	// Reindex to a complete daily calendar, forward filling.
	first, last := samples[0], samples[len(samples)-1]
	result.Rows = make([]CFDRow, 0, last-first+1)
	next := 0
	var current []float64
	for day := first; day <= last; day++ {
		if next < len(samples) && samples[next] == day {
			current = sampled[next]
			next++
		}
		result.Rows = append(result.Rows, CFDRow{
			Date:   dayFromNumber(day),
			Values: slices.Clone(current),
		})
	}
	return result, nil
}

// keepRightmost clears every flag except the rightmost set one. When no flag
// is set the row is treated as occupying index 0, which is already clear.
func keepRightmost(flags []bool) {
	rightmost := 0
	for j := len(flags) - 1; j >= 0; j-- {
		if flags[j] {
			rightmost = j
			break
		}
	}
	for j := range flags {
		if j != rightmost {
			flags[j] = false
		}
	}
}

// sizeAsOf is the issue's size on date. Unknown or null sizes weigh nothing.
func sizeAsOf(sizes *SizeMatrix, row IssueTimeline, date time.Time) float64 {
	if sizes != nil {
		if v, ok := sizes.SizeOn(row.Key, date); ok {
			return v
		}
		return 0
	}
	if row.Size != nil {
		return *row.Size
	}
	return 0
}
