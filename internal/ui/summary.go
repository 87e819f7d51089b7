// Package ui renders the coloured run summary printed after an extract.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"flowcast/internal/simulation"
	"flowcast/internal/stats"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Bold       = color.New(color.Bold).SprintFunc()
	Dim        = color.New(color.Faint).SprintFunc()
	Green      = color.New(color.FgGreen).SprintFunc()
	Yellow     = color.New(color.FgYellow).SprintFunc()
	BoldCyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
)

// ColorFor enables colour only when f is a terminal.
func ColorFor(f *os.File) {
	color.NoColor = !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Summary is what one extract run produced.
type Summary struct {
	Issues      int
	Completed   int
	Percentiles []stats.PercentileValue
	Throughput  *stats.ThroughputSeries
	Forecast    *simulation.BurnupResult
	// Warnings are outputs that were skipped.
	Warnings []string
	// Outputs are the files written.
	Outputs []string
}

// Print writes the summary to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "%s %s issues, %s completed\n", BoldCyan("flowcast"), Bold(s.Issues), Green(s.Completed))

	if len(s.Percentiles) > 0 {
		fmt.Fprintln(w, Bold("Cycle time"))
		for _, p := range s.Percentiles {
			fmt.Fprintf(w, "  %s %.1f days\n", Dim(fmt.Sprintf("%3.0f%%", p.Quantile*100)), p.Days)
		}
	}

	if s.Throughput != nil && !s.Throughput.Empty() {
		per := len(s.Throughput.Points)
		fmt.Fprintf(w, "%s %g over %d %s periods (mean %.2f)\n",
			Bold("Throughput"), s.Throughput.Sum(), per, s.Throughput.Bucket, s.Throughput.Sum()/float64(per))
		if xmr := stats.ThroughputStability(*s.Throughput); !xmr.Stable() {
			fmt.Fprintf(w, "  %s %d periods outside %.1f to %.1f or shifted\n",
				Yellow("unstable"), len(xmr.Signals), xmr.LNPL, xmr.UNPL)
		}
	}

	if s.Forecast != nil {
		fmt.Fprintf(w, "%s %s from %g to %g\n", Bold("Forecast"), s.Forecast.DoneColumn, s.Forecast.StartValue, s.Forecast.Target)
		if s.Forecast.Unfinished > 0 {
			fmt.Fprintf(w, "  %s %d trials did not reach the target\n", Yellow("gave up"), s.Forecast.Unfinished)
		}
		for _, fd := range s.Forecast.FinishDates {
			fmt.Fprintf(w, "  %s %s\n", Dim(fmt.Sprintf("%3.0f%%", fd.Quantile*100)), Green(fd.Date.Format(time.DateOnly)))
		}
	}

	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "%s %s\n", BoldYellow("skipped"), Yellow(warn))
	}
	for _, out := range s.Outputs {
		fmt.Fprintf(w, "  %s %s\n", Dim("wrote"), out)
	}
}
