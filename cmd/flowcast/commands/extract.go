package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"flowcast/internal/config"
	"flowcast/internal/eventlog"
	"flowcast/internal/export"
	"flowcast/internal/simulation"
	"flowcast/internal/stats"
	"flowcast/internal/ui"
	"flowcast/internal/visuals"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// extractOptions are the flags of the extract command. Empty file names skip
// the corresponding output.
type extractOptions struct {
	src    source
	output string
	format string

	maxResults int
	quantiles  string

	records     string
	cfd         string
	cfdStacked  string
	scatterplot string
	histogram   string
	percentiles string
	sizeHistory string
	sizeMatrix  string
	links       string

	throughput          string
	throughputFrequency string
	throughputWindow    int
	throughputWindowEnd string

	burnupForecast string
	backlogColumn  string
	doneColumn     string
	trials         int
	target         float64
	hasTarget      bool
	seed           int64
	hasSeed        bool

	chartsFrom string
	chartsTo   string
	report     string
	open       bool
}

func newExtractCommand(g *globals) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <config.yml> [data.csv]",
		Short: "Extract cycle data and flow analytics",
		Long: `Extract reads the issues described by the workflow file and writes the cycle data
(one row per issue with the date it entered each step) plus any analytics requested by flag.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				opts.output = args[1]
			}
			opts.hasTarget = cmd.Flags().Changed("target")
			opts.hasSeed = cmd.Flags().Changed("seed")

			settings, err := loadSettings(args[0])
			if err != nil {
				return err
			}
			settings, err = opts.apply(settings)
			if err != nil {
				return err
			}
			if err := checkSizeAttribute(settings, opts.src); err != nil {
				return err
			}

			histories, err := g.loader(settings, opts.src)(cmd.Context())
			if err != nil {
				return err
			}

			summary, err := runExtract(cmd.Context(), settings, histories, opts, time.Now(), g.cfg.Workers)
			if err != nil {
				return err
			}
			ui.ColorFor(os.Stderr)
			summary.Print(cmd.ErrOrStderr())

			if opts.report != "" && opts.open {
				if err := browser.OpenFile(opts.report); err != nil {
					log.Warn().Err(err).Str("report", opts.report).Msg("Could not open report")
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.src.input, "input", "", "read issue histories from this JSON file instead of Jira")
	f.StringVar(&opts.src.sizeAttribute, "points", "", "weight flow by this attribute (e.g. StoryPoints) instead of counting issues")
	f.StringVar(&opts.format, "format", "csv", "output format: csv (tab separated) or json")
	f.IntVarP(&opts.maxResults, "max-results", "n", 0, "only fetch the N most recently updated issues per query")
	f.StringVar(&opts.quantiles, "quantiles", "", "comma separated cycle-time quantiles, e.g. 0.3,0.5,0.75,0.85,0.95")

	f.StringVar(&opts.records, "records", "", "write every issue as JSON records to this file")
	f.StringVar(&opts.cfd, "cfd", "", "write Cumulative Flow Diagram data to this file")
	f.StringVar(&opts.cfdStacked, "cfd-stacked", "", "write stackable CFD data (each issue in its latest step only) to this file")
	f.StringVar(&opts.scatterplot, "scatterplot", "", "write cycle-time scatter plot data to this file")
	f.StringVar(&opts.histogram, "histogram", "", "write cycle-time histogram data to this file")
	f.StringVar(&opts.percentiles, "percentiles", "", "write cycle-time percentiles to this file")
	f.StringVar(&opts.sizeHistory, "size-history", "", "write issue size intervals to this file")
	f.StringVar(&opts.sizeMatrix, "size-matrix", "", "write the day by issue size table to this file")
	f.StringVar(&opts.links, "links", "", "write issue links to this file")

	f.StringVar(&opts.throughput, "throughput", "", "write throughput data to this file")
	f.StringVar(&opts.throughputFrequency, "throughput-frequency", "day", "throughput period: day, week or month")
	f.IntVar(&opts.throughputWindow, "throughput-window", 60, "days in the past used for throughput")
	f.StringVar(&opts.throughputWindowEnd, "throughput-window-end", "", "last day of the throughput window (YYYY-MM-DD). Default: today")

	f.StringVar(&opts.burnupForecast, "burnup-forecast", "", "write burn-up forecast finish-date percentiles to this file")
	f.StringVar(&opts.backlogColumn, "backlog-column", "", "backlog step for the forecast. Default: the first step")
	f.StringVar(&opts.doneColumn, "done-column", "", "done step for the forecast. Default: the last step")
	f.IntVar(&opts.trials, "trials", simulation.DefaultTrials, "Monte Carlo trials")
	f.Float64Var(&opts.target, "target", 0, "amount of work to finish. Default: the backlog size")
	f.Int64Var(&opts.seed, "seed", 0, "random seed for reproducible forecasts")

	f.StringVar(&opts.chartsFrom, "charts-from", "", "first day drawn in the report (YYYY-MM-DD)")
	f.StringVar(&opts.chartsTo, "charts-to", "", "last day drawn in the report (YYYY-MM-DD)")
	f.StringVar(&opts.report, "report", "", "write an HTML report with charts to this file")
	f.BoolVar(&opts.open, "open", false, "open the HTML report in a browser")
	return cmd
}

// apply folds the command-line overrides into a copy of settings.
func (o *extractOptions) apply(settings config.Settings) (config.Settings, error) {
	if o.quantiles != "" {
		qs, err := parseQuantiles(o.quantiles)
		if err != nil {
			return settings, err
		}
		settings = settings.WithQuantiles(qs)
	}
	if o.maxResults > 0 {
		settings = settings.WithMaxResults(o.maxResults)
	}
	if o.chartsFrom != "" || o.chartsTo != "" {
		from, to := settings.ChartsWindow()
		var err error
		if o.chartsFrom != "" {
			if from, err = parseDay("--charts-from", o.chartsFrom); err != nil {
				return settings, err
			}
		}
		if o.chartsTo != "" {
			if to, err = parseDay("--charts-to", o.chartsTo); err != nil {
				return settings, err
			}
		}
		settings = settings.WithChartsWindow(from, to)
	}
	return settings, nil
}

func parseQuantiles(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		q, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || q < 0 || q > 1 {
			return nil, fmt.Errorf("%w: invalid quantile %q", config.ErrConfig, part)
		}
		out = append(out, q)
	}
	return out, nil
}

func parseDay(flag, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a YYYY-MM-DD date", config.ErrConfig, flag, s)
	}
	return t, nil
}

// runExtract derives and writes every requested output.
func runExtract(ctx context.Context, settings config.Settings, histories []eventlog.IssueHistory, o *extractOptions, now time.Time, workers int) (ui.Summary, error) {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return ui.Summary{}, err
	}
	bucket, err := stats.ParseBucket(o.throughputFrequency)
	if err != nil {
		return ui.Summary{}, err
	}
	var windowEnd time.Time
	if o.throughputWindowEnd != "" {
		if windowEnd, err = parseDay("--throughput-window-end", o.throughputWindowEnd); err != nil {
			return ui.Summary{}, err
		}
	}

	session := stats.NewAnalysisSession(settings.Cycle(), histories, now, stats.SessionOptions{
		SizeColumn: o.src.sizeAttribute,
		Workers:    workers,
	})
	if err := session.Project(ctx); err != nil {
		return ui.Summary{}, err
	}
	table := session.Table()

	summary := ui.Summary{
		Issues:      len(table.Rows),
		Completed:   len(table.Completed()),
		Percentiles: stats.CycleTimePercentiles(table, settings.Quantiles()),
	}
	write := func(path string, fn func(io.Writer) error) error {
		if path == "" {
			return nil
		}
		if err := export.ToFile(path, fn); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("Output written")
		summary.Outputs = append(summary.Outputs, path)
		return nil
	}

	var fields []string
	for _, a := range settings.Attributes() {
		fields = append(fields, a.Name)
	}
	cycleOpts := export.CycleDataOptions{Fields: fields, QueryAttribute: settings.QueryAttribute()}

	cfd, err := session.CFD(ctx, false)
	if err != nil {
		return summary, err
	}
	var stacked stats.CFDTable
	if o.cfdStacked != "" {
		if stacked, err = session.CFD(ctx, true); err != nil {
			return summary, err
		}
	}
	series := session.Throughput(o.throughputWindow, windowEnd, bucket)
	summary.Throughput = &series

	var forecast *simulation.BurnupResult
	if o.burnupForecast != "" || o.report != "" {
		forecast, err = simulation.BurnupForecast(cfd, series, o.forecastOptions())
		if err != nil {
			if !errors.Is(err, simulation.ErrForecastUnavailable) {
				return summary, err
			}
			log.Warn().Err(err).Msg("Skipping burn-up forecast")
			summary.Warnings = append(summary.Warnings, "burn-up forecast: "+err.Error())
		}
		summary.Forecast = forecast
	}

	steps := []error{
		write(o.output, func(w io.Writer) error { return export.CycleData(w, table, cycleOpts, format) }),
		write(o.records, func(w io.Writer) error { return export.Records(w, table) }),
		write(o.cfd, func(w io.Writer) error { return export.CFD(w, cfd, format) }),
		write(o.cfdStacked, func(w io.Writer) error { return export.CFD(w, stacked, format) }),
		write(o.scatterplot, func(w io.Writer) error { return export.Scatterplot(w, stats.Scatterplot(table), format) }),
		write(o.histogram, func(w io.Writer) error { return export.Histogram(w, stats.CycleTimeHistogram(table, 10), format) }),
		write(o.percentiles, func(w io.Writer) error { return export.Percentiles(w, summary.Percentiles, format) }),
		write(o.throughput, func(w io.Writer) error { return export.Throughput(w, series, format) }),
		write(o.sizeHistory, func(w io.Writer) error { return export.SizeHistory(w, session.SizeIntervals(), format) }),
		write(o.sizeMatrix, func(w io.Writer) error {
			sizes := session.Sizes()
			if sizes == nil {
				sizes = stats.BuildSizeMatrix(session.SizeIntervals())
			}
			return export.SizeMatrix(w, sizes, format)
		}),
		write(o.links, func(w io.Writer) error { return export.Links(w, eventlog.Links(histories), format) }),
	}
	if forecast != nil {
		steps = append(steps, write(o.burnupForecast, func(w io.Writer) error { return export.Forecast(w, forecast, format) }))
	}
	if o.report != "" {
		steps = append(steps, write(o.report, func(w io.Writer) error {
			return buildReport(settings, table, cfd, series, forecast, now).Render(w)
		}))
	}
	if err := errors.Join(steps...); err != nil {
		return summary, err
	}
	return summary, nil
}

func (o *extractOptions) forecastOptions() simulation.BurnupOptions {
	opts := simulation.BurnupOptions{
		Trials:        o.trials,
		BacklogColumn: o.backlogColumn,
		DoneColumn:    o.doneColumn,
	}
	if o.hasTarget {
		opts.Target = &o.target
	}
	if o.hasSeed {
		opts.Seed = &o.seed
	}
	return opts
}

func buildReport(settings config.Settings, table stats.TimelineTable, cfd stats.CFDTable, series stats.ThroughputSeries, forecast *simulation.BurnupResult, now time.Time) *visuals.Report {
	from, to := settings.ChartsWindow()
	r := &visuals.Report{Title: "Flow report", Generated: now}
	r.Add(
		visuals.CFDChart(cfd.Slice(from, to)),
		visuals.ThroughputChart(series),
		visuals.HistogramChart(stats.CycleTimeHistogram(table, 10)),
		visuals.ForecastChart(forecast),
	)
	return r
}
