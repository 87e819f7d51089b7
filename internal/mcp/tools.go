package mcp

import (
	"context"
	"errors"
	"slices"

	"flowcast/internal/simulation"
	"flowcast/internal/stats"
	"flowcast/internal/visuals"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// DefaultThroughputWindow is the number of trailing days sampled for throughput.
const DefaultThroughputWindow = 60

type CycleDataInput struct {
	Keys    []string `json:"keys,omitempty" jsonschema:"Optional: only return these issue keys"`
	Refresh bool     `json:"refresh,omitempty" jsonschema:"Reload the issues before answering"`
}

type CycleDataOutput struct {
	Steps  []string              `json:"steps"`
	Issues int                   `json:"issues"`
	Rows   []stats.IssueTimeline `json:"rows"`
}

type CFDInput struct {
	Stacked bool   `json:"stacked,omitempty" jsonschema:"Count each issue only in its most advanced step"`
	From    string `json:"from,omitempty" jsonschema:"Optional: first day to return (YYYY-MM-DD)"`
	To      string `json:"to,omitempty" jsonschema:"Optional: last day to return (YYYY-MM-DD)"`
	Chart   bool   `json:"chart,omitempty" jsonschema:"Also return a Mermaid chart"`
}

type ThroughputInput struct {
	WindowDays int    `json:"window_days,omitempty" jsonschema:"Trailing days to aggregate (default 60)"`
	WindowEnd  string `json:"window_end,omitempty" jsonschema:"Optional: last day of the window (YYYY-MM-DD). Default: today"`
	Frequency  string `json:"frequency,omitempty" jsonschema:"Aggregation period: day, week or month (default day)"`
	Chart      bool   `json:"chart,omitempty" jsonschema:"Also return a Mermaid chart"`
}

type ThroughputOutput struct {
	stats.ThroughputSeries
	Stability stats.XmRResult `json:"stability"`
}

type PercentilesInput struct {
	Quantiles     []float64 `json:"quantiles,omitempty" jsonschema:"Quantiles between 0 and 1. Default: the configured quantiles"`
	HistogramBins int       `json:"histogram_bins,omitempty" jsonschema:"Number of histogram bins (default 10)"`
}

type PercentilesOutput struct {
	Completed   int                     `json:"completed"`
	Percentiles []stats.PercentileValue `json:"percentiles"`
	Histogram   []stats.HistogramBin    `json:"histogram"`
}

type ForecastInput struct {
	Trials        int       `json:"trials,omitempty" jsonschema:"Monte Carlo trials (default 100)"`
	Target        *float64  `json:"target,omitempty" jsonschema:"Optional: amount of work to finish. Default: the backlog size"`
	BacklogColumn string    `json:"backlog_column,omitempty" jsonschema:"Optional: backlog step. Default: the first step"`
	DoneColumn    string    `json:"done_column,omitempty" jsonschema:"Optional: done step. Default: the last step"`
	Quantiles     []float64 `json:"quantiles,omitempty" jsonschema:"Finish-date quantiles (default 0.5, 0.75, 0.85, 0.95)"`
	Seed          *int64    `json:"seed,omitempty" jsonschema:"Optional: random seed for reproducible runs"`
	WindowDays    int       `json:"window_days,omitempty" jsonschema:"Trailing days of throughput to sample (default 60)"`
	WindowEnd     string    `json:"window_end,omitempty" jsonschema:"Optional: last day of the throughput window (YYYY-MM-DD)"`
	Frequency     string    `json:"frequency,omitempty" jsonschema:"Throughput period: day, week or month (default day)"`
	Chart         bool      `json:"chart,omitempty" jsonschema:"Also return a Mermaid chart"`
}

// addTool registers a tool whose input schema is derived from In.
func addTool[In any](server *mcp.Server, name, description string, handler mcp.ToolHandlerFor[In, any]) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return err
	}
	mcp.AddTool(server, &mcp.Tool{Name: name, Description: description, InputSchema: schema}, handler)
	return nil
}

func (s *Server) registerTools(server *mcp.Server) error {
	return errors.Join(
		addTool(server, "cycle_data",
			"Return the cycle table: for every issue the first date it entered each workflow step, after backward moves were undone, plus its cycle time.",
			s.handleCycleData),
		addTool(server, "cfd",
			"Return the day-by-day Cumulative Flow Diagram data. Unstacked by default: an issue counts in every step it has reached.",
			s.handleCFD),
		addTool(server, "throughput",
			"Return completed work per period over a trailing window, with empty periods reported as zero.",
			s.handleThroughput),
		addTool(server, "cycle_time_percentiles",
			"Calculate cycle-time percentiles in days and a histogram over completed issues.\n\n"+
				"STRICT GUARDRAIL: DO NOT estimate percentiles yourself if this tool returns no data; report that there are no completed issues.",
			s.handlePercentiles),
		addTool(server, "burnup_forecast",
			"Run a Monte Carlo burn-up simulation by resampling historical throughput and report finish-date percentiles.\n\n"+
				"STRICT GUARDRAIL: YOU MUST NEVER PERFORM PROBABILISTIC FORECASTING AUTONOMOUSLY. "+
				"If the tool reports that a forecast is unavailable, tell the user why instead of guessing dates.",
			s.handleForecast),
	)
}

func (s *Server) handleCycleData(ctx context.Context, _ *mcp.CallToolRequest, in CycleDataInput) (*mcp.CallToolResult, any, error) {
	session, err := s.analysis(ctx, in.Refresh)
	if err != nil {
		return nil, nil, err
	}
	table := session.Table()
	rows := table.Rows
	if len(in.Keys) > 0 {
		rows = nil
		for _, r := range table.Rows {
			if slices.Contains(in.Keys, r.Key) {
				rows = append(rows, r)
			}
		}
	}
	res, err := textResult(CycleDataOutput{Steps: table.Steps, Issues: len(rows), Rows: rows}, visuals.Chart{})
	return res, nil, err
}

func (s *Server) handleCFD(ctx context.Context, _ *mcp.CallToolRequest, in CFDInput) (*mcp.CallToolResult, any, error) {
	from, err := parseDate("from", in.From)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDate("to", in.To)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.analysis(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	full, err := session.CFD(ctx, in.Stacked)
	if err != nil {
		return nil, nil, err
	}
	cfd := full.Slice(from, to)
	var chart visuals.Chart
	if in.Chart {
		chart = visuals.CFDChart(cfd)
	}
	res, err := textResult(cfd, chart)
	return res, nil, err
}

func (s *Server) throughput(ctx context.Context, days int, end, frequency string) (*stats.AnalysisSession, stats.ThroughputSeries, error) {
	endDate, err := parseDate("window_end", end)
	if err != nil {
		return nil, stats.ThroughputSeries{}, err
	}
	bucket, err := stats.ParseBucket(frequency)
	if err != nil {
		return nil, stats.ThroughputSeries{}, err
	}
	if days <= 0 {
		days = DefaultThroughputWindow
	}
	session, err := s.analysis(ctx, false)
	if err != nil {
		return nil, stats.ThroughputSeries{}, err
	}
	return session, session.Throughput(days, endDate, bucket), nil
}

func (s *Server) handleThroughput(ctx context.Context, _ *mcp.CallToolRequest, in ThroughputInput) (*mcp.CallToolResult, any, error) {
	_, series, err := s.throughput(ctx, in.WindowDays, in.WindowEnd, in.Frequency)
	if err != nil {
		return nil, nil, err
	}
	var chart visuals.Chart
	if in.Chart {
		chart = visuals.ThroughputChart(series)
	}
	out := ThroughputOutput{ThroughputSeries: series, Stability: stats.ThroughputStability(series)}
	res, err := textResult(out, chart)
	return res, nil, err
}

func (s *Server) handlePercentiles(ctx context.Context, _ *mcp.CallToolRequest, in PercentilesInput) (*mcp.CallToolResult, any, error) {
	quantiles := in.Quantiles
	if len(quantiles) == 0 {
		quantiles = s.settings.Quantiles()
	}
	if err := validQuantiles(quantiles); err != nil {
		return nil, nil, err
	}
	session, err := s.analysis(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	table := session.Table()
	out := PercentilesOutput{
		Completed:   len(table.Completed()),
		Percentiles: stats.CycleTimePercentiles(table, quantiles),
		Histogram:   stats.CycleTimeHistogram(table, in.HistogramBins),
	}
	res, err := textResult(out, visuals.Chart{})
	return res, nil, err
}

func (s *Server) handleForecast(ctx context.Context, _ *mcp.CallToolRequest, in ForecastInput) (*mcp.CallToolResult, any, error) {
	if err := validQuantiles(in.Quantiles); err != nil {
		return nil, nil, err
	}
	session, series, err := s.throughput(ctx, in.WindowDays, in.WindowEnd, in.Frequency)
	if err != nil {
		return nil, nil, err
	}

	cfd, err := session.CFD(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	result, err := simulation.BurnupForecast(cfd, series, simulation.BurnupOptions{
		Trials:        in.Trials,
		Target:        in.Target,
		BacklogColumn: in.BacklogColumn,
		DoneColumn:    in.DoneColumn,
		Quantiles:     in.Quantiles,
		Seed:          in.Seed,
	})
	if err != nil {
		if errors.Is(err, simulation.ErrForecastUnavailable) {
			log.Warn().Err(err).Msg("Burn-up forecast unavailable")
		}
		return nil, nil, err
	}

	var chart visuals.Chart
	if in.Chart {
		chart = visuals.ForecastChart(result)
	}
	res, err := textResult(result, chart)
	return res, nil, err
}
