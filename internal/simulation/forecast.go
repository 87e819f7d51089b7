package simulation

import (
	"errors"
	"fmt"
	"time"

	"flowcast/internal/stats"

	"github.com/rs/zerolog/log"
)

// ErrForecastUnavailable is wrapped by every input condition under which no
// forecast can be made. Callers treat it as a displayable outcome.
var ErrForecastUnavailable = errors.New("forecast unavailable")

var (
	ErrEmptyCFD       = fmt.Errorf("%w: no cumulative flow data", ErrForecastUnavailable)
	ErrNoThroughput   = fmt.Errorf("%w: no completed items", ErrForecastUnavailable)
	ErrZeroThroughput = fmt.Errorf("%w: throughput sums to zero", ErrForecastUnavailable)
	ErrUnreachable    = fmt.Errorf("%w: no trial reached the target", ErrForecastUnavailable)
)

// DefaultQuantiles for finish dates.
var DefaultQuantiles = []float64{0.5, 0.75, 0.85, 0.95}

// DefaultTrials is the number of simulated paths per forecast.
const DefaultTrials = 100

// BurnupOptions tunes BurnupForecast. Zero values select the defaults.
type BurnupOptions struct {
	Trials int
	// Target overrides the amount of work to finish. Defaults to the maximum
	// of the backlog column.
	Target *float64
	// BacklogColumn and DoneColumn name cycle steps. They default to the
	// first and last CFD column; named steps get the sized suffix when the
	// throughput is sized.
	BacklogColumn string
	DoneColumn    string
	Quantiles     []float64
	Seed          *int64
}

// FinishDate is a finish-date quantile.
type FinishDate struct {
	Quantile float64   `json:"quantile"`
	Date     time.Time `json:"date"`
}

// BurnupResult is the outcome of a burn-up forecast.
type BurnupResult struct {
	BacklogColumn string       `json:"backlog_column"`
	DoneColumn    string       `json:"done_column"`
	Target        float64      `json:"target"`
	StartValue    float64      `json:"start_value"`
	StartDate     time.Time    `json:"start_date"`
	FinishDates   []FinishDate `json:"finish_dates"`
	// Unfinished counts the trials given up before reaching the target.
	// They are left out of FinishDates.
	Unfinished int     `json:"unfinished_trials,omitempty"`
	Trials     []Trial `json:"-"`
}

// BurnupForecast projects when the done column of cfd will reach the target
// by resampling throughput. It returns an error wrapping
// ErrForecastUnavailable when the inputs are degenerate.
func BurnupForecast(cfd stats.CFDTable, throughput stats.ThroughputSeries, opts BurnupOptions) (*BurnupResult, error) {
	if cfd.Empty() || len(cfd.Columns) == 0 {
		return nil, ErrEmptyCFD
	}
	if throughput.Empty() {
		return nil, ErrNoThroughput
	}

	backlog, err := resolveColumn(cfd, opts.BacklogColumn, cfd.Columns[0], throughput.Sized)
	if err != nil {
		return nil, err
	}
	done, err := resolveColumn(cfd, opts.DoneColumn, cfd.Columns[len(cfd.Columns)-1], throughput.Sized)
	if err != nil {
		return nil, err
	}

	target, _ := cfd.Max(backlog)
	if opts.Target != nil {
		target = *opts.Target
	}
	start, _ := cfd.Max(done)
	startDate := cfd.LastDate()

	trials := opts.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}
	quantiles := opts.Quantiles
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}

	engine := NewEngine(throughput)
	if opts.Seed != nil {
		engine.SetSeed(*opts.Seed)
	}
	paths, err := engine.RunBurnup(start, target, startDate, trials)
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		p.Clamp(target)
	}
	finishDates, unfinished := finishQuantiles(paths, quantiles, startDate.Location())
	if finishDates == nil {
		return nil, ErrUnreachable
	}

	result := &BurnupResult{
		BacklogColumn: backlog,
		DoneColumn:    done,
		Target:        target,
		StartValue:    start,
		StartDate:     startDate,
		FinishDates:   finishDates,
		Unfinished:    unfinished,
		Trials:        paths,
	}

	log.Debug().
		Str("backlog", backlog).
		Str("done", done).
		Float64("target", target).
		Float64("start", start).
		Int("trials", trials).
		Int("unfinished", unfinished).
		Msg("Burn-up forecast complete")
	return result, nil
}

// finishQuantiles reduces the finish dates of the finished trials to the
// requested quantiles, day-truncated in loc. It returns nil when no trial
// finished, along with the number of unfinished trials.
func finishQuantiles(paths []Trial, quantiles []float64, loc *time.Location) ([]FinishDate, int) {
	var finish []float64
	unfinished := 0
	for _, p := range paths {
		if !p.Finished {
			unfinished++
			continue
		}
		finish = append(finish, float64(p.FinishDate().Unix()))
	}
	if len(finish) == 0 {
		return nil, unfinished
	}

	out := make([]FinishDate, 0, len(quantiles))
	for _, q := range quantiles {
		secs := stats.Quantile(finish, q)
		date := time.Unix(int64(secs), 0).In(loc)
		out = append(out, FinishDate{Quantile: q, Date: stats.TruncateDay(date)})
	}
	return out, unfinished
}

func resolveColumn(cfd stats.CFDTable, name, fallback string, sized bool) (string, error) {
	if name == "" {
		return fallback, nil
	}
	if sized {
		name += stats.SizedSuffix
	}
	if cfd.ColumnIndex(name) < 0 {
		return "", fmt.Errorf("unknown CFD column %q", name)
	}
	return name, nil
}
