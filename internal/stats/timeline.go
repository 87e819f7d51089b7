package stats

import (
	"context"
	"runtime"
	"slices"
	"time"

	"flowcast/internal/cycle"
	"flowcast/internal/eventlog"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// IssueTimeline is one row of the cycle table: issue metadata plus the first
// entry date of every cycle step after backward-move correction.
type IssueTimeline struct {
	Key        string            `json:"key"`
	URL        string            `json:"url,omitempty"`
	IssueType  string            `json:"issue_type,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Status     string            `json:"status,omitempty"`
	Resolution string            `json:"resolution,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	QueryValue string            `json:"query_value,omitempty"`
	Size       *float64          `json:"size,omitempty"`

	// StepDates is indexed by cycle step. A zero time means the step was
	// never entered, or its date was wiped by a later backward move.
	StepDates []time.Time `json:"step_dates"`

	CycleTime   *time.Duration `json:"cycle_time,omitempty"`
	CompletedAt *time.Time     `json:"completed_timestamp,omitempty"`
}

// StepDate returns the entry date of step i, if set.
func (t IssueTimeline) StepDate(i int) (time.Time, bool) {
	if i < 0 || i >= len(t.StepDates) || t.StepDates[i].IsZero() {
		return time.Time{}, false
	}
	return t.StepDates[i], true
}

// CycleDays returns the cycle time in fractional days.
func (t IssueTimeline) CycleDays() (float64, bool) {
	if t.CycleTime == nil {
		return 0, false
	}
	return t.CycleTime.Hours() / 24, true
}

// TimelineTable is the per-issue cycle table.
type TimelineTable struct {
	Steps []string        `json:"steps"`
	Kinds []cycle.Kind    `json:"kinds"`
	Rows  []IssueTimeline `json:"rows"`
}

// NewTimelineTable creates an empty table shaped for def.
func NewTimelineTable(def *cycle.Definition, rows []IssueTimeline) TimelineTable {
	return TimelineTable{Steps: def.Names(), Kinds: def.Kinds(), Rows: rows}
}

// Completed returns the rows that have a cycle time.
func (tt TimelineTable) Completed() []IssueTimeline {
	var out []IssueTimeline
	for _, r := range tt.Rows {
		if r.CompletedAt != nil && r.CycleTime != nil {
			out = append(out, r)
		}
	}
	return out
}

// ReconstructTimeline derives the step entry vector and cycle time for one issue.
//
// Each status change keeps only the first entry into its step, and wipes
// every later step that already has a date: a move backwards invalidates
// downstream progress. Statuses that do not map to a step are skipped.
func ReconstructTimeline(def *cycle.Definition, h eventlog.IssueHistory) IssueTimeline {
	row := IssueTimeline{
		Key:        h.Key,
		URL:        h.URL,
		IssueType:  h.IssueType,
		Summary:    h.Summary,
		Status:     h.Status,
		Resolution: h.Resolution,
		Fields:     h.Fields,
		QueryValue: h.QueryValue,
		Size:       h.CurrentSize,
		StepDates:  make([]time.Time, def.Len()),
	}

	changes := slices.Clone(h.StatusChanges)
	slices.SortStableFunc(changes, func(a, b eventlog.StatusChange) int {
		return a.Date.Compare(b.Date)
	})

	for _, change := range changes {
		idx, ok := def.Lookup(change.Status)
		if !ok {
			log.Debug().Str("issue", h.Key).Str("status", change.Status).Msg("Transitioned to unknown status")
			continue
		}

		if row.StepDates[idx].IsZero() {
			row.StepDates[idx] = change.Date
		}

		for later := idx + 1; later < len(row.StepDates); later++ {
			if !row.StepDates[later].IsZero() {
				log.Debug().
					Str("issue", h.Key).
					Str("step", def.Step(idx).Name).
					Str("wiped", def.Step(later).Name).
					Msg("Moved backwards, wiping date for subsequent step")
				row.StepDates[later] = time.Time{}
			}
		}
	}

	var accepted, completed time.Time
	for i, date := range row.StepDates {
		if date.IsZero() {
			continue
		}
		switch def.Step(i).Kind {
		case cycle.Committed:
			if accepted.IsZero() {
				accepted = date
			}
		case cycle.Complete:
			if completed.IsZero() {
				completed = date
			}
		}
	}

	if !accepted.IsZero() && !completed.IsZero() {
		ct := completed.Sub(accepted)
		row.CycleTime = &ct
		row.CompletedAt = &completed
	}
	return row
}

// BuildTimelines reconstructs every issue's timeline and size intervals. Issues
// are independent, so the work is spread over workers goroutines; output order
// matches input order. workers <= 0 uses GOMAXPROCS.
func BuildTimelines(ctx context.Context, def *cycle.Definition, histories []eventlog.IssueHistory, now time.Time, workers int) (TimelineTable, []SizeInterval, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rows := make([]IssueTimeline, len(histories))
	perIssue := make([][]SizeInterval, len(histories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range histories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h := histories[i]
			rows[i] = ReconstructTimeline(def, h)
			perIssue[i] = ReconstructSizeIntervals(h.Key, h.SizeChanges, h.CurrentSize, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TimelineTable{}, nil, err
	}

	var intervals []SizeInterval
	for _, iv := range perIssue {
		intervals = append(intervals, iv...)
	}

	log.Debug().Int("issues", len(rows)).Int("size_intervals", len(intervals)).Msg("Timelines reconstructed")
	return NewTimelineTable(def, rows), intervals, nil
}
