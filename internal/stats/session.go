package stats

import (
	"context"
	"sync"
	"time"

	"flowcast/internal/cycle"
	"flowcast/internal/eventlog"
)

// SessionOptions tunes an AnalysisSession.
type SessionOptions struct {
	// SizeColumn, when set, weights CFD and throughput by issue size.
	SizeColumn string
	Workers    int
}

// AnalysisSession orchestrates the analytical pipeline over one set of issue
// histories. Timelines and the size matrix are reconstructed once, on first
// use, and shared by every derived table.
type AnalysisSession struct {
	def       *cycle.Definition
	histories []eventlog.IssueHistory
	now       time.Time
	opts      SessionOptions

	once      sync.Once
	err       error
	table     TimelineTable
	intervals []SizeInterval
	sizes     *SizeMatrix
}

// NewAnalysisSession creates a session. now closes every open size interval.
func NewAnalysisSession(def *cycle.Definition, histories []eventlog.IssueHistory, now time.Time, opts SessionOptions) *AnalysisSession {
	return &AnalysisSession{
		def:       def,
		histories: histories,
		now:       now,
		opts:      opts,
	}
}

// Project reconstructs timelines and sizes. Later calls return the first result.
func (s *AnalysisSession) Project(ctx context.Context) error {
	s.once.Do(func() {
		s.table, s.intervals, s.err = BuildTimelines(ctx, s.def, s.histories, s.now, s.opts.Workers)
		if s.err == nil && s.opts.SizeColumn != "" {
			s.sizes = BuildSizeMatrix(s.intervals)
		}
	})
	return s.err
}

// Sized reports whether derived tables are size-weighted.
func (s *AnalysisSession) Sized() bool { return s.opts.SizeColumn != "" }

// Now is the reference time of the session.
func (s *AnalysisSession) Now() time.Time { return s.now }

// Table returns the cycle table. Project must have succeeded.
func (s *AnalysisSession) Table() TimelineTable { return s.table }

// SizeIntervals returns every issue's size intervals.
func (s *AnalysisSession) SizeIntervals() []SizeInterval { return s.intervals }

// Sizes returns the size matrix, or nil when the session is not sized.
func (s *AnalysisSession) Sizes() *SizeMatrix { return s.sizes }

// CFD builds the cumulative flow table.
func (s *AnalysisSession) CFD(ctx context.Context, stacked bool) (CFDTable, error) {
	return CalculateCFD(ctx, s.table, CFDOptions{
		Stacked:    stacked,
		SizeColumn: s.opts.SizeColumn,
		Sizes:      s.sizes,
		Workers:    s.opts.Workers,
	})
}

// Throughput aggregates the completions of the trailing window of days
// ending at end. A zero end uses the session's reference day.
func (s *AnalysisSession) Throughput(days int, end time.Time, bucket Bucket) ThroughputSeries {
	if end.IsZero() {
		end = s.now
	}
	return CalculateThroughput(s.table, TrailingWindow(days, end, bucket), s.Sized())
}
