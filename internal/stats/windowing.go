package stats

import (
	"fmt"
	"strings"
	"time"
)

// Bucket is the length of one aggregation period.
type Bucket string

const (
	Day   Bucket = "day"
	Week  Bucket = "week"
	Month Bucket = "month"
)

// ParseBucket accepts "day", "week", "month" and the pandas-style aliases
// "1D", "1W", "1M".
func ParseBucket(s string) (Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day", "daily", "d", "1d":
		return Day, nil
	case "week", "weekly", "w", "1w":
		return Week, nil
	case "month", "monthly", "m", "1m":
		return Month, nil
	default:
		return "", fmt.Errorf("unknown bucket %q", s)
	}
}

// AnalysisWindow defines the temporal context for an aggregation.
type AnalysisWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Bucket Bucket    `json:"bucket"`
}

// NewAnalysisWindow creates a new window with boundaries snapped to the bucket.
func NewAnalysisWindow(start, end time.Time, bucket Bucket) AnalysisWindow {
	if bucket == "" {
		bucket = Day
	}
	return AnalysisWindow{
		Start:  SnapToStart(start, bucket),
		End:    SnapToEnd(end, bucket),
		Bucket: bucket,
	}
}

// TrailingWindow is the window of the given number of days ending on end.
func TrailingWindow(days int, end time.Time, bucket Bucket) AnalysisWindow {
	return NewAnalysisWindow(end.AddDate(0, 0, -days), end, bucket)
}

// Contains reports whether t falls inside the window.
func (w AnalysisWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// TruncateDay drops the time of day, keeping the location.
func TruncateDay(t time.Time) time.Time {
	return SnapToStart(t, Day)
}

// SnapToStart normalizes a timestamp to the beginning of its bucket (0:00:00).
func SnapToStart(t time.Time, bucket Bucket) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Week:
		// Snap to Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday -> 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// SnapToEnd normalizes a timestamp to the very end of its bucket (23:59:59.999...).
func SnapToEnd(t time.Time, bucket Bucket) time.Time {
	if t.IsZero() {
		return t
	}
	return Advance(SnapToStart(t, bucket), bucket, 1).Add(-time.Nanosecond)
}

// Advance moves t forward by n whole buckets.
func Advance(t time.Time, bucket Bucket, n int) time.Time {
	switch bucket {
	case Month:
		return t.AddDate(0, n, 0)
	case Week:
		return t.AddDate(0, 0, 7*n)
	default:
		return t.AddDate(0, 0, n)
	}
}

// GenerateLabel returns a human-readable label for a bucket (e.g., "Jan 2024" or "2024-W01").
func GenerateLabel(t time.Time, bucket Bucket) string {
	switch bucket {
	case Month:
		return t.Format("Jan 2006")
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}
