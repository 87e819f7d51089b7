package stats

import (
	"slices"
	"time"

	"flowcast/internal/eventlog"
)

// SizeInterval is a span of whole days during which an issue carried one size.
// Intervals of an issue are contiguous: each To is the next interval's From.
type SizeInterval struct {
	Key  string    `json:"key"`
	From time.Time `json:"fromDate"`
	To   time.Time `json:"toDate"`
	Size *float64  `json:"size,omitempty"`
}

// ReconstructSizeIntervals turns an issue's size changes into day-truncated
// intervals. The last interval runs until now.
//
// When there is exactly one interval and the issue currently has a size, that
// size replaces the recorded one: trackers do not emit a change for a size set
// at creation time.
func ReconstructSizeIntervals(key string, changes []eventlog.SizeChange, current *float64, now time.Time) []SizeInterval {
	if len(changes) == 0 {
		return nil
	}

	ordered := slices.Clone(changes)
	slices.SortStableFunc(ordered, func(a, b eventlog.SizeChange) int {
		return a.Date.Compare(b.Date)
	})

	intervals := make([]SizeInterval, len(ordered))
	for i, c := range ordered {
		to := now
		if i+1 < len(ordered) {
			to = ordered[i+1].Date
		}
		intervals[i] = SizeInterval{
			Key:  key,
			From: TruncateDay(c.Date),
			To:   TruncateDay(to),
			Size: c.Size,
		}
	}

	if len(intervals) == 1 && current != nil {
		v := *current
		intervals[0].Size = &v
	}
	return intervals
}

// dayNumber is the count of calendar days since the Unix epoch for the civil
// date of t in its own location.
func dayNumber(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func dayFromNumber(n int64) time.Time {
	return time.Unix(n*86400, 0).UTC()
}

type sizeCell struct {
	key string
	day int64
}

type sizeValue struct {
	v  float64
	ok bool
}

// SizeMatrix is a complete day × issue table of sizes. Each day holds the
// size each issue carried at the end of that day; days on which no issue had
// a recorded size repeat the previous day.
type SizeMatrix struct {
	first  int64
	keys   []string
	index  map[string]int
	values [][]sizeValue // [day][key]
}

// BuildSizeMatrix expands intervals from all issues into a SizeMatrix in a
// single pass over a sparse (issue, day) map. An interval covers its From day
// up to, but not including, its To day; an issue's last interval also covers
// its To day. A size change therefore takes effect on the day it happened,
// and of several changes on one day the last one holds.
func BuildSizeMatrix(intervals []SizeInterval) *SizeMatrix {
	m := &SizeMatrix{index: make(map[string]int)}
	if len(intervals) == 0 {
		return m
	}

	lastOf := make(map[string]time.Time)
	for _, iv := range intervals {
		if prev, ok := lastOf[iv.Key]; !ok || !iv.From.Before(prev) {
			lastOf[iv.Key] = iv.From
		}
	}

	cells := make(map[sizeCell]*float64)
	present := make(map[int64]bool)
	minDay, maxDay := int64(0), int64(0)
	seen := false

	for _, iv := range intervals {
		from, to := dayNumber(iv.From), dayNumber(iv.To)
		if iv.From.Equal(lastOf[iv.Key]) {
			to++
		}
		for d := from; d < to; d++ {
			cells[sizeCell{key: iv.Key, day: d}] = iv.Size
			present[d] = true
			if !seen || d < minDay {
				minDay = d
			}
			if !seen || d > maxDay {
				maxDay = d
			}
			seen = true
		}
		if _, ok := m.index[iv.Key]; !ok {
			m.index[iv.Key] = -1
			m.keys = append(m.keys, iv.Key)
		}
	}

	SortIssueKeys(m.keys)
	for i, k := range m.keys {
		m.index[k] = i
	}
	if !seen {
		return m
	}

	m.first = minDay
	m.values = make([][]sizeValue, maxDay-minDay+1)
	for d := minDay; d <= maxDay; d++ {
		row := make([]sizeValue, len(m.keys))
		if present[d] {
			for i, k := range m.keys {
				if size, ok := cells[sizeCell{key: k, day: d}]; ok && size != nil {
					row[i] = sizeValue{v: *size, ok: true}
				}
			}
		} else {
			copy(row, m.values[d-minDay-1])
		}
		m.values[d-minDay] = row
	}
	return m
}

// Keys returns the issue keys (columns), sorted by project and issue number.
func (m *SizeMatrix) Keys() []string {
	return slices.Clone(m.keys)
}

// Days returns the calendar days (rows) covered by the matrix, as UTC midnights.
func (m *SizeMatrix) Days() []time.Time {
	out := make([]time.Time, len(m.values))
	for i := range m.values {
		out[i] = dayFromNumber(m.first + int64(i))
	}
	return out
}

// Empty reports whether the matrix holds no days.
func (m *SizeMatrix) Empty() bool {
	return m == nil || len(m.values) == 0
}

// Value returns the size of the key at column k on row d.
func (m *SizeMatrix) Value(d, k int) (float64, bool) {
	c := m.values[d][k]
	return c.v, c.ok
}

// SizeOn returns the size key carried on day. Days after the last row use the
// last row; days before the first row, unknown keys and null sizes report false.
func (m *SizeMatrix) SizeOn(key string, day time.Time) (float64, bool) {
	if m.Empty() {
		return 0, false
	}
	k, ok := m.index[key]
	if !ok {
		return 0, false
	}
	d := dayNumber(day) - m.first
	if d < 0 {
		return 0, false
	}
	if d >= int64(len(m.values)) {
		d = int64(len(m.values)) - 1
	}
	c := m.values[d][k]
	return c.v, c.ok
}
