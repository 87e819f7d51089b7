package stats

import (
	"math"
	"time"
)

// scalingFactor converts the average moving range into natural process
// limits for an individuals chart.
const scalingFactor = 2.66

// shiftRun is the number of consecutive points on one side of the average
// reported as a shift.
const shiftRun = 8

// SignalType classifies a point the process limits flag.
type SignalType string

const (
	SignalOutlier SignalType = "outlier"
	SignalShift   SignalType = "shift"
)

// Signal is a period showing special cause variation.
type Signal struct {
	Index       int        `json:"index"`
	Period      string     `json:"period"`
	Type        SignalType `json:"type"`
	Description string     `json:"description"`
}

// XmRResult is an individuals and moving range chart over a series.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	MovingRange []float64 `json:"moving_ranges,omitempty"`
	Signals     []Signal  `json:"signals,omitempty"`
}

// Stable reports whether no period falls outside the limits or shifts.
func (r XmRResult) Stable() bool { return len(r.Signals) == 0 }

// CalculateXmR computes natural process limits for values. labels name the
// points in the reported signals and may be shorter than values.
func CalculateXmR(values []float64, labels []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}

	result := XmRResult{Average: Mean(values)}

	if len(values) > 1 {
		result.MovingRange = make([]float64, len(values)-1)
		mrSum := 0.0
		for i := 1; i < len(values); i++ {
			mr := math.Abs(values[i] - values[i-1])
			result.MovingRange[i-1] = mr
			mrSum += mr
		}
		result.AmR = mrSum / float64(len(result.MovingRange))
	}

	result.UNPL = result.Average + scalingFactor*result.AmR
	result.LNPL = math.Max(0, result.Average-scalingFactor*result.AmR)
	result.Signals = detectSignals(values, labels, result)
	return result
}

// ThroughputStability charts the periods of a throughput series. A stable
// series is a sound sample for the burn-up simulation.
func ThroughputStability(series ThroughputSeries) XmRResult {
	labels := make([]string, len(series.Points))
	for i, p := range series.Points {
		labels[i] = p.Date.Format(time.DateOnly)
	}
	return CalculateXmR(series.Values(), labels)
}

func detectSignals(values []float64, labels []string, limits XmRResult) []Signal {
	label := func(i int) string {
		if i < len(labels) {
			return labels[i]
		}
		return ""
	}

	var signals []Signal
	for i, v := range values {
		switch {
		case v > limits.UNPL:
			signals = append(signals, Signal{Index: i, Period: label(i), Type: SignalOutlier,
				Description: "above the upper natural process limit"})
		case v < limits.LNPL:
			signals = append(signals, Signal{Index: i, Period: label(i), Type: SignalOutlier,
				Description: "below the lower natural process limit"})
		}
	}

	if len(values) < shiftRun {
		return signals
	}
	side, run := 0, 0
	for i, v := range values {
		current := 0
		if v > limits.Average {
			current = 1
		} else if v < limits.Average {
			current = -1
		}
		if current != 0 && current == side {
			run++
		} else {
			side, run = current, 1
		}
		if run == shiftRun && side != 0 {
			signals = append(signals, Signal{Index: i, Period: label(i), Type: SignalShift,
				Description: "eight consecutive periods on one side of the average"})
		}
	}
	return signals
}
