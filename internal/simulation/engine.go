package simulation

import (
	"math"
	"math/rand/v2"
	"time"

	"flowcast/internal/stats"

	"github.com/rs/zerolog/log"
)

// maxPeriods stops a trial that cannot reach its target, e.g. when every
// positive sample is offset by negative ones.
const maxPeriods = 100000

// maxBuffer caps the pre-drawn sample batch.
const maxBuffer = 1 << 16

// Engine performs Monte Carlo burn-up simulations by resampling a historical
// throughput series with replacement.
type Engine struct {
	samples    []float64
	bucket     stats.Bucket
	rng        *rand.Rand
	maxPeriods int
}

// NewEngine creates an engine drawing from the per-period values of series.
func NewEngine(series stats.ThroughputSeries) *Engine {
	seed := uint64(time.Now().UnixNano())
	bucket := series.Bucket
	if bucket == "" {
		bucket = stats.Day
	}
	return &Engine{
		samples:    series.Values(),
		bucket:     bucket,
		rng:        rand.New(rand.NewPCG(seed, seed>>1)),
		maxPeriods: maxPeriods,
	}
}

// SetSeed makes subsequent runs reproducible.
func (e *Engine) SetSeed(seed int64) {
	e.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// TrialPoint is the cumulative value of one trial at the end of a period.
type TrialPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Trial is one simulated burn-up path, starting at the current snapshot.
type Trial struct {
	Points   []TrialPoint `json:"points"`
	Finished bool         `json:"finished"`
}

// FinishDate is the date of the trial's last point.
func (t Trial) FinishDate() time.Time {
	if len(t.Points) == 0 {
		return time.Time{}
	}
	return t.Points[len(t.Points)-1].Date
}

// Clamp caps every value of the trial at target.
func (t Trial) Clamp(target float64) {
	for i := range t.Points {
		if t.Points[i].Value > target {
			t.Points[i].Value = target
		}
	}
}

// sampler hands out pre-drawn samples and refills the batch when it runs dry.
// The batch is shared by all trials of a run.
type sampler struct {
	e      *Engine
	size   int
	buffer []float64
	idx    int
}

func (s *sampler) next() float64 {
	if s.idx >= len(s.buffer) {
		if s.buffer == nil {
			s.buffer = make([]float64, s.size)
		}
		for i := range s.buffer {
			s.buffer[i] = s.e.samples[s.e.rng.IntN(len(s.e.samples))]
		}
		s.idx = 0
	}
	s.idx++
	return s.buffer[s.idx-1]
}

// RunBurnup simulates trials paths from (startDate, start) that advance one
// throughput period per draw until they reach target. It fails with
// ErrNoThroughput or ErrZeroThroughput when there is nothing to sample.
func (e *Engine) RunBurnup(start, target float64, startDate time.Time, trials int) ([]Trial, error) {
	if len(e.samples) == 0 {
		return nil, ErrNoThroughput
	}
	mean := stats.Mean(e.samples)
	if mean*float64(len(e.samples)) <= 0 {
		return nil, ErrZeroThroughput
	}

	size := 1
	if guess := 2 * (target - start) / mean; guess > 1 && !math.IsInf(guess, 0) {
		size = int(min(guess, maxBuffer))
	}
	s := &sampler{e: e, size: size}

	out := make([]Trial, trials)
	for t := range out {
		date, value := startDate, start
		points := []TrialPoint{{Date: date, Value: value}}
		finished := true
		for value < target {
			if len(points) > e.maxPeriods {
				finished = false
				log.Warn().Int("trial", t).Float64("value", value).Float64("target", target).Msg("Trial did not reach target, giving up")
				break
			}
			date = stats.Advance(date, e.bucket, 1)
			value += s.next()
			points = append(points, TrialPoint{Date: date, Value: value})
		}
		out[t] = Trial{Points: points, Finished: finished}
	}
	return out, nil
}
