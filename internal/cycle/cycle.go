package cycle

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a cycle step within the workflow.
type Kind string

const (
	// Backlog steps hold work that has not been committed to yet.
	Backlog Kind = "backlog"
	// Committed steps hold work in progress. Cycle time starts at the first of them.
	Committed Kind = "committed"
	// Complete steps hold finished work. Cycle time stops at the first of them.
	Complete Kind = "complete"
)

var (
	ErrEmpty          = errors.New("cycle has no steps")
	ErrDuplicateStep  = errors.New("duplicate cycle step name")
	ErrNoBacklogStep  = errors.New("cycle needs at least one backlog step")
	ErrNoCompleteStep = errors.New("cycle needs at least one complete step")
)

// ParseKind accepts the kind names used in workflow files. "accepted" is the
// legacy spelling of committed.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "backlog":
		return Backlog, nil
	case "committed", "accepted":
		return Committed, nil
	case "complete", "completed":
		return Complete, nil
	default:
		return "", fmt.Errorf("unknown step kind %q", s)
	}
}

// Step is a named stage in the workflow.
type Step struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Statuses []string `json:"statuses" yaml:"statuses"`
}

// Definition is the ordered, immutable set of cycle steps plus the reverse
// lookup from raw tracker status to step index.
type Definition struct {
	steps  []Step
	names  map[string]int
	lookup map[string]int
}

// NewDefinition validates steps and builds the status lookup. Status names are
// matched case-insensitively; when a status is listed under several steps the
// last one wins.
func NewDefinition(steps []Step) (*Definition, error) {
	if len(steps) == 0 {
		return nil, ErrEmpty
	}

	d := &Definition{
		steps:  make([]Step, len(steps)),
		names:  make(map[string]int, len(steps)),
		lookup: make(map[string]int),
	}

	hasBacklog, hasComplete := false, false
	for i, s := range steps {
		if _, dup := d.names[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStep, s.Name)
		}
		d.names[s.Name] = i

		statuses := make([]string, len(s.Statuses))
		copy(statuses, s.Statuses)
		d.steps[i] = Step{Name: s.Name, Kind: s.Kind, Statuses: statuses}

		for _, status := range statuses {
			d.lookup[strings.ToLower(status)] = i
		}

		switch s.Kind {
		case Backlog:
			hasBacklog = true
		case Complete:
			hasComplete = true
		}
	}

	if !hasBacklog {
		return nil, ErrNoBacklogStep
	}
	if !hasComplete {
		return nil, ErrNoCompleteStep
	}
	return d, nil
}

// Len returns the number of steps.
func (d *Definition) Len() int { return len(d.steps) }

// Step returns the step at index i.
func (d *Definition) Step(i int) Step { return d.steps[i] }

// Steps returns a copy of the ordered steps.
func (d *Definition) Steps() []Step {
	out := make([]Step, len(d.steps))
	copy(out, d.steps)
	return out
}

// Names returns the step names in cycle order.
func (d *Definition) Names() []string {
	out := make([]string, len(d.steps))
	for i, s := range d.steps {
		out[i] = s.Name
	}
	return out
}

// Kinds returns the step kinds in cycle order.
func (d *Definition) Kinds() []Kind {
	out := make([]Kind, len(d.steps))
	for i, s := range d.steps {
		out[i] = s.Kind
	}
	return out
}

// Lookup resolves a raw tracker status to a step index.
func (d *Definition) Lookup(status string) (int, bool) {
	idx, ok := d.lookup[strings.ToLower(status)]
	return idx, ok
}

// Index returns the index of the named step, or -1.
func (d *Definition) Index(name string) int {
	if idx, ok := d.names[name]; ok {
		return idx
	}
	return -1
}

// First returns the index of the first step of the given kind, or -1.
func (d *Definition) First(kind Kind) int {
	for i, s := range d.steps {
		if s.Kind == kind {
			return i
		}
	}
	return -1
}

// Last returns the index of the last step of the given kind, or -1.
func (d *Definition) Last(kind Kind) int {
	for i := len(d.steps) - 1; i >= 0; i-- {
		if d.steps[i].Kind == kind {
			return i
		}
	}
	return -1
}
