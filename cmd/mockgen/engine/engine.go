package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"flowcast/internal/eventlog"

	"gopkg.in/yaml.v3"
)

// Workflow is the status sequence every generated issue walks through.
var Workflow = []struct {
	Step   string
	Status string
	Kind   string
}{
	{"Backlog", "Open", "backlog"},
	{"Refinement", "Refinement", "backlog"},
	{"Build", "In Progress", "committed"},
	{"Done", "Done", "complete"},
}

// SizeAttribute is the attribute name under which sizes are generated.
const SizeAttribute = "StoryPoints"

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Seed         uint64
	Now          time.Time
}

var fibonacci = []float64{1, 2, 3, 5, 8, 13}

// Generate produces one issue arriving per day, the last one today, each
// moving through Workflow according to the scenario's cycle-time model.
func Generate(cfg GeneratorConfig) []eventlog.IssueHistory {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	histories := make([]eventlog.IssueHistory, 0, cfg.Count)
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("MOCK-%d", i+1)
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		k, lambda := 2.5, 9.5 // Mild: ~5 days in progress
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 12.0
			}
		case "drift":
			ratio := float64(i) / float64(cfg.Count)
			k = 2.5 - (1.7 * ratio)
			lambda = 9.5 + (2.5 * ratio)
		}

		var total float64
		if cfg.Distribution == "weibull" {
			total = weibullSample(rng, k, lambda)
		} else {
			total = 6.0 + rng.Float64()*5.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				total += 10 + rng.Float64()*15
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				total *= 2.0
			}
		}

		size := fibonacci[rng.IntN(len(fibonacci))]
		h := eventlog.IssueHistory{
			Key:         key,
			IssueType:   "Story",
			Summary:     fmt.Sprintf("Generated story %d", i+1),
			CurrentSize: eventlog.Float(size),
			SizeChanges: []eventlog.SizeChange{{Date: arrival, Size: eventlog.Float(size)}},
		}

		// Entry into each status at 0%, 15%, 40% and 100% of the total duration.
		for s, progress := range []float64{0, 0.15, 0.40, 1} {
			at := arrival.Add(time.Duration(total * progress * 24 * float64(time.Hour)))
			if at.After(cfg.Now) {
				break
			}
			h.StatusChanges = append(h.StatusChanges, eventlog.StatusChange{Date: at, Status: Workflow[s].Status})
			h.Status = Workflow[s].Status
		}
		if h.Status == "Done" {
			h.Resolution = "Fixed"
		}

		// Some stories get re-estimated once they are picked up.
		if len(h.StatusChanges) >= 3 && rng.Float64() < 0.25 {
			resized := fibonacci[min(rng.IntN(len(fibonacci))+1, len(fibonacci)-1)]
			h.SizeChanges = append(h.SizeChanges, eventlog.SizeChange{Date: h.StatusChanges[2].Date, Size: eventlog.Float(resized)})
			h.CurrentSize = eventlog.Float(resized)
		}

		histories = append(histories, h)
	}
	return histories
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// WorkflowDocument renders a workflow file matching the generated data.
func WorkflowDocument(project string) ([]byte, error) {
	steps := &yaml.Node{Kind: yaml.MappingNode}
	kinds := &yaml.Node{Kind: yaml.MappingNode}
	for _, w := range Workflow {
		steps.Content = append(steps.Content, scalar(w.Step), scalar(w.Status))
		kinds.Content = append(kinds.Content, scalar(w.Step), scalar(w.Kind))
	}
	criteria := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalar("Project"), scalar(project)}}
	attributes := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalar(SizeAttribute), scalar("customfield_10002")}}

	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("Criteria"), criteria,
		scalar("Workflow"), steps,
		scalar("Workflow StatusTypes Mapping"), kinds,
		scalar("Attributes"), attributes,
	}}
	return yaml.Marshal(doc)
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

// Save writes <name>.json with the histories and <name>_workflow.yaml.
func Save(outDir, name string, histories []eventlog.IssueHistory) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(histories, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, name+".json"), data, 0o644); err != nil {
		return err
	}

	workflow, err := WorkflowDocument("MOCK")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, name+"_workflow.yaml"), workflow, 0o644)
}
