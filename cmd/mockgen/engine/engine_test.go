package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flowcast/internal/config"
	"flowcast/internal/eventlog"
	"flowcast/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGenerate_Deterministic(t *testing.T) {
	cfg := GeneratorConfig{Scenario: "chaos", Distribution: "weibull", Count: 50, Seed: 42, Now: now}
	a := Generate(cfg)
	b := Generate(cfg)
	assert.Equal(t, a, b)
	assert.Len(t, a, 50)
}

func TestGenerate_Shape(t *testing.T) {
	for _, scenario := range []string{"mild", "chaos", "drift"} {
		t.Run(scenario, func(t *testing.T) {
			histories := Generate(GeneratorConfig{Scenario: scenario, Count: 120, Seed: 1, Now: now})
			done := 0
			for _, h := range histories {
				require.NotEmpty(t, h.StatusChanges, h.Key)
				assert.Equal(t, "Open", h.StatusChanges[0].Status)
				require.NotNil(t, h.CurrentSize)
				for i := 1; i < len(h.StatusChanges); i++ {
					assert.False(t, h.StatusChanges[i].Date.Before(h.StatusChanges[i-1].Date))
				}
				for _, c := range h.StatusChanges {
					assert.False(t, c.Date.After(now))
				}
				if h.Status == "Done" {
					done++
					assert.Equal(t, "Fixed", h.Resolution)
				}
			}
			assert.Positive(t, done)
		})
	}
}

func TestSave_RoundTripsThroughAnalysis(t *testing.T) {
	dir := t.TempDir()
	histories := Generate(GeneratorConfig{Count: 60, Seed: 3, Now: now})
	require.NoError(t, Save(dir, "MOCK", histories))

	settings, err := config.LoadSettings(filepath.Join(dir, "MOCK_workflow.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Backlog", "Refinement", "Build", "Done"}, settings.Cycle().Names())
	_, ok := settings.Attribute(SizeAttribute)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "MOCK.json"))
	require.NoError(t, err)
	var loaded []eventlog.IssueHistory
	require.NoError(t, json.Unmarshal(data, &loaded))
	require.Len(t, loaded, 60)

	table, _, err := stats.BuildTimelines(context.Background(), settings.Cycle(), loaded, now, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, table.Completed())
}
