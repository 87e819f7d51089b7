package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flowcast/internal/config"
	"flowcast/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflow = `
Criteria:
  Project: ABC
Workflow:
  Backlog: Open
  Doing: In Progress
  Done: Closed
Attributes:
  Team: customfield_1
`

func at(day int) time.Time {
	return time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC)
}

func histories() []eventlog.IssueHistory {
	mk := func(key string, size float64, days ...int) eventlog.IssueHistory {
		statuses := []string{"Open", "In Progress", "Closed"}
		h := eventlog.IssueHistory{Key: key, CurrentSize: eventlog.Float(size), Fields: map[string]string{"Team": "Red"}}
		for i, d := range days {
			h.StatusChanges = append(h.StatusChanges, eventlog.StatusChange{Status: statuses[i], Date: at(d)})
		}
		h.SizeChanges = []eventlog.SizeChange{{Date: at(days[0]), Size: eventlog.Float(size)}}
		return h
	}
	blocker := mk("ABC-1", 3, 1, 2, 4)
	blocker.Links = []eventlog.IssueLink{
		{Source: "ABC-1", OutwardLink: "blocks", Target: "ABC-2", InwardLink: "is blocked by", LinkType: "Blocks"},
	}
	return []eventlog.IssueHistory{
		blocker,
		mk("ABC-2", 5, 1, 3, 6),
		mk("ABC-3", 2, 2, 5),
		mk("ABC-4", 1, 3),
	}
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	s, err := config.ParseSettings([]byte(workflow))
	require.NoError(t, err)
	return s
}

func TestRunExtract_WritesOutputs(t *testing.T) {
	dir := t.TempDir()
	path := func(name string) string { return filepath.Join(dir, name) }

	opts := &extractOptions{
		output:              path("cycle.csv"),
		format:              "csv",
		cfd:                 path("cfd.csv"),
		cfdStacked:          path("cfd-stacked.csv"),
		scatterplot:         path("scatter.csv"),
		histogram:           path("histogram.csv"),
		percentiles:         path("percentiles.csv"),
		throughput:          path("throughput.csv"),
		throughputFrequency: "day",
		throughputWindow:    30,
		sizeHistory:         path("sizes.csv"),
		sizeMatrix:          path("size-matrix.csv"),
		links:               path("links.csv"),
		burnupForecast:      path("forecast.csv"),
		trials:              50,
		seed:                11,
		hasSeed:             true,
		report:              path("report.html"),
	}

	summary, err := runExtract(context.Background(), testSettings(t), histories(), opts, at(10), 2)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Issues)
	assert.Equal(t, 2, summary.Completed)
	require.NotNil(t, summary.Forecast)
	assert.Empty(t, summary.Warnings)
	assert.Len(t, summary.Outputs, 12)

	cycle, err := os.ReadFile(path("cycle.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(cycle)), "\n")
	assert.Equal(t, "ID\tLink\tName\tBacklog\tDoing\tDone\tType\tStatus\tResolution\tTeam", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ABC-1\t\t\t2024-03-01\t2024-03-02\t2024-03-04\t"))
	assert.True(t, strings.HasSuffix(lines[1], "\tRed"))

	tp, err := os.ReadFile(path("throughput.csv"))
	require.NoError(t, err)
	assert.Equal(t, "completed_timestamp\tcount\n2024-03-04\t1\n2024-03-05\t0\n2024-03-06\t1\n", string(tp))

	links, err := os.ReadFile(path("links.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Source\tOutwardLink\tTarget\tInwardLink\tLinkType\nABC-1\tblocks\tABC-2\tis blocked by\tBlocks\n", string(links))

	report, err := os.ReadFile(path("report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Burn-up Forecast")
}

func TestRunExtract_SizedJSON(t *testing.T) {
	dir := t.TempDir()
	opts := &extractOptions{
		src:                 source{sizeAttribute: "Team"},
		format:              "json",
		throughput:          filepath.Join(dir, "throughput.json"),
		throughputFrequency: "week",
		throughputWindow:    30,
	}

	summary, err := runExtract(context.Background(), testSettings(t), histories(), opts, at(10), 1)
	require.NoError(t, err)
	require.NotNil(t, summary.Throughput)
	assert.True(t, summary.Throughput.Sized)
	assert.Equal(t, 8.0, summary.Throughput.Sum())

	var decoded map[string]any
	data, err := os.ReadFile(opts.throughput)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "week", decoded["bucket"])
}

func TestRunExtract_ForecastUnavailableIsAWarning(t *testing.T) {
	dir := t.TempDir()
	opts := &extractOptions{
		format:              "csv",
		throughputFrequency: "day",
		throughputWindow:    30,
		burnupForecast:      filepath.Join(dir, "forecast.csv"),
	}
	open := []eventlog.IssueHistory{{Key: "ABC-1", StatusChanges: []eventlog.StatusChange{{Status: "Open", Date: at(1)}}}}

	summary, err := runExtract(context.Background(), testSettings(t), open, opts, at(10), 1)
	require.NoError(t, err)
	assert.Nil(t, summary.Forecast)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "forecast unavailable")
	assert.NoFileExists(t, opts.burnupForecast)
}

func TestRunExtract_InvalidFlags(t *testing.T) {
	settings := testSettings(t)
	for name, opts := range map[string]*extractOptions{
		"format":     {format: "xlsx", throughputFrequency: "day"},
		"frequency":  {format: "csv", throughputFrequency: "fortnight"},
		"window end": {format: "csv", throughputFrequency: "day", throughputWindowEnd: "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runExtract(context.Background(), settings, histories(), opts, at(10), 1)
			assert.Error(t, err)
		})
	}
}

func TestExtractOptions_Apply(t *testing.T) {
	opts := &extractOptions{quantiles: "0.5, 0.9", maxResults: 25, chartsFrom: "2024-03-02"}
	settings, err := opts.apply(testSettings(t))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.9}, settings.Quantiles())
	assert.Equal(t, 25, settings.MaxResults())
	from, to := settings.ChartsWindow()
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), from)
	assert.True(t, to.IsZero())

	_, err = (&extractOptions{quantiles: "0.5,high"}).apply(testSettings(t))
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestExtractCommand_FromInputFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("LOGS_FOLDER", filepath.Join(dir, "logs"))
	t.Setenv("JIRA_URL", "")

	cfgPath := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(workflow), 0o644))
	data, err := json.Marshal(histories())
	require.NoError(t, err)
	input := filepath.Join(dir, "issues.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))
	out := filepath.Join(dir, "cycle.csv")

	root := NewRootCommand()
	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetArgs([]string{"extract", cfgPath, out, "--input", input, "--percentiles", filepath.Join(dir, "p.csv")})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.FileExists(t, out)
	assert.FileExists(t, filepath.Join(dir, "p.csv"))
	assert.Contains(t, stderr.String(), "issues")
	assert.Contains(t, stderr.String(), "wrote")
}

func TestExtractCommand_UnknownPoints(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("LOGS_FOLDER", filepath.Join(dir, "logs"))

	cfgPath := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(workflow), 0o644))

	root := NewRootCommand()
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"extract", cfgPath, "--points", "StoryPoints"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "flowcast dev")
}
