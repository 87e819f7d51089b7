package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"flowcast/internal/visuals"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// textResult renders data as indented JSON, followed by the chart when one
// was drawn.
func textResult(data any, chart visuals.Chart) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, err
	}
	res := &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(out)}}}
	if md := chart.Markdown(); md != "" {
		res.Content = append(res.Content, &mcp.TextContent{Text: md})
	}
	return res, nil
}

// parseDate accepts YYYY-MM-DD. Empty yields the zero time.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q is not a YYYY-MM-DD date", field, s)
	}
	return t, nil
}

func validQuantiles(qs []float64) error {
	for _, q := range qs {
		if q < 0 || q > 1 {
			return fmt.Errorf("quantile %v is outside [0, 1]", q)
		}
	}
	return nil
}
