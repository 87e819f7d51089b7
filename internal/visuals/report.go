package visuals

import (
	"html/template"
	"io"
	"time"
)

// MermaidScript is the Mermaid build loaded by HTML reports.
const MermaidScript = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.min.js"

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 72rem; color: #222; }
section { margin-bottom: 3rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.Generated.Format "2006-01-02 15:04"}}</p>
{{range .Charts}}<section>
<h2>{{.Title}}</h2>
<pre class="mermaid">
{{.Body}}</pre>
</section>
{{end}}<script src="{{.Script}}"></script>
<script>mermaid.initialize({ startOnLoad: true });</script>
</body>
</html>
`))

// Report is a standalone HTML page of charts.
type Report struct {
	Title     string
	Generated time.Time
	Charts    []Chart
}

// Add appends the non-empty charts.
func (r *Report) Add(charts ...Chart) {
	for _, c := range charts {
		if c.Body != "" {
			r.Charts = append(r.Charts, c)
		}
	}
}

// Render writes the report as HTML.
func (r *Report) Render(w io.Writer) error {
	return reportTemplate.Execute(w, struct {
		*Report
		Script string
	}{r, MermaidScript})
}
