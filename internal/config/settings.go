package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"flowcast/internal/cycle"
	"flowcast/internal/eventlog"
	"flowcast/internal/jira"
	"flowcast/internal/stats"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultMaxResults caps each query when the file sets no limit.
const DefaultMaxResults = 1000

// Connection is the optional connection section of a workflow file.
type Connection struct {
	Domain   string `json:"domain,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
	Token    string `json:"-"`
}

// Settings is the immutable analysis configuration read from a workflow file.
// Copies are made with the With* methods.
type Settings struct {
	connection     Connection
	queries        []jira.Criteria
	queryAttribute string
	attributes     []eventlog.Attribute
	cycle          *cycle.Definition
	quantiles      []float64
	maxResults     int
	cacheJira      bool
	chartsFrom     time.Time
	chartsTo       time.Time
}

func (s Settings) Connection() Connection { return s.connection }

// Queries returns the issue criteria, one search per entry.
func (s Settings) Queries() []jira.Criteria { return slices.Clone(s.queries) }

// QueryAttribute is the column that receives each criteria's value, if any.
func (s Settings) QueryAttribute() string { return s.queryAttribute }

// Attributes lists extra fields in file order.
func (s Settings) Attributes() []eventlog.Attribute { return slices.Clone(s.attributes) }

// Attribute looks up an attribute by name.
func (s Settings) Attribute(name string) (eventlog.Attribute, bool) {
	for _, a := range s.attributes {
		if a.Name == name {
			return a, true
		}
	}
	return eventlog.Attribute{}, false
}

func (s Settings) Cycle() *cycle.Definition { return s.cycle }

func (s Settings) Quantiles() []float64 { return slices.Clone(s.quantiles) }

func (s Settings) MaxResults() int { return s.maxResults }

// CacheJira reports whether query results are cached between runs.
func (s Settings) CacheJira() bool { return s.cacheJira }

// ChartsWindow bounds the dates drawn in charts. Zero values are open.
func (s Settings) ChartsWindow() (from, to time.Time) { return s.chartsFrom, s.chartsTo }

// WithQuantiles returns a copy using quantiles.
func (s Settings) WithQuantiles(quantiles []float64) Settings {
	s.quantiles = slices.Clone(quantiles)
	return s
}

// WithMaxResults returns a copy fetching at most n issues per query.
func (s Settings) WithMaxResults(n int) Settings {
	s.maxResults = n
	return s
}

// WithChartsWindow returns a copy drawing charts between from and to.
func (s Settings) WithChartsWindow(from, to time.Time) Settings {
	s.chartsFrom, s.chartsTo = from, to
	return s
}

// HydrateRequest describes the issue fetch for these settings.
func (s Settings) HydrateRequest(sizeAttribute string) eventlog.HydrateRequest {
	return eventlog.HydrateRequest{
		Queries:       s.Queries(),
		Attributes:    s.Attributes(),
		SizeAttribute: sizeAttribute,
		MaxResults:    s.maxResults,
		UseCache:      s.cacheJira,
	}
}

// LoadSettings reads a workflow file. Files ending in .json or .jsonc may
// contain comments and trailing commas.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	return ParseSettings(data)
}

// ParseSettings parses a workflow document. Keys are case-insensitive.
//
// Without a "workflow statustypes mapping" section the first workflow step
// is the backlog, the last is complete, and everything between is committed.
func ParseSettings(data []byte) (Settings, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return Settings{}, fmt.Errorf("%w: document must be a mapping", ErrConfig)
	}
	root := doc.Content[0]

	s := Settings{
		quantiles:  slices.Clone(stats.DefaultQuantiles),
		maxResults: DefaultMaxResults,
	}
	var err error

	if n := lookup(root, "connection"); n != nil {
		if s.connection, err = parseConnection(n); err != nil {
			return Settings{}, err
		}
	}

	if n := lookup(root, "queries"); n != nil {
		if s.queryAttribute, err = scalar(lookup(n, "attribute")); err != nil {
			return Settings{}, err
		}
		list := lookup(n, "criteria")
		if list == nil || list.Kind != yaml.SequenceNode {
			return Settings{}, fmt.Errorf("%w: `Queries` needs a `Criteria` list", ErrConfig)
		}
		for _, item := range list.Content {
			c, err := parseCriteria(item)
			if err != nil {
				return Settings{}, err
			}
			s.queries = append(s.queries, c)
		}
	}
	if n := lookup(root, "criteria"); n != nil {
		c, err := parseCriteria(n)
		if err != nil {
			return Settings{}, err
		}
		s.queries = append(s.queries, c)
	}
	if len(s.queries) == 0 {
		return Settings{}, fmt.Errorf("%w: no `Criteria` or `Queries` section found", ErrConfig)
	}

	if s.cycle, err = parseWorkflow(lookup(root, "workflow"), lookup(root, "workflow statustypes mapping")); err != nil {
		return Settings{}, err
	}

	if n := lookup(root, "attributes"); n != nil {
		pairs, err := mappingPairs(n, "attributes")
		if err != nil {
			return Settings{}, err
		}
		for _, p := range pairs {
			id, err := scalar(p.value)
			if err != nil {
				return Settings{}, err
			}
			s.attributes = append(s.attributes, eventlog.Attribute{Name: p.key, FieldID: id})
		}
	}

	if n := lookup(root, "quantiles"); n != nil {
		var qs []float64
		if err := decodeList(n, &qs); err != nil {
			return Settings{}, err
		}
		for _, q := range qs {
			if q < 0 || q > 1 {
				return Settings{}, fmt.Errorf("%w: quantile %v is outside [0, 1]", ErrConfig, q)
			}
		}
		s.quantiles = qs
	}

	if n := lookup(root, "max results"); n != nil {
		if err := n.Decode(&s.maxResults); err != nil {
			return Settings{}, fmt.Errorf("%w: `Max Results`: %v", ErrConfig, err)
		}
	}
	if n := lookup(root, "cache jira"); n != nil {
		if err := n.Decode(&s.cacheJira); err != nil {
			return Settings{}, fmt.Errorf("%w: `Cache Jira`: %v", ErrConfig, err)
		}
	}
	if s.chartsFrom, err = parseDate(lookup(root, "charts from")); err != nil {
		return Settings{}, err
	}
	if s.chartsTo, err = parseDate(lookup(root, "charts to")); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func parseConnection(n *yaml.Node) (Connection, error) {
	var c Connection
	var err error
	for key, dst := range map[string]*string{"domain": &c.Domain, "username": &c.Username, "password": &c.Password, "token": &c.Token} {
		if *dst, err = scalar(lookup(n, key)); err != nil {
			return Connection{}, err
		}
	}
	return c, nil
}

func parseCriteria(n *yaml.Node) (jira.Criteria, error) {
	if n.Kind != yaml.MappingNode {
		return jira.Criteria{}, fmt.Errorf("%w: criteria must be a mapping (line %d)", ErrConfig, n.Line)
	}
	var c jira.Criteria
	var err error
	if c.Project, err = scalar(lookup(n, "project")); err != nil {
		return c, err
	}
	if c.JQL, err = scalar(lookup(n, "jql")); err != nil {
		return c, err
	}
	if c.Value, err = scalar(lookup(n, "value")); err != nil {
		return c, err
	}
	if v := lookup(n, "issue types"); v != nil {
		if err := decodeList(v, &c.IssueTypes); err != nil {
			return c, err
		}
	}
	if v := lookup(n, "valid resolutions"); v != nil {
		if err := decodeList(v, &c.ValidResolutions); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseWorkflow(workflow, mapping *yaml.Node) (*cycle.Definition, error) {
	if workflow == nil {
		return nil, fmt.Errorf("%w: `Workflow` section not found", ErrConfig)
	}
	pairs, err := mappingPairs(workflow, "workflow")
	if err != nil {
		return nil, err
	}
	if len(pairs) < 2 {
		return nil, fmt.Errorf("%w: `Workflow` section must contain at least two statuses", ErrConfig)
	}

	var kinds map[string]cycle.Kind
	if mapping != nil {
		kindPairs, err := mappingPairs(mapping, "workflow statustypes mapping")
		if err != nil {
			return nil, err
		}
		kinds = make(map[string]cycle.Kind, len(kindPairs))
		for _, p := range kindPairs {
			raw, err := scalar(p.value)
			if err != nil {
				return nil, err
			}
			k, err := cycle.ParseKind(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: step %q: %v", ErrConfig, p.key, err)
			}
			kinds[strings.ToLower(p.key)] = k
		}
	}

	steps := make([]cycle.Step, len(pairs))
	for i, p := range pairs {
		var statuses []string
		if err := decodeList(p.value, &statuses); err != nil {
			return nil, err
		}
		kind := cycle.Committed
		switch {
		case kinds != nil:
			k, ok := kinds[strings.ToLower(p.key)]
			if !ok {
				return nil, fmt.Errorf("%w: step %q has no status type mapping", ErrConfig, p.key)
			}
			kind = k
		case i == 0:
			kind = cycle.Backlog
		case i == len(pairs)-1:
			kind = cycle.Complete
		}
		steps[i] = cycle.Step{Name: p.key, Kind: kind, Statuses: statuses}
	}

	def, err := cycle.NewDefinition(steps)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return def, nil
}

func parseDate(n *yaml.Node) (time.Time, error) {
	s, err := scalar(n)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrConfig, s)
	}
	return t, nil
}

type pair struct {
	key   string
	value *yaml.Node
}

func mappingPairs(n *yaml.Node, section string) ([]pair, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: `%s` must be a mapping (line %d)", ErrConfig, section, n.Line)
	}
	out := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, pair{key: n.Content[i].Value, value: n.Content[i+1]})
	}
	return out, nil
}

// lookup finds a key of a mapping node, ignoring case. nil when absent.
func lookup(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if strings.EqualFold(n.Content[i].Value, key) {
			return n.Content[i+1]
		}
	}
	return nil
}

func scalar(n *yaml.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%w: expected a single value (line %d)", ErrConfig, n.Line)
	}
	return n.Value, nil
}

// decodeList accepts a single value or a list of values.
func decodeList[T any](n *yaml.Node, out *[]T) error {
	if n.Kind == yaml.SequenceNode {
		if err := n.Decode(out); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrConfig, n.Line, err)
		}
		return nil
	}
	var v T
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrConfig, n.Line, err)
	}
	*out = []T{v}
	return nil
}
