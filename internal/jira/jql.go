package jira

import (
	"fmt"
	"strings"
)

// Criteria selects one set of issues.
type Criteria struct {
	Project          string   `json:"project,omitempty"`
	IssueTypes       []string `json:"issue_types,omitempty"`
	ValidResolutions []string `json:"valid_resolutions,omitempty"`
	JQL              string   `json:"jql,omitempty"`
	// Value tags every issue found by these criteria with the query attribute.
	Value string `json:"value,omitempty"`
}

// BuildJQL combines the criteria into one query. Unresolved issues always
// match the resolution filter.
func BuildJQL(c Criteria) string {
	var clauses []string
	if c.Project != "" {
		clauses = append(clauses, "project = "+quote(c.Project))
	}
	if len(c.IssueTypes) > 0 {
		clauses = append(clauses, "issuetype IN ("+quoteAll(c.IssueTypes)+")")
	}
	if len(c.ValidResolutions) > 0 {
		clauses = append(clauses, "(resolution IS EMPTY OR resolution IN ("+quoteAll(c.ValidResolutions)+"))")
	}
	if c.JQL != "" {
		clauses = append(clauses, "("+c.JQL+")")
	}
	return strings.Join(clauses, " AND ")
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return strings.Join(quoted, ", ")
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
