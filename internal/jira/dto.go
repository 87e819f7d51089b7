package jira

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	Key       string        `json:"key"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the standard fields plus every other returned field,
// raw, keyed by field id.
type FieldsDTO struct {
	Summary   string `json:"summary"`
	IssueType struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask"`
	} `json:"issuetype"`
	Status struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"status"`
	Resolution *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"resolution"`
	ResolutionDate string         `json:"resolutiondate"`
	Created        string         `json:"created"`
	Updated        string         `json:"updated"`
	IssueLinks     []IssueLinkDTO `json:"issuelinks,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps all of them in Extra.
func (f *FieldsDTO) UnmarshalJSON(data []byte) error {
	type plain FieldsDTO
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	*f = FieldsDTO(known)
	f.Extra = extra
	return nil
}

// MarshalJSON writes Extra back with the known fields on top.
func (f FieldsDTO) MarshalJSON() ([]byte, error) {
	type plain FieldsDTO
	known, err := json.Marshal(plain(f))
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(f.Extra)+8)
	for k, v := range f.Extra {
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// IssueLinkDTO is one entry of the issuelinks field. Exactly one of
// InwardIssue and OutwardIssue is set.
type IssueLinkDTO struct {
	Type struct {
		Name    string `json:"name"`
		Inward  string `json:"inward"`
		Outward string `json:"outward"`
	} `json:"type"`
	InwardIssue  *LinkedIssueDTO `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssueDTO `json:"outwardIssue,omitempty"`
}

// LinkedIssueDTO is the far end of an issue link.
type LinkedIssueDTO struct {
	Key string `json:"key"`
}

// ResolutionName is the resolution name, or "" when unresolved.
func (f FieldsDTO) ResolutionName() string {
	if f.Resolution == nil {
		return ""
	}
	return f.Resolution.Name
}

// Value renders field id as text. Objects contribute their name or value,
// lists are joined with ", ". Missing and null fields report false.
func (f FieldsDTO) Value(id string) (string, bool) {
	raw, ok := f.Extra[id]
	if !ok {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return "", false
	}
	s := renderValue(v)
	return s, s != ""
}

// Number returns field id as a number. Numeric strings are accepted.
func (f FieldsDTO) Number(id string) (float64, bool) {
	s, ok := f.Value(id)
	if !ok {
		return 0, false
	}
	return ParseNumber(s)
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"name", "value", "displayName", "key"} {
			if s, ok := t[key].(string); ok {
				return s
			}
		}
		return ""
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := renderValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// ParseNumber parses a size value as Jira renders it in changelogs.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	Histories []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	ToString   string `json:"toString"`
	FromString string `json:"fromString"`
	To         string `json:"to"`   // ID
	From       string `json:"from"` // ID
}

// Matches reports whether the item changes the field with the given id or
// display name.
func (i ItemDTO) Matches(id, name string) bool {
	if id != "" && i.FieldID != "" {
		return i.FieldID == id
	}
	return strings.EqualFold(i.Field, name) || (id != "" && strings.EqualFold(i.Field, id))
}

// FieldDTO is a field definition from /rest/api/2/field.
type FieldDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// ParseTime is a helper for the strict Jira time format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000-0700", s)
}
