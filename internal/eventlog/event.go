package eventlog

import "time"

// StatusChange records an issue entering a tracker status.
type StatusChange struct {
	// Status is the raw tracker status name (e.g. "In Progress").
	Status string `json:"status" cbor:"1,keyasint"`
	// Date is when the issue entered the status.
	Date time.Time `json:"date" cbor:"2,keyasint"`
}

// SizeChange records the size (e.g. story points) an issue carried from Date on.
// A nil Size means the field was cleared.
type SizeChange struct {
	Date time.Time `json:"date" cbor:"1,keyasint"`
	Size *float64  `json:"size,omitempty" cbor:"2,keyasint,omitempty"`
}

// IssueLink is a directed relationship between two issues, oriented from
// Source to Target along the outward description of the link type.
type IssueLink struct {
	Source      string `json:"source" cbor:"1,keyasint"`
	OutwardLink string `json:"outwardLink,omitempty" cbor:"2,keyasint,omitempty"`
	Target      string `json:"target" cbor:"3,keyasint"`
	InwardLink  string `json:"inwardLink,omitempty" cbor:"4,keyasint,omitempty"`
	LinkType    string `json:"linkType,omitempty" cbor:"5,keyasint,omitempty"`
}

// IssueHistory is everything the analytics need to know about one issue, as
// materialised by the query layer. Both change lists are ordered oldest first.
type IssueHistory struct {
	// Key is the tracker key (e.g., PROJ-123).
	Key        string `json:"key" cbor:"1,keyasint"`
	URL        string `json:"url,omitempty" cbor:"2,keyasint,omitempty"`
	IssueType  string `json:"issueType,omitempty" cbor:"3,keyasint,omitempty"`
	Summary    string `json:"summary,omitempty" cbor:"4,keyasint,omitempty"`
	Status     string `json:"status,omitempty" cbor:"5,keyasint,omitempty"`
	Resolution string `json:"resolution,omitempty" cbor:"6,keyasint,omitempty"`

	// CurrentSize is the size the issue carries right now, if any.
	CurrentSize *float64 `json:"currentSize,omitempty" cbor:"7,keyasint,omitempty"`

	// Fields holds configured attribute values keyed by attribute name.
	Fields map[string]string `json:"fields,omitempty" cbor:"8,keyasint,omitempty"`
	// QueryValue is the value of the query attribute for the criteria that found the issue.
	QueryValue string `json:"queryValue,omitempty" cbor:"9,keyasint,omitempty"`

	StatusChanges []StatusChange `json:"statusChanges" cbor:"10,keyasint"`
	SizeChanges   []SizeChange   `json:"sizeChanges,omitempty" cbor:"11,keyasint,omitempty"`

	Links []IssueLink `json:"links,omitempty" cbor:"12,keyasint,omitempty"`
}

// Links gathers the links of every history, in input order.
func Links(histories []IssueHistory) []IssueLink {
	var out []IssueLink
	for _, h := range histories {
		out = append(out, h.Links...)
	}
	return out
}

// Float returns a pointer to v. Handy for building sizes.
func Float(v float64) *float64 {
	return &v
}
