package eventlog

import (
	"slices"
	"strings"
	"time"

	"flowcast/internal/jira"

	"github.com/rs/zerolog/log"
)

// Attribute maps an output column name to a Jira field.
type Attribute struct {
	Name    string `json:"name"`
	FieldID string `json:"field_id"`
	// FieldName is the display name used in changelogs. Defaults to FieldID.
	FieldName string `json:"field_name,omitempty"`
}

// TransformOptions controls how an issue DTO becomes an IssueHistory.
type TransformOptions struct {
	BaseURL    string
	Attributes []Attribute
	// Size names the attribute holding the issue size, e.g. story points.
	Size *Attribute
	// QueryValue is copied to every history produced with these options.
	QueryValue string
}

// TransformIssue converts a Jira issue and its changelog into an IssueHistory.
//
// The status list opens with the status the issue was created in, taken
// from the first recorded status change (or the current status when there
// was none). Resolution changes repeat the status the issue was in. The
// size list likewise opens with the size at creation.
func TransformIssue(dto jira.IssueDTO, opts TransformOptions) IssueHistory {
	h := IssueHistory{
		Key:        dto.Key,
		IssueType:  dto.Fields.IssueType.Name,
		Summary:    dto.Fields.Summary,
		Status:     dto.Fields.Status.Name,
		Resolution: dto.Fields.ResolutionName(),
		QueryValue: opts.QueryValue,
	}
	if opts.BaseURL != "" {
		h.URL = jira.BrowseURL(strings.TrimRight(opts.BaseURL, "/"), dto.Key)
	}

	for _, attr := range opts.Attributes {
		if v, ok := dto.Fields.Value(attr.FieldID); ok {
			if h.Fields == nil {
				h.Fields = make(map[string]string)
			}
			h.Fields[attr.Name] = v
		}
	}

	created, err := jira.ParseTime(dto.Fields.Created)
	if err != nil {
		log.Warn().Err(err).Str("issue", dto.Key).Msg("Issue has no parsable creation date")
	}

	var histories []jira.HistoryDTO
	type dated struct {
		at   time.Time
		item jira.HistoryDTO
	}
	if dto.Changelog != nil {
		ordered := make([]dated, 0, len(dto.Changelog.Histories))
		for _, hist := range dto.Changelog.Histories {
			ts, err := jira.ParseTime(hist.Created)
			if err != nil {
				log.Debug().Str("issue", dto.Key).Str("created", hist.Created).Msg("Skipping changelog entry with bad timestamp")
				continue
			}
			ordered = append(ordered, dated{at: ts, item: hist})
		}
		slices.SortStableFunc(ordered, func(a, b dated) int { return a.at.Compare(b.at) })
		for _, d := range ordered {
			histories = append(histories, d.item)
		}
	}

	h.StatusChanges = statusChanges(dto, histories, created)
	h.Links = issueLinks(dto)

	if opts.Size != nil {
		if v, ok := dto.Fields.Number(opts.Size.FieldID); ok {
			h.CurrentSize = Float(v)
		}
		h.SizeChanges = sizeChanges(histories, created, *opts.Size, h.CurrentSize)
	}
	return h
}

// issueLinks orients every link of dto so that an inward link points from
// the other issue to dto and an outward link from dto to the other issue.
func issueLinks(dto jira.IssueDTO) []IssueLink {
	var out []IssueLink
	for _, l := range dto.Fields.IssueLinks {
		link := IssueLink{
			OutwardLink: l.Type.Outward,
			InwardLink:  l.Type.Inward,
			LinkType:    l.Type.Name,
		}
		switch {
		case l.InwardIssue != nil:
			link.Source, link.Target = l.InwardIssue.Key, dto.Key
		case l.OutwardIssue != nil:
			link.Source, link.Target = dto.Key, l.OutwardIssue.Key
		default:
			continue
		}
		out = append(out, link)
	}
	return out
}

func isStatus(item jira.ItemDTO) bool {
	return strings.EqualFold(item.Field, "status")
}

func statusChanges(dto jira.IssueDTO, histories []jira.HistoryDTO, created time.Time) []StatusChange {
	last := dto.Fields.Status.Name
	for _, hist := range histories {
		if i := slices.IndexFunc(hist.Items, isStatus); i >= 0 {
			last = hist.Items[i].FromString
			break
		}
	}

	changes := []StatusChange{{Status: last, Date: created}}
	for _, hist := range histories {
		ts, _ := jira.ParseTime(hist.Created)
		for _, item := range hist.Items {
			switch {
			case isStatus(item):
				last = item.ToString
				changes = append(changes, StatusChange{Status: last, Date: ts})
			case strings.EqualFold(item.Field, "resolution"):
				changes = append(changes, StatusChange{Status: last, Date: ts})
			}
		}
	}
	return changes
}

func sizeChanges(histories []jira.HistoryDTO, created time.Time, size Attribute, current *float64) []SizeChange {
	name := size.FieldName
	if name == "" {
		name = size.FieldID
	}
	matches := func(item jira.ItemDTO) bool { return item.Matches(size.FieldID, name) }

	initial := current
	for _, hist := range histories {
		if i := slices.IndexFunc(hist.Items, matches); i >= 0 {
			initial = parseSize(hist.Items[i].FromString)
			break
		}
	}

	changes := []SizeChange{{Date: created, Size: initial}}
	for _, hist := range histories {
		ts, _ := jira.ParseTime(hist.Created)
		for _, item := range hist.Items {
			if matches(item) {
				changes = append(changes, SizeChange{Date: ts, Size: parseSize(item.ToString)})
			}
		}
	}
	return changes
}

func parseSize(s string) *float64 {
	if v, ok := jira.ParseNumber(s); ok {
		return Float(v)
	}
	return nil
}
