package stats

import (
	"slices"
	"strconv"
	"strings"
)

// ExtractProjectKey extracts the project key portion from a Jira issue key (e.g., "PROJ" from "PROJ-123").
func ExtractProjectKey(key string) string {
	if idx := strings.IndexByte(key, '-'); idx >= 0 {
		return key[:idx]
	}
	return key
}

// issueNumber returns the numeric part of an issue key, or -1 when there is none.
func issueNumber(key string) int {
	idx := strings.IndexByte(key, '-')
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return -1
	}
	return n
}

// SortIssueKeys orders keys by project, then by issue number, so PROJ-9 comes before PROJ-10.
func SortIssueKeys(keys []string) {
	slices.SortFunc(keys, func(a, b string) int {
		if c := strings.Compare(ExtractProjectKey(a), ExtractProjectKey(b)); c != 0 {
			return c
		}
		na, nb := issueNumber(a), issueNumber(b)
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
}
