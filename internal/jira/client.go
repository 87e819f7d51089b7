package jira

import (
	"context"
	"time"
)

// Client is the interface for interacting with Jira.
type Client interface {
	// SearchIssuesWithHistory runs a JQL search with the changelog expanded.
	// fields lists additional field ids to return next to the standard ones.
	SearchIssuesWithHistory(ctx context.Context, jql string, fields []string, startAt, maxResults int) (*SearchResponse, error)
	// GetFields lists the field definitions of the instance.
	GetFields(ctx context.Context) ([]FieldDTO, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string

	// Personal Access Token, sent as a Bearer token.
	Token string

	// Basic authentication.
	Username string
	Password string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Performance Settings
	RequestDelay time.Duration
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}

// BrowseURL is the web address of an issue.
func BrowseURL(baseURL, key string) string {
	return baseURL + "/browse/" + key
}
