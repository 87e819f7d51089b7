package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// standardFields are requested on every search.
var standardFields = []string{"summary", "issuetype", "status", "resolution", "resolutiondate", "created", "updated", "issuelinks"}

type dcClient struct {
	cfg        Config
	httpClient *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

// NewDataCenterClient creates a client for Jira Server / Data Center REST v2.
// A zero RequestDelay disables throttling.
func NewDataCenterClient(cfg Config) Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *dcClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}

	return entry.Value, true
}

func (c *dcClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Added to cache")
}

func (c *dcClient) throttle(ctx context.Context) error {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling Jira request")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. Prioritize Personal Access Token (PAT)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}

	// 2. Basic authentication
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		return
	}

	// 3. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http drops cookie values containing double quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

func (c *dcClient) SearchIssuesWithHistory(ctx context.Context, jql string, fields []string, startAt, maxResults int) (*SearchResponse, error) {
	requested := append(append([]string(nil), standardFields...), fields...)

	cacheKey := fmt.Sprintf("search:%s:%s:%d:%d", jql, strings.Join(requested, ","), startAt, maxResults)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*SearchResponse), nil
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", strings.Join(requested, ","))
	params.Set("expand", "changelog")

	searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.cfg.BaseURL, params.Encode())
	log.Info().Int("startAt", startAt).Msg("Requesting issues from Jira")
	log.Debug().Str("url", searchURL).Str("jql", jql).Msg("Jira search details")

	var result SearchResponse
	if err := c.getJSON(ctx, searchURL, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &result, 10*time.Minute)
	return &result, nil
}

func (c *dcClient) GetFields(ctx context.Context) ([]FieldDTO, error) {
	const cacheKey = "fields"
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]FieldDTO), nil
	}

	var fields []FieldDTO
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/rest/api/2/field", &fields); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, fields, time.Hour)
	return fields, nil
}

func (c *dcClient) getJSON(ctx context.Context, target string, out any) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("jira authentication failed (%d): check JIRA_TOKEN or credentials", resp.StatusCode)
		case http.StatusTooManyRequests:
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				return fmt.Errorf("jira rate limit exceeded (429): retry after %s seconds", retryAfter)
			}
			return fmt.Errorf("jira rate limit exceeded (429)")
		case http.StatusBadRequest:
			var body struct {
				ErrorMessages []string `json:"errorMessages"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&body)
			return fmt.Errorf("jira rejected the request (400): %s", strings.Join(body.ErrorMessages, "; "))
		default:
			return fmt.Errorf("jira API returned status %d", resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return nil
}
