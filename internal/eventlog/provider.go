package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"flowcast/internal/jira"

	"github.com/rs/zerolog/log"
)

// BatchSize is the page size used against the search API.
const BatchSize = 100

// HydrateRequest describes the issues to fetch.
type HydrateRequest struct {
	Queries    []jira.Criteria
	Attributes []Attribute
	// SizeAttribute names the entry of Attributes that holds the issue size.
	SizeAttribute string
	// MaxResults caps the number of issues fetched per query. <= 0 fetches all.
	MaxResults int
	// UseCache consults the row cache before querying and fills it afterwards.
	UseCache bool
}

// SourceID identifies the data set a request produces.
func (r HydrateRequest) SourceID() string {
	parts := []string{"max=" + strconv.Itoa(r.MaxResults), "size=" + r.SizeAttribute}
	for _, q := range r.Queries {
		parts = append(parts, "jql="+jira.BuildJQL(q), "value="+q.Value)
	}
	for _, a := range r.Attributes {
		parts = append(parts, "attr="+a.Name+"="+a.FieldID)
	}
	return CacheKey(parts...)
}

// LogProvider decides between the row cache and the query layer, and keeps
// what it loaded in a Store.
type LogProvider struct {
	client  jira.Client
	store   *Store
	cache   RowCache
	baseURL string
}

// NewLogProvider wires a provider. client may be nil when every request is
// served from cache; cache may be nil to disable caching.
func NewLogProvider(client jira.Client, store *Store, cache RowCache, baseURL string) *LogProvider {
	return &LogProvider{
		client:  client,
		store:   store,
		cache:   cache,
		baseURL: baseURL,
	}
}

// Store returns the provider's store.
func (p *LogProvider) Store() *Store { return p.store }

// Hydrate loads the issues described by req and returns them ordered by key.
func (p *LogProvider) Hydrate(ctx context.Context, req HydrateRequest) ([]IssueHistory, error) {
	sourceID := req.SourceID()

	if req.UseCache && p.cache != nil {
		rows, ok, err := p.cache.LoadCachedRows(sourceID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("source", sourceID).Msg("Hydrate: ignoring unreadable cache")
		case ok:
			p.store.Clear(sourceID)
			p.store.Append(sourceID, rows)
			log.Debug().Str("source", sourceID).Msg("Hydrate: Loaded from cache")
			return p.store.Histories(sourceID), nil
		}
	}

	if p.client == nil {
		return nil, errors.New("no Jira connection configured and nothing cached")
	}

	opts := TransformOptions{BaseURL: p.baseURL, Attributes: req.Attributes}
	if req.SizeAttribute != "" {
		size, err := p.resolveSize(ctx, req)
		if err != nil {
			return nil, err
		}
		opts.Size = &size
	}

	fields := make([]string, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		fields = append(fields, a.FieldID)
	}

	log.Info().Str("source", sourceID).Int("queries", len(req.Queries)).Msg("Starting hydration process")
	p.store.Clear(sourceID)
	for _, q := range req.Queries {
		opts.QueryValue = q.Value
		jql := jira.BuildJQL(q) + " ORDER BY updated DESC"
		if err := p.fetch(ctx, sourceID, jql, fields, req.MaxResults, opts); err != nil {
			return nil, err
		}
	}

	histories := p.store.Histories(sourceID)
	if req.UseCache && p.cache != nil {
		if err := p.cache.StoreCachedRows(sourceID, histories); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Hydrate: Failed to save cache")
		}
	}

	log.Info().Int("total", len(histories)).Msg("Hydration complete")
	return histories, nil
}

func (p *LogProvider) fetch(ctx context.Context, sourceID, jql string, fields []string, limit int, opts TransformOptions) error {
	fetched := 0
	for {
		batch := BatchSize
		if limit > 0 && limit-fetched < batch {
			batch = limit - fetched
		}
		if batch <= 0 {
			return nil
		}

		resp, err := p.client.SearchIssuesWithHistory(ctx, jql, fields, fetched, batch)
		if err != nil {
			return fmt.Errorf("hydration failed at offset %d: %w", fetched, err)
		}
		if len(resp.Issues) == 0 {
			return nil
		}

		histories := make([]IssueHistory, len(resp.Issues))
		for i, dto := range resp.Issues {
			histories[i] = TransformIssue(dto, opts)
		}
		p.store.Append(sourceID, histories)
		fetched += len(resp.Issues)

		log.Debug().Int("fetched", fetched).Int("total", resp.Total).Msg("Hydrate: page processed")
		if fetched >= resp.Total {
			return nil
		}
	}
}

// resolveSize finds the size attribute and its changelog display name.
func (p *LogProvider) resolveSize(ctx context.Context, req HydrateRequest) (Attribute, error) {
	var size Attribute
	found := false
	for _, a := range req.Attributes {
		if a.Name == req.SizeAttribute {
			size, found = a, true
			break
		}
	}
	if !found {
		return Attribute{}, fmt.Errorf("size attribute %q is not among the configured attributes", req.SizeAttribute)
	}
	if size.FieldName != "" {
		return size, nil
	}

	defs, err := p.client.GetFields(ctx)
	if err != nil {
		log.Warn().Err(err).Str("field", size.FieldID).Msg("Could not list Jira fields; matching size changes by id")
		return size, nil
	}
	for _, d := range defs {
		if d.ID == size.FieldID {
			size.FieldName = d.Name
			break
		}
	}
	return size, nil
}
