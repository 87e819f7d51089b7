package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flowcast/internal/config"
	"flowcast/internal/eventlog"
	"flowcast/internal/jira"

	"github.com/rs/zerolog/log"
)

// source says where issue histories come from.
type source struct {
	// input is a JSON file of issue histories. Empty queries Jira.
	input         string
	sizeAttribute string
}

// loader returns the function that produces the issue histories for settings.
func (g *globals) loader(settings config.Settings, src source) func(context.Context) ([]eventlog.IssueHistory, error) {
	if src.input != "" {
		return func(context.Context) ([]eventlog.IssueHistory, error) {
			return readHistories(src.input)
		}
	}

	jiraCfg := g.cfg.JiraConfig(settings.Connection())
	jiraCfg.BaseURL = strings.TrimRight(jiraCfg.BaseURL, "/")

	var client jira.Client
	if jiraCfg.BaseURL != "" {
		client = jira.NewClient(jiraCfg)
	}
	var cache eventlog.RowCache
	if settings.CacheJira() {
		fc, err := eventlog.NewFileCache(g.cfg.CacheDir, g.cfg.CacheCompression)
		if err != nil {
			log.Warn().Err(err).Str("dir", g.cfg.CacheDir).Msg("Row cache disabled")
		} else {
			cache = fc
		}
	}
	provider := eventlog.NewLogProvider(client, eventlog.NewStore(), cache, jiraCfg.BaseURL)
	req := settings.HydrateRequest(src.sizeAttribute)

	return func(ctx context.Context) ([]eventlog.IssueHistory, error) {
		return provider.Hydrate(ctx, req)
	}
}

func readHistories(path string) ([]eventlog.IssueHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var histories []eventlog.IssueHistory
	if err := json.Unmarshal(data, &histories); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("issues", len(histories)).Msg("Loaded issue histories")
	return histories, nil
}

func loadSettings(path string) (config.Settings, error) {
	settings, err := config.LoadSettings(path)
	if err != nil {
		return config.Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

func checkSizeAttribute(settings config.Settings, src source) error {
	if src.sizeAttribute == "" || src.input != "" {
		return nil
	}
	if _, ok := settings.Attribute(src.sizeAttribute); !ok {
		return fmt.Errorf("%w: --points %q is not one of the configured attributes", config.ErrConfig, src.sizeAttribute)
	}
	return nil
}
