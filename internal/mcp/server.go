package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowcast/internal/config"
	"flowcast/internal/eventlog"
	"flowcast/internal/stats"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Loader produces the issue histories the tools analyse.
type Loader func(ctx context.Context) ([]eventlog.IssueHistory, error)

// Options configures a Server.
type Options struct {
	Version string
	// SizeColumn weights CFD, throughput and forecasts by this attribute.
	SizeColumn string
	Workers    int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server holds the state for the MCP server: the workflow settings and the
// analysis session built from the last load.
type Server struct {
	settings config.Settings
	load     Loader
	opts     Options

	mu      sync.Mutex
	session *stats.AnalysisSession
}

// NewServer creates a new MCP server.
func NewServer(settings config.Settings, load Loader, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Server{settings: settings, load: load, opts: opts}
}

// Start serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	server, err := s.build()
	if err != nil {
		return err
	}
	log.Info().Str("version", s.opts.Version).Msg("Serving MCP over stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) build() (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{Name: "flowcast", Version: s.opts.Version}, nil)
	if err := s.registerTools(server); err != nil {
		return nil, err
	}
	return server, nil
}

// analysis returns the current session, loading the issues on first use or
// when refresh is set.
func (s *Server) analysis(ctx context.Context, refresh bool) (*stats.AnalysisSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && !refresh {
		return s.session, nil
	}

	histories, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	session := stats.NewAnalysisSession(s.settings.Cycle(), histories, s.opts.Now(), stats.SessionOptions{
		SizeColumn: s.opts.SizeColumn,
		Workers:    s.opts.Workers,
	})
	if err := session.Project(ctx); err != nil {
		return nil, err
	}
	log.Info().Int("issues", len(histories)).Msg("Analysis session ready")
	s.session = session
	return session, nil
}
