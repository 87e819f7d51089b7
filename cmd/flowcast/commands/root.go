package commands

import (
	"context"
	"os"
	"os/signal"

	"flowcast/internal/config"
	"flowcast/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// globals are the flags and configuration shared by every command.
type globals struct {
	verbose bool
	cfg     *config.AppConfig
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "flowcast",
		Short: "Flowcast extracts flow metrics and forecasts from Jira",
		Long: `Flowcast reconstructs when every issue entered each step of a workflow and derives
cycle data, cumulative flow, throughput, cycle-time percentiles and Monte Carlo
burn-up forecasts from it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			g.cfg = cfg
			if err := logging.Init(logging.Options{Verbose: g.verbose, Dir: cfg.LogDir}); err != nil {
				return err
			}
			log.Debug().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Msg("flowcast starting")
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newExtractCommand(g), newServeCommand(g), newVersionCommand())
	return root
}

// Execute runs the CLI until it finishes or is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
