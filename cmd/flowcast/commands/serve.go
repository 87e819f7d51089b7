package commands

import (
	"flowcast/internal/mcp"

	"github.com/spf13/cobra"
)

func newServeCommand(g *globals) *cobra.Command {
	var src source

	cmd := &cobra.Command{
		Use:   "serve <config.yml>",
		Short: "Serve the analytics as MCP tools over stdio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(args[0])
			if err != nil {
				return err
			}
			if err := checkSizeAttribute(settings, src); err != nil {
				return err
			}
			server := mcp.NewServer(settings, g.loader(settings, src), mcp.Options{
				Version:    Version,
				SizeColumn: src.sizeAttribute,
				Workers:    g.cfg.Workers,
			})
			return server.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&src.input, "input", "", "read issue histories from this JSON file instead of Jira")
	cmd.Flags().StringVar(&src.sizeAttribute, "points", "", "weight flow by this attribute (e.g. StoryPoints) instead of counting issues")
	return cmd
}
