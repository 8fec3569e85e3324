package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sipgen/internal/mcp"
	"github.com/Sumatoshi-tech/sipgen/internal/observability"
	"github.com/Sumatoshi-tech/sipgen/pkg/config"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes sipgen as tools that AI agents can discover and invoke:
  - sip_render: Render the SIP file of one header with a rules package
  - sip_rules_check: Validate a rules package and summarize its modules`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(globalString(cmd, FlagConfig))
			if err != nil {
				return err
			}

			if debug {
				cfg.Log.Level = "debug"
			}

			tel, err := initObservability(cmd, cfg, observability.ModeMCP, false)
			if err != nil {
				return err
			}
			defer tel.close(cmd)

			metrics, err := observability.NewToolMetrics(tel.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{Logger: tel.Logger, Metrics: metrics, Tracer: tel.Tracer})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
