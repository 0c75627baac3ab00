package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/gokb/internal/mcp"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout is reserved for the MCP protocol
			cmd.SetOut(os.Stderr)

			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := mcp.NewServer(c.kb, c.logger.With().Str("component", "mcp").Logger())
			c.logger.Info().Str("version", version).Msg("MCP server ready, listening on stdio")

			err := server.Serve(ctx)
			if err != nil && ctx.Err() == nil {
				return err
			}
			c.logger.Info().Msg("server stopped")
			return nil
		},
	}
}
