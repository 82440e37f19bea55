package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	orbitmcp "orbit/pkg/channels/mcp"
	"orbit/pkg/gateway"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the router as an MCP tool over stdio",
	Long: `mcp speaks the Model Context Protocol on stdin/stdout so desktop and
editor clients can call the query_orbit_agent tool. Logs go to stderr.
Use a "mcp" entry in config.json channels to serve it over HTTP instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := start()
		if err != nil {
			return err
		}
		defer a.close()

		ch := orbitmcp.NewMCPChannel(orbitmcp.MCPConfig{Transport: orbitmcp.TransportStdio})
		gw, err := gateway.NewGatewayBuilder().
			WithSystemConfig(a.system).
			WithAsker(a.router).
			WithChannel(ch).
			Build()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			slog.Info("Received shutdown signal. Stopping MCP server...")
		case <-ch.Done():
		}
		gw.StopAll()
		return nil
	},
}
