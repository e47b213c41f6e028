package main

import (
	"context"
	"fmt"

	"github.com/aretw0/quarry/internal/cli"
	"github.com/aretw0/quarry/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts Quarry as an MCP Server so AI agents can drive query dialogues as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		app, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Manager,
			mcp.WithLogger(app.Logger),
			mcp.WithDatasetLoader(app.Datasets().Load),
		)

		switch transport {
		case "stdio":
			app.Logger.Info("Starting Quarry MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx := cli.NewSignalContext(context.Background())
			defer ctx.Cancel()
			return srv.ServeSSE(ctx, port)
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().IntP("port", "p", 8081, "Port for the sse transport")
}
