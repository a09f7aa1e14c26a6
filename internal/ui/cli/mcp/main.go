package mcp

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/mcp"
	"github.com/isaacphi/mcpchat/internal/shared"
)

var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Display MCP tools information",
	Long:  "Connect every enabled MCP server and display the tools they offer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		services, err := shared.InitializeServices(appState.Get())
		if err != nil {
			return err
		}
		defer services.Close()

		if err := services.SeedServers(ctx); err != nil {
			return err
		}
		if err := services.ConnectEnabled(ctx); err != nil {
			return fmt.Errorf("failed to connect MCP servers: %w", err)
		}

		summary := services.Tools.Summary()
		fmt.Printf("%d servers connected, %d tools\n\n", summary.ConnectedServers, summary.TotalTools)
		mcp.PrintTools(os.Stdout, services.Tools.Tools())
		return nil
	},
}
