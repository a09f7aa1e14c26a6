package serve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/server"
	"github.com/isaacphi/mcpchat/internal/shared"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long:  "Seed MCP servers from configuration, connect the auto-connect ones and serve the chat API until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app := appState.Get()

		services, err := shared.InitializeServices(app)
		if err != nil {
			return err
		}
		defer func() {
			if err := services.Close(); err != nil {
				app.Logger.Error("failed to close services", "error", err)
			}
		}()

		if err := services.SeedServers(ctx); err != nil {
			return err
		}
		if err := services.ConnectAutoServers(ctx); err != nil {
			return fmt.Errorf("failed to connect MCP servers: %w", err)
		}

		srv := server.New(server.Deps{
			Config:       app.Config.Server,
			HistoryLimit: app.Config.Chat.HistoryLimit,
			Servers:      services.Servers,
			History:      services.History,
			Tools:        services.Tools,
			Sessions:     services.Sessions,
			Logger:       app.Logger,
		})
		return srv.Run(ctx)
	},
}

func init() {
	ServeCmd.Flags().String("addr", "", "Listen address, overrides server.addr")
}
