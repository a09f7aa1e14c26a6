package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/ui/cli/chat"
	configCmd "github.com/isaacphi/mcpchat/internal/ui/cli/config"
	"github.com/isaacphi/mcpchat/internal/ui/cli/history"
	"github.com/isaacphi/mcpchat/internal/ui/cli/mcp"
	"github.com/isaacphi/mcpchat/internal/ui/cli/serve"
	"github.com/isaacphi/mcpchat/internal/ui/cli/servers"
)

var (
	logLevel  string
	logFile   string
	modelFlag string
	dbPath    string
)

var rootCmd = &cobra.Command{
	Use:               "mcpchat",
	Short:             "Chat with LLMs using MCP tools",
	Long:              `Chat with language models that call tools on MCP servers, from the terminal or over HTTP.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set logging level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (defaults to stdout)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model preset to use")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path of the SQLite database")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		overrides := &config.RuntimeOverrides{}
		if logLevel != "" {
			overrides.LogLevel = &logLevel
		}
		if logFile != "" {
			overrides.LogFile = &logFile
		}
		if modelFlag != "" {
			overrides.ActiveModel = &modelFlag
		}
		if dbPath != "" {
			overrides.DBPath = &dbPath
		}
		if cmd.Flags().Changed("addr") {
			addr, _ := cmd.Flags().GetString("addr")
			overrides.Addr = &addr
		}
		if chat.Interactive(cmd, args) {
			// The TUI owns the terminal
			return appState.InitializeWithOutput(overrides, io.Discard)
		}
		return appState.Initialize(overrides)
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return appState.Cleanup()
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		configCmd.ConfigCmd,
		serve.ServeCmd,
		chat.ChatCmd,
		servers.ServersCmd,
		mcp.MCPCmd,
		history.HistoryCmd,
	)
}
