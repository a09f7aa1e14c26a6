package chat

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/shared"
	"github.com/isaacphi/mcpchat/internal/ui/tui"
)

var (
	noToolsFlag       bool
	showReasoningFlag bool

	ChatCmd = &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the active model",
		Long: `Without arguments, start the interactive chat. With a message, or with
input piped on stdin, run a single turn and print the response.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := appState.Get()

			services, err := shared.InitializeServices(app)
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.SeedServers(ctx); err != nil {
				return err
			}
			if !noToolsFlag {
				if err := services.ConnectEnabled(ctx); err != nil {
					return err
				}
			}

			session := services.Sessions.GetOrCreate("cli")

			message, err := readMessage(args)
			if err != nil {
				return err
			}
			if message == "" {
				return tui.Run(ctx, tui.Options{
					Conversation: session,
					KeyMap:       app.Config.KeyMap,
					UseTools:     !noToolsFlag,
					Logger:       app.Logger,
				})
			}

			printer := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), showReasoningFlag)
			result, err := session.Run(ctx, chatRequest(message), printer.Sink)
			if err != nil {
				return err
			}
			printer.Finish()
			if result.Error != "" {
				return fmt.Errorf("turn failed: %s", result.Error)
			}
			return nil
		},
	}
)

// Interactive reports whether cmd will start the TUI
func Interactive(cmd *cobra.Command, args []string) bool {
	if cmd != ChatCmd || len(args) > 0 {
		return false
	}
	stat, err := os.Stdin.Stat()
	return err == nil && (stat.Mode()&os.ModeCharDevice) != 0
}

// readMessage joins the arguments, falling back to piped stdin
func readMessage(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read piped input: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	ChatCmd.Flags().BoolVar(&noToolsFlag, "no-tools", false, "Do not offer MCP tools to the model")
	ChatCmd.Flags().BoolVarP(&showReasoningFlag, "show-reasoning", "r", false, "Print reasoning to stderr")
}
