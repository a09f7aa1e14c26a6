package history

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/repository/sqlite"
)

var (
	limitFlag int

	// currentApp is swapped in tests
	currentApp = appState.Get

	HistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent MCP tool calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentApp().Config
			db, err := sqlite.Initialize(cfg.DBPath)
			if err != nil {
				return err
			}
			defer sqlite.Close(db)

			limit := limitFlag
			if limit <= 0 {
				limit = cfg.Chat.HistoryLimit
			}
			calls, total, err := sqlite.NewToolCallRepository(db).Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Time\tServer\tTool\tDuration\tResult")
			for _, call := range calls {
				result := call.Result
				if call.Error != "" {
					result = "error: " + call.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					call.CreatedAt.Format(time.RFC822),
					call.ServerName,
					call.ToolName,
					time.Duration(call.DurationMs)*time.Millisecond,
					preview(result),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d calls\n", len(calls), total)
			return nil
		},
	}
)

func preview(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:47]) + "..."
	}
	return s
}

func init() {
	HistoryCmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Number of calls to show (defaults to chat.historyLimit)")
}
