package servers

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/mcp"
	"github.com/isaacphi/mcpchat/internal/shared"
)

var (
	forceFlag       bool
	descriptionFlag string
	categoryFlag    string
	autoConnectFlag bool
	disabledFlag    bool
	envFlag         []string

	ServersCmd = &cobra.Command{
		Use:   "servers",
		Short: "Manage registered MCP servers",
	}

	// currentApp is swapped in tests
	currentApp = appState.Get
)

// withServices opens the registry and seeds it from configuration
func withServices(cmd *cobra.Command, fn func(s *shared.Services) error) error {
	services, err := shared.InitializeServices(currentApp())
	if err != nil {
		return err
	}
	defer services.Close()

	if err := services.SeedServers(cmd.Context()); err != nil {
		return err
	}
	return fn(services)
}

var listCmd = &cobra.Command{
	Use:   "ls",
	Short: "List MCP servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *shared.Services) error {
			servers, err := s.Servers.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list servers: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tName\tCategory\tEnabled\tAuto\tCommand")
			for _, server := range servers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
					server.ID.String()[:8],
					server.Name,
					server.Category,
					server.Enabled,
					server.AutoConnect,
					strings.Join(append(append([]string{}, server.Command...), server.Args...), " "),
				)
			}
			return w.Flush()
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add [name] [command...]",
	Short: "Register an MCP server",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := parseEnv(envFlag)
		if err != nil {
			return err
		}
		return withServices(cmd, func(s *shared.Services) error {
			server := &domain.MCPServer{
				Name:        args[0],
				Description: descriptionFlag,
				Command:     args[1:],
				Env:         env,
				Category:    categoryFlag,
				AutoConnect: autoConnectFlag,
				Enabled:     !disabledFlag,
			}
			if err := s.Servers.Create(cmd.Context(), server); err != nil {
				return fmt.Errorf("failed to add server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server '%s' added (%s)\n", server.Name, server.ID.String()[:8])
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "rm [server]",
	Short: "Remove an MCP server by name or ID prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *shared.Services) error {
			server, err := s.Servers.FindByPartialID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to find server: %w", err)
			}

			out := cmd.OutOrStdout()
			if !forceFlag {
				fmt.Fprintf(out, "About to remove server %s (%s)\n", server.Name, server.ID.String()[:8])
				fmt.Fprint(out, "Are you sure? [y/N] ")
				var response string
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(out, "Operation cancelled")
					return nil
				}
			}

			if err := s.Servers.Delete(cmd.Context(), server.ID); err != nil {
				return fmt.Errorf("failed to remove server: %w", err)
			}
			fmt.Fprintln(out, "Server removed successfully")
			return nil
		})
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect [server]",
	Short: "Connect to a server and list its tools",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *shared.Services) error {
			server, err := s.Servers.FindByPartialID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to find server: %w", err)
			}
			if err := s.Tools.Connect(cmd.Context(), *server); err != nil {
				return err
			}
			st := s.Tools.Status(server.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s: %d tools\n\n", server.Name, st.ToolCount)
			mcp.PrintTools(cmd.OutOrStdout(), s.Tools.Tools())
			return nil
		})
	},
}

// parseEnv reads KEY=VALUE pairs
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env %q, expected KEY=VALUE", pair)
		}
		env[k] = v
	}
	return env, nil
}

func init() {
	removeCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Remove without confirmation")

	addCmd.Flags().StringVarP(&descriptionFlag, "description", "d", "", "Server description")
	addCmd.Flags().StringVarP(&categoryFlag, "category", "c", "", "Server category")
	addCmd.Flags().BoolVarP(&autoConnectFlag, "auto-connect", "a", false, "Connect when the API server starts")
	addCmd.Flags().BoolVar(&disabledFlag, "disabled", false, "Register the server disabled")
	addCmd.Flags().StringArrayVarP(&envFlag, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")

	ServersCmd.AddCommand(listCmd, addCmd, removeCmd, connectCmd)
}
