package mcp

import (
	"fmt"
	"io"
	"sort"

	"github.com/isaacphi/mcpchat/internal/domain"
)

// PrintTools writes tools grouped by server in a YAML-like layout
func PrintTools(w io.Writer, tools []domain.Tool) {
	byServer := make(map[string][]domain.Tool)
	var servers []string
	for _, tool := range tools {
		if _, seen := byServer[tool.ServerName]; !seen {
			servers = append(servers, tool.ServerName)
		}
		byServer[tool.ServerName] = append(byServer[tool.ServerName], tool)
	}
	sort.Strings(servers)

	for _, serverName := range servers {
		fmt.Fprintf(w, "%s:\n", serverName)
		for _, tool := range byServer[serverName] {
			fmt.Fprintf(w, "  %s:\n", tool.Name)
			fmt.Fprintf(w, "    description: %s\n", tool.Description)
			fmt.Fprintf(w, "    parameters:\n")

			if tool.Parameters.Type != "" {
				fmt.Fprintf(w, "      type: %s\n", tool.Parameters.Type)
			}
			if len(tool.Parameters.Required) > 0 {
				fmt.Fprintf(w, "      required:\n")
				for _, req := range tool.Parameters.Required {
					fmt.Fprintf(w, "        - %s\n", req)
				}
			}
			if len(tool.Parameters.Properties) > 0 {
				fmt.Fprintf(w, "      properties:\n")
				names := make([]string, 0, len(tool.Parameters.Properties))
				for name := range tool.Parameters.Properties {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					printProperty(w, name, tool.Parameters.Properties[name], "        ")
				}
			}
		}
		fmt.Fprintln(w)
	}
}

func printProperty(w io.Writer, name string, prop domain.Property, indent string) {
	fmt.Fprintf(w, "%s%s:\n", indent, name)
	if prop.Type != "" {
		fmt.Fprintf(w, "%s  type: %s\n", indent, prop.Type)
	}
	if prop.Description != "" {
		fmt.Fprintf(w, "%s  description: %s\n", indent, prop.Description)
	}
	if len(prop.Enum) > 0 {
		fmt.Fprintf(w, "%s  enum:\n", indent)
		for _, e := range prop.Enum {
			fmt.Fprintf(w, "%s    - %s\n", indent, e)
		}
	}
	if prop.Default != nil {
		fmt.Fprintf(w, "%s  default: %v\n", indent, prop.Default)
	}
	if prop.Items != nil {
		printProperty(w, "items", *prop.Items, indent+"  ")
	}
}
