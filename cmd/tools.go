package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/foundry-agents-cli/internal/adapters/mcpprobe"
	"github.com/bnema/foundry-agents-cli/internal/version"
)

func newToolsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage an agent's tool allow-list",
	}

	cmd.AddCommand(
		newToolsListCmd(app),
		newToolsAllowCmd(app),
		newToolsRevokeCmd(app),
		newToolsDiscoverCmd(app),
	)

	return cmd
}

func newToolsListCmd(app *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the persisted allow-list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := app.agents.Lookup(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("look up agent %q: %w", name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Allowed tools: %s\n", formatAllowed(record.Tool.AllowedTools))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (key in the agents file)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newToolsAllowCmd(app *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "allow TOOL...",
		Short: "Add tools to the persisted allow-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := app.agents.Lookup(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("look up agent %q: %w", name, err)
			}

			record.Tool.AllowedTools = append(record.Tool.AllowedTools, args...)
			record.Tool.NormalizeAllowed()
			if err := app.agents.Save(cmd.Context(), record); err != nil {
				return fmt.Errorf("save agent record: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Allowed tools: %s\n", formatAllowed(record.Tool.AllowedTools))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (key in the agents file)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newToolsRevokeCmd(app *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "revoke TOOL...",
		Short: "Remove tools from the persisted allow-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := app.agents.Lookup(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("look up agent %q: %w", name, err)
			}

			drop := make(map[string]struct{}, len(args))
			for _, tool := range args {
				drop[strings.TrimSpace(tool)] = struct{}{}
			}

			kept := make([]string, 0, len(record.Tool.AllowedTools))
			for _, tool := range record.Tool.AllowedTools {
				if _, gone := drop[tool]; gone {
					continue
				}
				kept = append(kept, tool)
			}
			record.Tool.AllowedTools = kept
			if err := app.agents.Save(cmd.Context(), record); err != nil {
				return fmt.Errorf("save agent record: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Allowed tools: %s\n", formatAllowed(record.Tool.AllowedTools))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (key in the agents file)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newToolsDiscoverCmd(app *app) *cobra.Command {
	var serverURL string
	var name string
	var transport string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the tools an MCP server advertises",
		Long:  "discover performs a live MCP handshake against a tool server and prints the advertised tools, so allow-lists can be built from real capability names.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (serverURL == "") == (name == "") {
				return errors.New("exactly one of --url or --name is required")
			}
			if name != "" {
				record, err := app.agents.Lookup(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("look up agent %q: %w", name, err)
				}
				serverURL = record.Tool.ServerURL
			}

			mode, err := parseTransport(transport)
			if err != nil {
				return err
			}

			prober := mcpprobe.Prober{
				ClientName:    "fa",
				ClientVersion: version.Version,
				Timeout:       timeout,
				Transport:     mode,
			}
			discovery, err := prober.Discover(cmd.Context(), serverURL)
			if err != nil {
				return fmt.Errorf("discover tools: %w", err)
			}

			out := cmd.OutOrStdout()
			if discovery.ServerName != "" {
				fmt.Fprintf(out, "Server: %s %s\n", discovery.ServerName, discovery.ServerVersion)
			}
			if len(discovery.Tools) == 0 {
				fmt.Fprintln(out, "No tools advertised.")
				return nil
			}
			for _, tool := range discovery.Tools {
				description := tool.Description
				if i := strings.IndexByte(description, '\n'); i >= 0 {
					description = description[:i]
				}
				if description == "" {
					fmt.Fprintln(out, tool.Name)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", tool.Name, description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "", "MCP server URL to probe")
	cmd.Flags().StringVar(&name, "name", "", "Probe the server of a saved agent instead")
	cmd.Flags().StringVar(&transport, "transport", "auto", "MCP transport (http|sse|auto)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Probe budget (default 30s)")

	return cmd
}

func parseTransport(raw string) (mcpprobe.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return mcpprobe.TransportAuto, nil
	case "http":
		return mcpprobe.TransportHTTP, nil
	case "sse":
		return mcpprobe.TransportSSE, nil
	default:
		return "", fmt.Errorf("unsupported transport %q (http|sse|auto)", raw)
	}
}

func formatAllowed(allowed []string) string {
	if len(allowed) == 0 {
		return "(all)"
	}
	return strings.Join(allowed, ", ")
}
