package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAgentCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect saved agents",
	}

	cmd.AddCommand(newAgentListCmd(app), newAgentShowCmd(app))

	return cmd
}

func newAgentListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := app.agents.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, record := range records {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", record.Name, record.ID, record.Model)
			}

			return nil
		},
	}
}

func newAgentShowCmd(app *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one saved agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := app.agents.Lookup(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("look up agent %q: %w", name, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", record.Name)
			fmt.Fprintf(out, "ID:         %s\n", record.ID)
			fmt.Fprintf(out, "Model:      %s\n", record.Model)
			fmt.Fprintf(out, "MCP server: %s (%s)\n", record.Tool.ServerURL, record.Tool.ServerLabel)
			if len(record.Tool.AllowedTools) == 0 {
				fmt.Fprintln(out, "Allowed:    (all tools)")
			} else {
				fmt.Fprintf(out, "Allowed:    %s\n", strings.Join(record.Tool.AllowedTools, ", "))
			}
			if !record.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Created:    %s\n", record.CreatedAt.Format(time.RFC3339))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (key in the agents file)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
