package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

const defaultInstructions = "You are a helpful agent that can use MCP tools to assist users. " +
	"Use the available MCP tools to answer questions and perform tasks."

func newCreateCmd(app *app) *cobra.Command {
	var name string
	var model string
	var mcpURL string
	var mcpLabel string
	var instructions string
	var allowed []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent with an MCP tool and save its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if model == "" {
				model = app.defaults.Model
			}
			if model == "" {
				return errors.New("model deployment name must be provided via --model or MODEL_DEPLOYMENT_NAME")
			}
			if mcpURL == "" {
				mcpURL = app.defaults.MCPURL
			}
			if mcpLabel == "" {
				mcpLabel = app.defaults.MCPLabel
			}

			def := domain.AgentDefinition{
				Name:         name,
				Model:        model,
				Instructions: instructions,
				Tool: domain.ToolRegistration{
					ServerLabel:  mcpLabel,
					ServerURL:    mcpURL,
					AllowedTools: allowed,
				},
			}
			def.Tool.NormalizeAllowed()
			if err := def.Validate(); err != nil {
				return err
			}

			api, err := app.agentsAPI(cmd.Context())
			if err != nil {
				return err
			}

			agent, err := api.CreateAgent(cmd.Context(), def)
			if err != nil {
				return fmt.Errorf("create agent: %w", err)
			}

			record := domain.AgentRecord{
				Name:      name,
				ID:        agent.ID,
				Model:     model,
				Tool:      def.Tool,
				CreatedAt: app.now().UTC(),
			}
			if err := app.agents.Save(cmd.Context(), record); err != nil {
				return fmt.Errorf("save agent record: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created agent %q with ID: %s\n", name, agent.ID)
			fmt.Fprintf(out, "Stored mapping in %s\n", app.agentsPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-friendly agent name (unique key)")
	cmd.Flags().StringVar(&model, "model", "", "Model deployment name (overrides env MODEL_DEPLOYMENT_NAME)")
	cmd.Flags().StringVar(&mcpURL, "mcp-url", "", "MCP server URL (overrides env MCP_SERVER_URL)")
	cmd.Flags().StringVar(&mcpLabel, "mcp-label", "", "MCP server label (overrides env MCP_SERVER_LABEL)")
	cmd.Flags().StringVar(&instructions, "instructions", defaultInstructions, "System instructions for the agent")
	cmd.Flags().StringArrayVar(&allowed, "allow", nil, "Tool name to allow (repeatable; empty allows every tool)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
