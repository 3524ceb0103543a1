package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fa",
		Short:         "Foundry Agents CLI (fa): create and drive MCP-tool agents",
		Long:          "fa (Foundry Agents CLI) creates Azure AI Foundry agents wired to MCP tool servers, stores their IDs for reuse across sessions, and drives interactive runs with per-call tool approval.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newCreateCmd(app),
		newRunCmd(app),
		newAgentCmd(app),
		newToolsCmd(app),
		newAuthCmd(app),
	)

	return rootCmd
}
