package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bnema/foundry-agents-cli/internal/adapters/render/report"
	"github.com/bnema/foundry-agents-cli/internal/application"
	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

func newRunCmd(app *app) *cobra.Command {
	var name string
	var policy string
	var audit bool
	var interval time.Duration
	var timeout time.Duration
	var prompt string
	var showArgs bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive an interactive session against a saved agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := app.agents.Lookup(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("look up agent %q: %w", name, err)
			}

			api, err := app.agentsAPI(cmd.Context())
			if err != nil {
				return err
			}

			// The session and the prompt policy read the same stream, so
			// they must share one buffered reader.
			in := bufio.NewReader(cmd.InOrStdin())
			registry := application.NewToolRegistry(record.Tool.AllowedTools...)
			factory, err := resolverFactory(policy, registry, in, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if audit {
				inner := factory
				factory = func() application.ApprovalResolver {
					return application.AuditedResolver{Next: inner(), Log: app.log}
				}
			}

			// Flags beat the FA_POLL_INTERVAL/FA_POLL_TIMEOUT env defaults;
			// PollConfig fills whatever is still zero.
			if interval == 0 {
				interval = app.poll.Interval
			}
			if timeout == 0 {
				timeout = app.poll.Timeout
			}
			cfg := application.PollConfig{Interval: interval, Timeout: timeout}

			if prompt != "" {
				return runOnce(cmd, app, api, record, registry, factory, cfg, prompt, showArgs)
			}

			session := application.NewSession(application.SessionParams{
				API:      api,
				Registry: registry,
				Resolver: factory,
				Poll:     cfg,
				In:       in,
				Out:      cmd.OutOrStdout(),
				Log:      app.log,
			})

			if term.IsTerminal(int(os.Stdout.Fd())) {
				session.Progress = func(domain.Run) {}
				session.AwaitRun = func(ctx context.Context, await func(context.Context) (domain.Run, error)) (domain.Run, error) {
					var result domain.Run
					err := runPollSpinner(ctx, cmd.ErrOrStderr(), "Waiting for the run to finish...", func(ctx context.Context) error {
						var awaitErr error
						result, awaitErr = await(ctx)
						return awaitErr
					})
					return result, err
				}
			}

			return session.Run(cmd.Context(), record.ID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (key in the agents file)")
	cmd.Flags().StringVar(&policy, "policy", "approve", "Tool approval policy (approve|deny|prompt)")
	cmd.Flags().BoolVar(&audit, "audit", false, "Log every tool approval decision")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between run status polls (default 1s)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Budget for driving one run to completion (default 15m)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Submit one message and print the run report instead of entering a session")
	cmd.Flags().BoolVar(&showArgs, "show-args", false, "Include tool-call arguments in the run report")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func resolverFactory(policy string, registry *application.ToolRegistry, in io.Reader, out io.Writer) (application.ResolverFactory, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "approve":
		return func() application.ApprovalResolver {
			return application.AllowListResolver{Set: application.StaticAllowedSet(registry.Allowed())}
		}, nil
	case "deny":
		return func() application.ApprovalResolver { return application.DenyAll{} }, nil
	case "prompt":
		resolver := application.NewPromptResolver(in, out)
		return func() application.ApprovalResolver { return resolver }, nil
	default:
		return nil, fmt.Errorf("unsupported approval policy %q (approve|deny|prompt)", policy)
	}
}

// runOnce submits a single message, drives the run to its end, and prints
// the styled report. A terminal run failure still renders the report, so
// the final status and error land in front of the user before the non-zero
// exit.
func runOnce(cmd *cobra.Command, app *app, api ports.AgentsAPI, record domain.AgentRecord, registry *application.ToolRegistry, factory application.ResolverFactory, cfg application.PollConfig, prompt string, showArgs bool) error {
	ctx := cmd.Context()

	agent, err := api.GetAgent(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("retrieve agent %s: %w", record.ID, err)
	}

	allowed := registry.Allowed()
	tools := make([]domain.ToolRegistration, 0, len(agent.Tools))
	for _, tool := range agent.Tools {
		tool.AllowedTools = allowed
		tools = append(tools, tool)
	}

	thread, err := api.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	if _, err := api.CreateMessage(ctx, thread.ID, domain.MessageRoleUser, prompt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	poller := application.NewRunPoller(api, factory(), cfg, app.log)

	var run domain.Run
	var runErr error
	execute := func(ctx context.Context) error {
		run, runErr = poller.Execute(ctx, thread.ID, record.ID, tools)
		return runErr
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		err = runPollSpinner(ctx, cmd.ErrOrStderr(), "Waiting for the run to finish...", execute)
	} else {
		err = execute(ctx)
	}
	if err != nil && !errors.Is(err, domain.ErrRunFailed) {
		return err
	}

	var reply string
	var activity []domain.StepToolCall
	if runErr == nil {
		message, err := api.LatestAssistantMessage(ctx, thread.ID)
		if err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
			return fmt.Errorf("fetch assistant reply: %w", err)
		}
		reply = message.Text()

		activity, err = application.NewStepInspector(api).Activity(ctx, run)
		if err != nil {
			return fmt.Errorf("inspect run steps: %w", err)
		}
	}

	rendered, err := app.reportRenderer(report.RunReport{
		AgentName: record.Name,
		Run:       run,
		Reply:     reply,
		Activity:  activity,
	}, report.RenderOptions{ShowArguments: showArgs})
	if err != nil {
		return fmt.Errorf("render run report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)

	return runErr
}
