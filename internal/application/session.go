package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

var quitTokens = map[string]struct{}{
	":quit": {},
	":q":    {},
	":exit": {},
}

type SessionParams struct {
	API      ports.AgentsAPI
	Registry *ToolRegistry
	Resolver ResolverFactory
	Poll     PollConfig
	In       io.Reader
	Out      io.Writer
	Log      zerolog.Logger
}

// Session runs the interactive loop against one agent: read a line, turn
// it into a message and a run, drive the run to its end, print the reply.
// A failed run ends the turn, never the session; the agent outlives every
// session.
type Session struct {
	api      ports.AgentsAPI
	registry *ToolRegistry
	resolver ResolverFactory
	cfg      PollConfig
	in       *bufio.Reader
	out      io.Writer
	log      zerolog.Logger

	// Progress, when set, replaces the plain status lines printed while a
	// run is polled. It receives every observation in arrival order.
	Progress func(domain.Run)

	// AwaitRun, when set, wraps the blocking poll of one run; the CLI uses
	// it to draw a spinner while the poller waits. It must call await
	// exactly once and return its result.
	AwaitRun func(ctx context.Context, await func(context.Context) (domain.Run, error)) (domain.Run, error)
}

func NewSession(params SessionParams) *Session {
	registry := params.Registry
	if registry == nil {
		registry = NewToolRegistry()
	}
	resolver := params.Resolver
	if resolver == nil {
		resolver = func() ApprovalResolver { return ApproveAll{} }
	}
	reader, ok := params.In.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(params.In)
	}

	return &Session{
		api:      params.API,
		registry: registry,
		resolver: resolver,
		cfg:      params.Poll.normalized(),
		in:       reader,
		out:      params.Out,
		log:      params.Log,
	}
}

func (s *Session) Run(ctx context.Context, agentID domain.AgentID) error {
	agent, err := s.api.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("retrieve agent %s: %w", agentID, err)
	}

	thread, err := s.api.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}

	fmt.Fprintf(s.out, "Session thread ID: %s\n", thread.ID)
	fmt.Fprintln(s.out, "Type messages. Use :quit to exit.")
	fmt.Fprintln(s.out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(s.out, "> ")
		line, readErr := s.in.ReadString('\n')
		if readErr != nil && line == "" {
			fmt.Fprintln(s.out)
			break
		}

		input := strings.TrimSpace(line)
		switch {
		case input == "":
		case s.isQuit(input):
			fmt.Fprintln(s.out, "Exiting. (Agent not deleted; reuse with another session.)")
			return nil
		case s.handleMeta(input):
		default:
			if turnErr := s.turn(ctx, agent, thread.ID, input); turnErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(turnErr, domain.ErrRunFailed) {
					fmt.Fprintf(s.out, "Run failed: %v\n", turnErr)
				} else {
					fmt.Fprintf(s.out, "Error: %v\n", turnErr)
				}
			}
		}

		if readErr != nil {
			fmt.Fprintln(s.out)
			break
		}
	}

	fmt.Fprintln(s.out, "Exiting. (Agent not deleted; reuse with another session.)")
	return nil
}

func (s *Session) turn(ctx context.Context, agent domain.Agent, threadID domain.ThreadID, input string) error {
	message, err := s.api.CreateMessage(ctx, threadID, domain.MessageRoleUser, input)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	fmt.Fprintf(s.out, "Created message: %s\n", message.ID)

	run, err := s.api.CreateRun(ctx, threadID, agent.ID, s.runTools(agent))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	fmt.Fprintf(s.out, "Run: %s (status: %s)\n", run.ID, run.Status)

	poller := NewRunPoller(s.api, s.resolver(), s.cfg, s.log)
	if s.Progress != nil {
		poller.OnStatus = s.Progress
	} else {
		poller.OnStatus = func(observed domain.Run) {
			fmt.Fprintf(s.out, "  Status: %s\n", observed.Status)
		}
	}

	await := func(ctx context.Context) (domain.Run, error) {
		return poller.Await(ctx, run)
	}
	if s.AwaitRun != nil {
		run, err = s.AwaitRun(ctx, await)
	} else {
		run, err = await(ctx)
	}
	if err != nil {
		return err
	}

	reply, err := s.api.LatestAssistantMessage(ctx, threadID)
	if err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
		return fmt.Errorf("fetch assistant reply: %w", err)
	}
	if text := reply.Text(); text != "" {
		fmt.Fprintf(s.out, "\nAssistant:\n%s\n\n", text)
	}

	activity, err := NewStepInspector(s.api).Activity(ctx, run)
	if err != nil {
		return fmt.Errorf("inspect run steps: %w", err)
	}
	for _, call := range activity {
		fmt.Fprintf(s.out, "  (Tool used: %s)\n", call.Name)
	}
	return nil
}

// runTools refreshes the agent's tool registrations with the registry's
// current allow-list, so each run submission carries the state of the
// :allow/:revoke edits made since the last one.
func (s *Session) runTools(agent domain.Agent) []domain.ToolRegistration {
	if len(agent.Tools) == 0 {
		return nil
	}

	allowed := s.registry.Allowed()
	tools := make([]domain.ToolRegistration, 0, len(agent.Tools))
	for _, tool := range agent.Tools {
		tool.AllowedTools = allowed
		tools = append(tools, tool)
	}
	return tools
}

func (s *Session) isQuit(input string) bool {
	_, ok := quitTokens[strings.ToLower(input)]
	return ok
}

// handleMeta intercepts session commands that adjust the allow-list without
// spending a run. It reports whether input was consumed.
func (s *Session) handleMeta(input string) bool {
	if !strings.HasPrefix(input, ":") {
		return false
	}

	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case ":tools":
		allowed := s.registry.Allowed()
		if len(allowed) == 0 {
			fmt.Fprintln(s.out, "Allowed tools: (all)")
			return true
		}
		fmt.Fprintf(s.out, "Allowed tools: %s\n", strings.Join(allowed, ", "))
		return true
	case ":allow":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "Usage: :allow <tool>")
			return true
		}
		for _, name := range fields[1:] {
			if s.registry.Allow(name) {
				fmt.Fprintf(s.out, "Allowed tool: %s (applies from the next run)\n", name)
			} else {
				fmt.Fprintf(s.out, "Tool already allowed: %s\n", name)
			}
		}
		return true
	case ":revoke":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "Usage: :revoke <tool>")
			return true
		}
		for _, name := range fields[1:] {
			if s.registry.Disallow(name) {
				fmt.Fprintf(s.out, "Revoked tool: %s (applies from the next run)\n", name)
			} else {
				fmt.Fprintf(s.out, "Tool not in allow-list: %s\n", name)
			}
		}
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command %q (try :allow, :revoke, :tools, :quit)\n", fields[0])
		return true
	}
}
