package application

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

// ApprovalResolver turns the tool calls of a paused run into decisions.
// Implementations must return exactly one decision per call, in call order,
// carrying the call's own ID; the poller refuses to submit anything else.
type ApprovalResolver interface {
	Resolve(ctx context.Context, calls []domain.RequiredToolCall) ([]domain.ToolApproval, error)
}

type ApproveAll struct{}

func (ApproveAll) Resolve(ctx context.Context, calls []domain.RequiredToolCall) ([]domain.ToolApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	approvals := make([]domain.ToolApproval, 0, len(calls))
	for _, call := range calls {
		approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: true})
	}
	return approvals, nil
}

type DenyAll struct{}

func (DenyAll) Resolve(ctx context.Context, calls []domain.RequiredToolCall) ([]domain.ToolApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	approvals := make([]domain.ToolApproval, 0, len(calls))
	for _, call := range calls {
		approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: false, Reason: "denied by policy"})
	}
	return approvals, nil
}

// ResolverFactory builds the resolver for one run. Allow-list policies use
// it to snapshot the registry at run creation, so registry edits made while
// a run is in flight only apply from the next run.
type ResolverFactory func() ApprovalResolver

// AllowedSet is the read side of the tool registry consulted by
// AllowListResolver.
type AllowedSet interface {
	Allowed() []string
}

// StaticAllowedSet is a fixed snapshot of allowed tool names.
type StaticAllowedSet []string

func (s StaticAllowedSet) Allowed() []string { return s }

// AllowListResolver approves a call when its tool name is in the allowed
// set. An empty set approves everything, mirroring the registration rule
// that an empty allow-list offers every capability.
type AllowListResolver struct {
	Set AllowedSet
}

func (r AllowListResolver) Resolve(ctx context.Context, calls []domain.RequiredToolCall) ([]domain.ToolApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allowed := map[string]struct{}{}
	if r.Set != nil {
		for _, name := range r.Set.Allowed() {
			allowed[name] = struct{}{}
		}
	}

	approvals := make([]domain.ToolApproval, 0, len(calls))
	for _, call := range calls {
		if len(allowed) == 0 {
			approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: true})
			continue
		}
		if _, ok := allowed[call.Name]; ok {
			approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: true})
			continue
		}
		approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: false, Reason: fmt.Sprintf("tool %q is not allowed", call.Name)})
	}
	return approvals, nil
}

// PromptResolver asks on the terminal for every tool call. Anything but an
// explicit yes is a denial, including a closed input stream.
type PromptResolver struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptResolver(in io.Reader, out io.Writer) *PromptResolver {
	reader, ok := in.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(in)
	}
	return &PromptResolver{in: reader, out: out}
}

func (r *PromptResolver) Resolve(ctx context.Context, calls []domain.RequiredToolCall) ([]domain.ToolApproval, error) {
	approvals := make([]domain.ToolApproval, 0, len(calls))
	inputClosed := false

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if inputClosed {
			approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: false, Reason: "input closed"})
			continue
		}

		fmt.Fprintf(r.out, "Tool approval requested by %q: %s\n", call.ServerLabel, call.Name)
		if call.Arguments != "" {
			fmt.Fprintf(r.out, "  arguments: %s\n", call.Arguments)
		}
		fmt.Fprint(r.out, "Approve? [y/N]: ")

		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(r.out)
			inputClosed = true
			approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: false, Reason: "input closed"})
			continue
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: true})
		default:
			approvals = append(approvals, domain.ToolApproval{ToolCallID: call.ID, Approve: false, Reason: "denied at prompt"})
		}
	}

	return approvals, nil
}

// AuditedResolver wraps another resolver and logs every decision it returns.
type AuditedResolver struct {
	Next ApprovalResolver
	Log  zerolog.Logger
}

func (r AuditedResolver) Resolve(ctx context.Context, calls []domain.RequiredToolCall) ([]domain.ToolApproval, error) {
	approvals, err := r.Next.Resolve(ctx, calls)
	if err != nil {
		r.Log.Error().Err(err).Int("tool_calls", len(calls)).Msg("approval resolution failed")
		return nil, err
	}

	for i, approval := range approvals {
		event := r.Log.Info().
			Str("tool_call_id", approval.ToolCallID).
			Bool("approved", approval.Approve)
		if i < len(calls) {
			event = event.Str("tool", calls[i].Name).Str("server", calls[i].ServerLabel)
		}
		if approval.Reason != "" {
			event = event.Str("reason", approval.Reason)
		}
		event.Msg("tool approval decision")
	}
	return approvals, nil
}

func validateApprovals(calls []domain.RequiredToolCall, approvals []domain.ToolApproval) error {
	if len(approvals) != len(calls) {
		return fmt.Errorf("%w: %d decisions for %d tool calls", domain.ErrApprovalMismatch, len(approvals), len(calls))
	}
	for i, call := range calls {
		if approvals[i].ToolCallID != call.ID {
			return fmt.Errorf("%w: decision %d targets %q, want %q", domain.ErrApprovalMismatch, i, approvals[i].ToolCallID, call.ID)
		}
	}
	return nil
}
