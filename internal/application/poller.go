package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

type PollConfig struct {
	Interval    time.Duration // delay between successive status polls
	MaxInterval time.Duration // ceiling for the transient-failure backoff
	MaxAttempts int           // consecutive poll failures tolerated before giving up
	Timeout     time.Duration // overall budget for driving one run to a terminal status
}

func (c PollConfig) normalized() PollConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = c.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Minute
	}
	return c
}

// RunPoller drives a run to a terminal status, resolving tool approvals
// along the way. Each distinct set of requested tool calls is resolved and
// submitted exactly once; observing the same set again keeps polling.
type RunPoller struct {
	exec     ports.RunExecutor
	resolver ApprovalResolver
	cfg      PollConfig
	log      zerolog.Logger

	// OnStatus, when set, receives every run observation in arrival order.
	OnStatus func(domain.Run)
}

func NewRunPoller(exec ports.RunExecutor, resolver ApprovalResolver, cfg PollConfig, log zerolog.Logger) *RunPoller {
	if resolver == nil {
		resolver = ApproveAll{}
	}

	return &RunPoller{
		exec:     exec,
		resolver: resolver,
		cfg:      cfg.normalized(),
		log:      log,
	}
}

// Execute starts a run on the thread and drives it to a terminal status.
// tools is the caller's allow-list snapshot for this submission.
func (p *RunPoller) Execute(ctx context.Context, threadID domain.ThreadID, agentID domain.AgentID, tools []domain.ToolRegistration) (domain.Run, error) {
	run, err := p.exec.CreateRun(ctx, threadID, agentID, tools)
	if err != nil {
		return domain.Run{}, fmt.Errorf("create run: %w", err)
	}
	p.notify(run)

	return p.Await(ctx, run)
}

// Await polls run until it reaches a terminal status. The returned run is
// the last observation even when the error is non-nil, so the caller can
// report the final status and error details.
func (p *RunPoller) Await(ctx context.Context, run domain.Run) (domain.Run, error) {
	cfg := p.cfg
	deadline := time.Now().Add(cfg.Timeout)
	submitted := map[string]struct{}{}
	delay := cfg.Interval
	failures := 0

	for {
		if run.Status.Terminal() {
			return p.conclude(run)
		}

		if run.Status == domain.RunStatusRequiresAction {
			signature, updated, acted, err := p.resolveAction(ctx, run, submitted)
			if err != nil {
				return run, err
			}
			if acted {
				submitted[signature] = struct{}{}
				run = updated
				p.notify(run)
				continue
			}
		}

		if err := waitForNextPoll(ctx, delay, deadline, cfg.Timeout); err != nil {
			return run, err
		}

		pollCtx, cancel := boundedContext(ctx, deadline)
		observed, err := p.exec.GetRun(pollCtx, run.ThreadID, run.ID)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run, ctxErr
			}
			if time.Now().After(deadline) {
				return run, fmt.Errorf("%w: no terminal status within %s", domain.ErrPollExhausted, cfg.Timeout)
			}

			failures++
			if failures >= cfg.MaxAttempts {
				return run, fmt.Errorf("%w: %d consecutive poll failures, last: %v", domain.ErrPollExhausted, failures, err)
			}

			delay = minDuration(delay*2, cfg.MaxInterval)
			p.log.Warn().Err(err).Int("failures", failures).Dur("retry_in", delay).Msg("run poll failed")
			continue
		}

		failures = 0
		delay = cfg.Interval
		run = observed
		p.notify(run)
	}
}

// resolveAction turns the run's required action into submitted approvals.
// acted is false when the call set was already submitted earlier and the
// poller should simply keep waiting for the service to move the run on.
func (p *RunPoller) resolveAction(ctx context.Context, run domain.Run, submitted map[string]struct{}) (signature string, updated domain.Run, acted bool, err error) {
	action := run.RequiredAction
	if action == nil {
		return "", domain.Run{}, false, fmt.Errorf("%w: run %s requires action but carried none", domain.ErrUnsupportedAction, run.ID)
	}
	if action.Type != domain.RequiredActionSubmitToolApproval {
		return "", domain.Run{}, false, fmt.Errorf("%w: %q", domain.ErrUnsupportedAction, action.Type)
	}

	signature = approvalSignature(action.ToolCalls)
	if _, done := submitted[signature]; done {
		return "", run, false, nil
	}

	approvals, err := p.resolver.Resolve(ctx, action.ToolCalls)
	if err != nil {
		return "", domain.Run{}, false, fmt.Errorf("resolve tool approvals: %w", err)
	}
	if err := validateApprovals(action.ToolCalls, approvals); err != nil {
		return "", domain.Run{}, false, err
	}

	approved := 0
	for _, approval := range approvals {
		if approval.Approve {
			approved++
		}
	}
	p.log.Info().
		Str("run_id", string(run.ID)).
		Int("tool_calls", len(action.ToolCalls)).
		Int("approved", approved).
		Msg("submitting tool approvals")

	updated, err = p.exec.SubmitToolApprovals(ctx, run.ThreadID, run.ID, approvals)
	if err != nil {
		return "", domain.Run{}, false, fmt.Errorf("submit tool approvals: %w", err)
	}
	return signature, updated, true, nil
}

func (p *RunPoller) conclude(run domain.Run) (domain.Run, error) {
	if run.Status.Succeeded() {
		return run, nil
	}
	if run.LastError != nil {
		return run, fmt.Errorf("%w: run %s %s: %s", domain.ErrRunFailed, run.ID, run.Status, run.LastError)
	}
	return run, fmt.Errorf("%w: run %s %s", domain.ErrRunFailed, run.ID, run.Status)
}

func (p *RunPoller) notify(run domain.Run) {
	p.log.Debug().
		Str("run_id", string(run.ID)).
		Str("status", string(run.Status)).
		Msg("run status observed")
	if p.OnStatus != nil {
		p.OnStatus(run)
	}
}

func waitForNextPoll(ctx context.Context, delay time.Duration, deadline time.Time, budget time.Duration) error {
	if time.Now().After(deadline) || time.Now().Add(delay).After(deadline) {
		return fmt.Errorf("%w: no terminal status within %s", domain.ErrPollExhausted, budget)
	}

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func boundedContext(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

func approvalSignature(calls []domain.RequiredToolCall) string {
	ids := make([]string, 0, len(calls))
	for _, call := range calls {
		ids = append(ids, call.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, "\n")
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
