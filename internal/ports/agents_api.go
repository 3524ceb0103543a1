package ports

import (
	"context"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

type AgentDirectory interface {
	CreateAgent(ctx context.Context, def domain.AgentDefinition) (domain.Agent, error)
	GetAgent(ctx context.Context, id domain.AgentID) (domain.Agent, error)
}

type ThreadMessenger interface {
	CreateThread(ctx context.Context) (domain.Thread, error)
	CreateMessage(ctx context.Context, threadID domain.ThreadID, role domain.MessageRole, text string) (domain.Message, error)
	// LatestAssistantMessage returns the newest assistant message on the
	// thread, or domain.ErrMessageNotFound when the thread has none.
	LatestAssistantMessage(ctx context.Context, threadID domain.ThreadID) (domain.Message, error)
}

type RunExecutor interface {
	// CreateRun submits a run. tools carries the allow-list snapshot taken
	// at submission time; empty means the agent's stored definition stands.
	CreateRun(ctx context.Context, threadID domain.ThreadID, agentID domain.AgentID, tools []domain.ToolRegistration) (domain.Run, error)
	GetRun(ctx context.Context, threadID domain.ThreadID, runID domain.RunID) (domain.Run, error)
	SubmitToolApprovals(ctx context.Context, threadID domain.ThreadID, runID domain.RunID, approvals []domain.ToolApproval) (domain.Run, error)
}

type StepReader interface {
	ListRunSteps(ctx context.Context, threadID domain.ThreadID, runID domain.RunID) ([]domain.RunStep, error)
}

type AgentsAPI interface {
	AgentDirectory
	ThreadMessenger
	RunExecutor
	StepReader
}
