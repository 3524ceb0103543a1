package ports

import (
	"context"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

type AgentStore interface {
	Lookup(ctx context.Context, name string) (domain.AgentRecord, error)
	Save(ctx context.Context, record domain.AgentRecord) error
	List(ctx context.Context) ([]domain.AgentRecord, error)
}
