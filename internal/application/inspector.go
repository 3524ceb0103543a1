package application

import (
	"context"
	"fmt"

	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

// StepInspector retrieves the recorded steps of a finished run. Runs that
// have not completed successfully cannot be inspected; their step list
// would still be in motion.
type StepInspector struct {
	reader ports.StepReader
}

func NewStepInspector(reader ports.StepReader) *StepInspector {
	return &StepInspector{reader: reader}
}

// Inspect returns the run's steps exactly as the service reports them,
// preserving order and tool metadata.
func (i *StepInspector) Inspect(ctx context.Context, run domain.Run) ([]domain.RunStep, error) {
	if !run.Status.Succeeded() {
		return nil, fmt.Errorf("%w: run %s is %s", domain.ErrPrematureInspection, run.ID, run.Status)
	}

	steps, err := i.reader.ListRunSteps(ctx, run.ThreadID, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list run steps: %w", err)
	}
	return steps, nil
}

// Activity flattens the run's steps into the tool calls they carried, in
// step order.
func (i *StepInspector) Activity(ctx context.Context, run domain.Run) ([]domain.StepToolCall, error) {
	steps, err := i.Inspect(ctx, run)
	if err != nil {
		return nil, err
	}
	return domain.ToolActivity(steps), nil
}
