package domain

type StepID string

// RunStep is a retrospective record of one action the executor took during a
// run. Tool-call metadata is surfaced verbatim as reported.
type RunStep struct {
	ID        StepID
	RunID     RunID
	Type      string
	Status    string
	MessageID MessageID
	ToolCalls []StepToolCall
}

type StepToolCall struct {
	ID          string
	Type        string
	Name        string
	Arguments   string
	Output      string
	ServerLabel string
}

// ToolActivity flattens the ordered tool calls across a step sequence,
// preserving executor-reported order.
func ToolActivity(steps []RunStep) []StepToolCall {
	calls := make([]StepToolCall, 0, len(steps))
	for _, step := range steps {
		calls = append(calls, step.ToolCalls...)
	}

	return calls
}
