package domain

// RequiredActionSubmitToolApproval is the only pending-action type this
// client knows how to answer.
const RequiredActionSubmitToolApproval = "submit_tool_approval"

// RequiredAction is the executor's pause payload. Type tags the variant;
// ToolCalls is populated only for submit_tool_approval. Unknown tags are
// preserved so the caller can report exactly what the executor asked for.
type RequiredAction struct {
	Type      string
	ToolCalls []RequiredToolCall
}

// RequiredToolCall is one invocation awaiting approval. Arguments are the
// executor's raw JSON, kept opaque.
type RequiredToolCall struct {
	ID          string
	Type        string
	Name        string
	Arguments   string
	ServerLabel string
}

// ToolApproval answers one RequiredToolCall. Reason is local color for
// prompts and audit logs; the wire carries only the identifier and verdict.
type ToolApproval struct {
	ToolCallID string
	Approve    bool
	Reason     string
}
