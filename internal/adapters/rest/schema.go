package rest

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

type mcpToolDTO struct {
	Type         string   `json:"type"`
	ServerLabel  string   `json:"server_label"`
	ServerURL    string   `json:"server_url"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

func mcpToolFromDomain(tool domain.ToolRegistration) mcpToolDTO {
	return mcpToolDTO{
		Type:         "mcp",
		ServerLabel:  tool.ServerLabel,
		ServerURL:    tool.ServerURL,
		AllowedTools: tool.AllowedTools,
	}
}

func (d mcpToolDTO) toDomain() domain.ToolRegistration {
	return domain.ToolRegistration{
		ServerLabel:  d.ServerLabel,
		ServerURL:    d.ServerURL,
		AllowedTools: d.AllowedTools,
	}
}

type createAgentRequest struct {
	Name         string       `json:"name"`
	Model        string       `json:"model"`
	Instructions string       `json:"instructions,omitempty"`
	Tools        []mcpToolDTO `json:"tools"`
}

type agentDTO struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Model        string       `json:"model"`
	Instructions string       `json:"instructions"`
	Tools        []mcpToolDTO `json:"tools"`
	CreatedAt    int64        `json:"created_at"`
}

func (d agentDTO) toDomain() domain.Agent {
	agent := domain.Agent{
		ID:           domain.AgentID(d.ID),
		Name:         d.Name,
		Model:        d.Model,
		Instructions: d.Instructions,
		CreatedAt:    unixTime(d.CreatedAt),
	}
	for _, tool := range d.Tools {
		if tool.Type != "mcp" {
			continue
		}
		agent.Tools = append(agent.Tools, tool.toDomain())
	}
	return agent
}

type threadDTO struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

func (d threadDTO) toDomain() domain.Thread {
	return domain.Thread{ID: domain.ThreadID(d.ID), CreatedAt: unixTime(d.CreatedAt)}
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageTextDTO struct {
	Value string `json:"value"`
}

type messageContentDTO struct {
	Type string         `json:"type"`
	Text messageTextDTO `json:"text"`
}

type messageDTO struct {
	ID        string              `json:"id"`
	ThreadID  string              `json:"thread_id"`
	Role      string              `json:"role"`
	Content   []messageContentDTO `json:"content"`
	CreatedAt int64               `json:"created_at"`
}

func (d messageDTO) toDomain() domain.Message {
	message := domain.Message{
		ID:        domain.MessageID(d.ID),
		ThreadID:  domain.ThreadID(d.ThreadID),
		Role:      domain.MessageRole(d.Role),
		CreatedAt: unixTime(d.CreatedAt),
	}
	for _, content := range d.Content {
		if content.Type != "text" {
			continue
		}
		message.Texts = append(message.Texts, content.Text.Value)
	}
	return message
}

type messageListDTO struct {
	Data []messageDTO `json:"data"`
}

// createRunRequest carries the allow-list snapshot taken at submission
// time; runs created without a registration omit tools and inherit the
// agent's stored definition.
type createRunRequest struct {
	AssistantID string       `json:"assistant_id"`
	Tools       []mcpToolDTO `json:"tools,omitempty"`
}

type requiredToolCallDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
	ServerLabel string `json:"server_label"`
}

type submitToolApprovalDTO struct {
	ToolCalls []requiredToolCallDTO `json:"tool_calls"`
}

// requiredActionDTO keeps the action's type tag even when the payload is
// one this client does not understand; the poller decides what to do with
// unknown tags.
type requiredActionDTO struct {
	Type               string                `json:"type"`
	SubmitToolApproval submitToolApprovalDTO `json:"submit_tool_approval"`
}

func (d *requiredActionDTO) toDomain() *domain.RequiredAction {
	if d == nil {
		return nil
	}
	action := &domain.RequiredAction{Type: d.Type}
	for _, call := range d.SubmitToolApproval.ToolCalls {
		action.ToolCalls = append(action.ToolCalls, domain.RequiredToolCall{
			ID:          call.ID,
			Type:        call.Type,
			Name:        call.Name,
			Arguments:   call.Arguments,
			ServerLabel: call.ServerLabel,
		})
	}
	return action
}

type runErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type runDTO struct {
	ID             string             `json:"id"`
	ThreadID       string             `json:"thread_id"`
	AssistantID    string             `json:"assistant_id"`
	Status         string             `json:"status"`
	RequiredAction *requiredActionDTO `json:"required_action"`
	LastError      *runErrorDTO       `json:"last_error"`
	CreatedAt      int64              `json:"created_at"`
}

func (d runDTO) toDomain() domain.Run {
	run := domain.Run{
		ID:             domain.RunID(d.ID),
		ThreadID:       domain.ThreadID(d.ThreadID),
		AgentID:        domain.AgentID(d.AssistantID),
		Status:         domain.RunStatus(d.Status),
		RequiredAction: d.RequiredAction.toDomain(),
		CreatedAt:      unixTime(d.CreatedAt),
	}
	if d.LastError != nil {
		run.LastError = &domain.RunError{Code: d.LastError.Code, Message: d.LastError.Message}
	}
	return run
}

type toolApprovalDTO struct {
	ToolCallID string `json:"tool_call_id"`
	Approve    bool   `json:"approve"`
}

type submitToolApprovalsRequest struct {
	ToolApprovals []toolApprovalDTO `json:"tool_approvals"`
}

type stepToolCallDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
	Output      string `json:"output"`
	ServerLabel string `json:"server_label"`
}

type messageCreationDTO struct {
	MessageID string `json:"message_id"`
}

// stepActivityDTO is the MCP variant of step details: each activity keys a
// map of invoked tools by name.
type stepActivityDTO struct {
	Tools map[string]json.RawMessage `json:"tools"`
}

type stepDetailsDTO struct {
	Type            string             `json:"type"`
	ToolCalls       []stepToolCallDTO  `json:"tool_calls"`
	Activities      []stepActivityDTO  `json:"activities"`
	MessageCreation messageCreationDTO `json:"message_creation"`
}

type runStepDTO struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	StepDetails stepDetailsDTO `json:"step_details"`
}

func (d runStepDTO) toDomain() domain.RunStep {
	step := domain.RunStep{
		ID:        domain.StepID(d.ID),
		RunID:     domain.RunID(d.RunID),
		Type:      d.Type,
		Status:    d.Status,
		MessageID: domain.MessageID(d.StepDetails.MessageCreation.MessageID),
	}
	for _, call := range d.StepDetails.ToolCalls {
		step.ToolCalls = append(step.ToolCalls, domain.StepToolCall{
			ID:          call.ID,
			Type:        call.Type,
			Name:        call.Name,
			Arguments:   call.Arguments,
			Output:      call.Output,
			ServerLabel: call.ServerLabel,
		})
	}
	// Activity maps have no wire order; sorted names keep the output stable.
	for _, activity := range d.StepDetails.Activities {
		names := make([]string, 0, len(activity.Tools))
		for name := range activity.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			step.ToolCalls = append(step.ToolCalls, domain.StepToolCall{Type: "mcp", Name: name})
		}
	}
	return step
}

type runStepListDTO struct {
	Data []runStepDTO `json:"data"`
}

type apiErrorBody struct {
	Error runErrorDTO `json:"error"`
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
