// Package rest talks to an Azure AI Foundry project's agents endpoints.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

const (
	defaultAPIVersion     = "v1"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 1 << 20
)

type Config struct {
	Endpoint       string // project endpoint, e.g. https://res.services.ai.azure.com/api/projects/demo
	APIVersion     string
	Token          string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

type Client struct {
	endpoint       *url.URL
	apiVersion     string
	token          string
	httpClient     *http.Client
	requestTimeout time.Duration
}

var _ ports.AgentsAPI = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("project endpoint is required")
	}
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse project endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("project endpoint must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("project endpoint host is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("access token is required")
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &Client{
		endpoint:       parsed,
		apiVersion:     apiVersion,
		token:          cfg.Token,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) CreateAgent(ctx context.Context, def domain.AgentDefinition) (domain.Agent, error) {
	if err := def.Validate(); err != nil {
		return domain.Agent{}, err
	}

	body := createAgentRequest{
		Name:         def.Name,
		Model:        def.Model,
		Instructions: def.Instructions,
		Tools:        []mcpToolDTO{mcpToolFromDomain(def.Tool)},
	}

	var dto agentDTO
	if err := c.doJSON(ctx, http.MethodPost, nil, body, &dto, "assistants"); err != nil {
		return domain.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) GetAgent(ctx context.Context, id domain.AgentID) (domain.Agent, error) {
	if id == "" {
		return domain.Agent{}, errors.New("agent id is required")
	}

	var dto agentDTO
	if err := c.doJSON(ctx, http.MethodGet, nil, nil, &dto, "assistants", string(id)); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return domain.Agent{}, fmt.Errorf("get agent %s: %w", id, domain.ErrAgentNotFound)
		}
		return domain.Agent{}, fmt.Errorf("get agent %s: %w", id, err)
	}
	return dto.toDomain(), nil
}

func (c *Client) CreateThread(ctx context.Context) (domain.Thread, error) {
	var dto threadDTO
	if err := c.doJSON(ctx, http.MethodPost, nil, struct{}{}, &dto, "threads"); err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID domain.ThreadID, role domain.MessageRole, text string) (domain.Message, error) {
	if threadID == "" {
		return domain.Message{}, errors.New("thread id is required")
	}

	body := createMessageRequest{Role: string(role), Content: text}

	var dto messageDTO
	if err := c.doJSON(ctx, http.MethodPost, nil, body, &dto, "threads", string(threadID), "messages"); err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) LatestAssistantMessage(ctx context.Context, threadID domain.ThreadID) (domain.Message, error) {
	if threadID == "" {
		return domain.Message{}, errors.New("thread id is required")
	}

	query := url.Values{}
	query.Set("order", "desc")
	query.Set("limit", "20")

	var dto messageListDTO
	if err := c.doJSON(ctx, http.MethodGet, query, nil, &dto, "threads", string(threadID), "messages"); err != nil {
		return domain.Message{}, fmt.Errorf("list messages: %w", err)
	}

	for _, message := range dto.Data {
		candidate := message.toDomain()
		if candidate.Role == domain.MessageRoleAssistant && len(candidate.Texts) > 0 {
			return candidate, nil
		}
	}
	return domain.Message{}, domain.ErrMessageNotFound
}

func (c *Client) CreateRun(ctx context.Context, threadID domain.ThreadID, agentID domain.AgentID, tools []domain.ToolRegistration) (domain.Run, error) {
	if threadID == "" {
		return domain.Run{}, errors.New("thread id is required")
	}
	if agentID == "" {
		return domain.Run{}, errors.New("agent id is required")
	}

	body := createRunRequest{AssistantID: string(agentID)}
	for _, tool := range tools {
		body.Tools = append(body.Tools, mcpToolFromDomain(tool))
	}

	var dto runDTO
	if err := c.doJSON(ctx, http.MethodPost, nil, body, &dto, "threads", string(threadID), "runs"); err != nil {
		return domain.Run{}, fmt.Errorf("create run: %w", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) GetRun(ctx context.Context, threadID domain.ThreadID, runID domain.RunID) (domain.Run, error) {
	var dto runDTO
	if err := c.doJSON(ctx, http.MethodGet, nil, nil, &dto, "threads", string(threadID), "runs", string(runID)); err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) SubmitToolApprovals(ctx context.Context, threadID domain.ThreadID, runID domain.RunID, approvals []domain.ToolApproval) (domain.Run, error) {
	if len(approvals) == 0 {
		return domain.Run{}, errors.New("no tool approvals to submit")
	}

	body := submitToolApprovalsRequest{}
	for _, approval := range approvals {
		body.ToolApprovals = append(body.ToolApprovals, toolApprovalDTO{
			ToolCallID: approval.ToolCallID,
			Approve:    approval.Approve,
		})
	}

	var dto runDTO
	if err := c.doJSON(ctx, http.MethodPost, nil, body, &dto, "threads", string(threadID), "runs", string(runID), "submit_tool_outputs"); err != nil {
		return domain.Run{}, fmt.Errorf("submit tool approvals: %w", err)
	}
	return dto.toDomain(), nil
}

func (c *Client) ListRunSteps(ctx context.Context, threadID domain.ThreadID, runID domain.RunID) ([]domain.RunStep, error) {
	query := url.Values{}
	query.Set("order", "asc")

	var dto runStepListDTO
	if err := c.doJSON(ctx, http.MethodGet, query, nil, &dto, "threads", string(threadID), "runs", string(runID), "steps"); err != nil {
		return nil, fmt.Errorf("list run steps: %w", err)
	}

	steps := make([]domain.RunStep, 0, len(dto.Data))
	for _, step := range dto.Data {
		steps = append(steps, step.toDomain())
	}
	return steps, nil
}

// APIError is a non-2xx response decoded from the service's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

func (c *Client) doJSON(ctx context.Context, method string, query url.Values, body any, out any, segments ...string) error {
	endpoint := c.endpoint.JoinPath(segments...)
	values := url.Values{}
	for key, vals := range query {
		values[key] = vals
	}
	values.Set("api-version", c.apiVersion)
	endpoint.RawQuery = values.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("x-ms-client-request-id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body apiErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
