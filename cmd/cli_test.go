package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommandPrintsVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
}

func TestCreateRequiresNameFlag(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "create", "--model", "gpt-4.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"name\" not set")
}

func TestCreateWithoutModelFails(t *testing.T) {
	t.Setenv("MODEL_DEPLOYMENT_NAME", "")

	_, _, err := executeCLI(t, t.TempDir(), "create", "--name", "my-mcp-agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model deployment name must be provided")
}

func TestCreateRegistersAgentAndStoresRecord(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	stdout, _, err := executeCLI(t, home,
		"create",
		"--name", "my-mcp-agent",
		"--model", "gpt-4.1",
		"--mcp-url", "https://gitmcp.io/Azure/azure-rest-api-specs",
		"--mcp-label", "github",
		"--allow", "fetch_docs",
		"--allow", "search_docs",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created agent \"my-mcp-agent\" with ID: agent_123")
	assert.Contains(t, stdout, "Stored mapping in")
	assert.Contains(t, stdout, filepath.Join(home, ".foundry", "agents.toml"))

	body := state.createAgentBody()
	assert.Contains(t, body, `"name":"my-mcp-agent"`)
	assert.Contains(t, body, `"model":"gpt-4.1"`)
	assert.Contains(t, body, `"type":"mcp"`)
	assert.Contains(t, body, `"server_label":"github"`)
	assert.Contains(t, body, `"allowed_tools":["fetch_docs","search_docs"]`)
	assert.Equal(t, "Bearer test-token", state.authHeader())
	assert.Equal(t, "v1", state.apiVersion())

	stdout, _, err = executeCLI(t, home, "agent", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "my-mcp-agent")
	assert.Contains(t, stdout, "agent_123")
}

func TestAgentListShowsSavedAgents(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLI(t, home, "agent", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "my-mcp-agent")
	assert.Contains(t, stdout, "agent_123")
	assert.Contains(t, stdout, "gpt-4.1")
}

func TestAgentShowPrintsRecordDetails(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLI(t, home, "agent", "show", "--name", "my-mcp-agent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Name:       my-mcp-agent")
	assert.Contains(t, stdout, "ID:         agent_123")
	assert.Contains(t, stdout, "Model:      gpt-4.1")
	assert.Contains(t, stdout, "MCP server: https://gitmcp.io/Azure/azure-rest-api-specs (github)")
	assert.Contains(t, stdout, "Allowed:    fetch_docs")
	assert.Contains(t, stdout, "Created:    2026-08-20T10:00:00Z")
}

func TestAgentShowUnknownNameFails(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	_, _, err := executeCLI(t, home, "agent", "show", "--name", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "look up agent \"ghost\"")
	assert.Contains(t, err.Error(), "agent not found")
}

func TestToolsListShowsAllowList(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLI(t, home, "tools", "list", "--name", "my-mcp-agent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Allowed tools: fetch_docs")
}

func TestToolsAllowAppendsAndDeduplicates(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLI(t, home,
		"tools", "allow", "search_docs", "fetch_docs", "--name", "my-mcp-agent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Allowed tools: fetch_docs, search_docs")

	stdout, _, err = executeCLI(t, home, "tools", "list", "--name", "my-mcp-agent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Allowed tools: fetch_docs, search_docs")
}

func TestToolsRevokeClearsAllowList(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLI(t, home,
		"tools", "revoke", "fetch_docs", "--name", "my-mcp-agent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Allowed tools: (all)")

	stdout, _, err = executeCLI(t, home, "agent", "show", "--name", "my-mcp-agent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Allowed:    (all tools)")
}

func TestToolsDiscoverRequiresExactlyOneSource(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	_, _, err := executeCLI(t, home, "tools", "discover")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --url or --name is required")

	_, _, err = executeCLI(t, home,
		"tools", "discover", "--url", "http://localhost:1", "--name", "my-mcp-agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --url or --name is required")
}

func TestToolsDiscoverRejectsUnknownTransport(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(),
		"tools", "discover", "--url", "http://localhost:1", "--transport", "grpc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport \"grpc\" (http|sse|auto)")
}

func TestToolsDiscoverListsAdvertisedTools(t *testing.T) {
	server := newMCPToolServer(t)

	stdout, _, err := executeCLI(t, t.TempDir(),
		"tools", "discover", "--url", server.URL, "--transport", "http")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Server: docs-mcp 1.2.0")
	assert.Contains(t, stdout, "fetch_docs\tFetch documentation pages.")
}

func TestRunFailsWhenAgentUnknown(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	_, _, err := executeCLI(t, home, "run", "--name", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent not found")
}

func TestRunRequiresProjectEndpoint(t *testing.T) {
	t.Setenv("PROJECT_ENDPOINT", "")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	_, _, err := executeCLI(t, home, "run", "--name", "my-mcp-agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJECT_ENDPOINT env var is required")
}

func TestRunRejectsUnknownApprovalPolicy(t *testing.T) {
	t.Setenv("PROJECT_ENDPOINT", "http://localhost:1")
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	_, _, err := executeCLI(t, home, "run", "--name", "my-mcp-agent", "--policy", "yolo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported approval policy \"yolo\"")
}

func TestRunInteractiveSessionApprovesAllowedToolCall(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLIWithInput(t, home, "check the docs\n:quit\n",
		"run", "--name", "my-mcp-agent", "--interval", "10ms")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Session thread ID: thread_1")
	assert.Contains(t, stdout, "Created message: msg_1")
	assert.Contains(t, stdout, "Run: run_1 (status: queued)")
	assert.Contains(t, stdout, "  Status: requires_action")
	assert.Contains(t, stdout, "Assistant:\nHere is what I found.")
	assert.Contains(t, stdout, "(Tool used: fetch_docs)")
	assert.Contains(t, stdout, "Exiting. (Agent not deleted; reuse with another session.)")

	approvals := state.approvals()
	require.Len(t, approvals, 1)
	assert.Contains(t, approvals[0], `"tool_call_id":"call_1"`)
	assert.Contains(t, approvals[0], `"approve":true`)

	runBodies := state.runCreateBodies()
	require.Len(t, runBodies, 1)
	assert.Contains(t, runBodies[0], `"assistant_id":"agent_123"`)
	assert.Contains(t, runBodies[0], `"server_label":"github"`)
	assert.Contains(t, runBodies[0], `"allowed_tools":["fetch_docs"]`,
		"the run submission carries the current allow-list")
}

func TestRunSessionMetaCommandsEditAllowList(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLIWithInput(t, home, ":tools\n:allow extra_tool\n:tools\n:quit\n",
		"run", "--name", "my-mcp-agent")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Allowed tools: fetch_docs")
	assert.Contains(t, stdout, "Allowed tool: extra_tool (applies from the next run)")
	assert.Contains(t, stdout, "Allowed tools: fetch_docs, extra_tool")
	assert.Empty(t, state.approvals(), "meta commands must not start runs")
}

func TestRunPollIntervalFromEnv(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")
	t.Setenv("FA_POLL_INTERVAL", "10ms")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLIWithInput(t, home, "check the docs\n:quit\n",
		"run", "--name", "my-mcp-agent")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Assistant:\nHere is what I found.")
	require.Len(t, state.approvals(), 1)
}

func TestEnvDurationParsesAndFallsBack(t *testing.T) {
	t.Setenv("FA_TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, envDuration("FA_TEST_DURATION"))

	t.Setenv("FA_TEST_DURATION", "soon")
	assert.Zero(t, envDuration("FA_TEST_DURATION"))

	t.Setenv("FA_TEST_DURATION", "")
	assert.Zero(t, envDuration("FA_TEST_DURATION"))
}

func TestRunPromptPolicyReadsApprovalFromSameStream(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLIWithInput(t, home, "check the docs\ny\n:quit\n",
		"run", "--name", "my-mcp-agent", "--policy", "prompt", "--interval", "10ms")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Tool approval requested by \"github\": fetch_docs")
	assert.Contains(t, stdout, "Approve? [y/N]: ")
	assert.Contains(t, stdout, "Assistant:\nHere is what I found.")

	approvals := state.approvals()
	require.Len(t, approvals, 1)
	assert.Contains(t, approvals[0], `"approve":true`)
}

func TestRunOneShotPrintsRunReport(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	stdout, _, err := executeCLI(t, home,
		"run", "--name", "my-mcp-agent", "--interval", "10ms",
		"--prompt", "check the docs", "--show-args")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Run run_1")
	assert.Contains(t, stdout, "agent: my-mcp-agent")
	assert.Contains(t, stdout, "status: completed")
	assert.Contains(t, stdout, "Here is what I found.")
	assert.Contains(t, stdout, "fetch_docs @ github")
	assert.Contains(t, stdout, `{"query":"docs"}`)
	assert.NotContains(t, stdout, "> ", "one-shot mode must not open the interactive prompt")

	require.Len(t, state.approvals(), 1)
}

func TestRunOneShotDenyPolicySubmitsDenials(t *testing.T) {
	server, state := newAgentsServer(t)

	t.Setenv("PROJECT_ENDPOINT", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "test-token")

	home := t.TempDir()
	require.NoError(t, writeAgentsFixture(home))

	_, _, err := executeCLI(t, home,
		"run", "--name", "my-mcp-agent", "--interval", "10ms",
		"--policy", "deny", "--prompt", "check the docs")
	require.NoError(t, err)

	approvals := state.approvals()
	require.Len(t, approvals, 1)
	assert.Contains(t, approvals[0], `"approve":false`)
}

func TestAuthStatusWhenSignedOut(t *testing.T) {
	t.Setenv("FA_ACCESS_TOKEN", "")

	stdout, _, err := executeCLI(t, t.TempDir(), "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Not signed in. Run `fa auth login device` or set FA_ACCESS_TOKEN.")
}

func TestAuthStatusPrefersEnvToken(t *testing.T) {
	t.Setenv("FA_ACCESS_TOKEN", "env-token")

	stdout, _, err := executeCLI(t, t.TempDir(), "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Using FA_ACCESS_TOKEN from the environment.")
}

func TestAuthSetThenStatusReportsExpiry(t *testing.T) {
	t.Setenv("FA_ACCESS_TOKEN", "")

	home := t.TempDir()
	stdout, _, err := executeCLI(t, home,
		"auth", "set", "--token", "stored-token", "--expires-in", "1h")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Token stored.")

	stdout, _, err = executeCLI(t, home, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in. Token expires at")
}

func TestAuthSetWithoutExpiryReportsNoExpiry(t *testing.T) {
	t.Setenv("FA_ACCESS_TOKEN", "")

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "auth", "set", "--token", "stored-token")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in (token has no recorded expiry).")
}

func TestAuthRemoveForgetsToken(t *testing.T) {
	t.Setenv("FA_ACCESS_TOKEN", "")

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "auth", "set", "--token", "stored-token")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "auth", "remove")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Token removed.")

	stdout, _, err = executeCLI(t, home, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Not signed in.")
}

func TestAuthLoginDeviceStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/devicecode":
			_, _ = fmt.Fprint(w, `{"device_code":"dev_123","user_code":"ABCD-1234","verification_uri":"https://microsoft.com/devicelogin","message":"To sign in, use a web browser to open https://microsoft.com/devicelogin and enter the code ABCD-1234 to authenticate.","interval":1,"expires_in":900}`)
		case "/token":
			_, _ = fmt.Fprint(w, `{"access_token":"access-token-123","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-token-456"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	t.Setenv("FA_AUTH_BASE_URL", server.URL)
	t.Setenv("FA_ACCESS_TOKEN", "")

	home := t.TempDir()
	stdout, _, err := executeCLI(t, home, "auth", "login", "device")
	require.NoError(t, err)
	assert.Contains(t, stdout, "enter the code ABCD-1234")
	assert.Contains(t, stdout, "Signed in. Token expires at")

	stdout, _, err = executeCLI(t, home, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in. Token expires at")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeAgentsFixture(home string) error {
	configDir := filepath.Join(home, ".foundry")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	agents := `version = 1

[[agents]]
name = "my-mcp-agent"
id = "agent_123"
model = "gpt-4.1"
created_at = "2026-08-20T10:00:00Z"

[agents.tool]
server_label = "github"
server_url = "https://gitmcp.io/Azure/azure-rest-api-specs"
allowed_tools = ["fetch_docs"]
`

	return os.WriteFile(filepath.Join(configDir, "agents.toml"), []byte(agents), 0o600)
}

// agentsServerState records what the fake agents service saw, so tests can
// assert on request bodies after the CLI returns.
type agentsServerState struct {
	mu             sync.Mutex
	runPolls       int
	createBody     string
	auth           string
	version        string
	runBodies      []string
	approvalBodies []string
}

func (s *agentsServerState) runCreateBodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.runBodies...)
}

func (s *agentsServerState) approvals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.approvalBodies...)
}

func (s *agentsServerState) createAgentBody() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createBody
}

func (s *agentsServerState) authHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *agentsServerState) apiVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// newAgentsServer fakes the agents service for one scripted exchange: the
// first run poll demands approval for call_1, the next one completes the
// run.
func newAgentsServer(t *testing.T) (*httptest.Server, *agentsServerState) {
	t.Helper()
	state := &agentsServerState{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		state.auth = r.Header.Get("Authorization")
		state.version = r.URL.Query().Get("api-version")
		state.mu.Unlock()

		switch r.Method + " " + r.URL.Path {
		case "POST /assistants":
			body := new(bytes.Buffer)
			_, _ = body.ReadFrom(r.Body)
			state.mu.Lock()
			state.createBody = body.String()
			state.mu.Unlock()
			_, _ = fmt.Fprint(w, `{"id":"agent_123","name":"my-mcp-agent","model":"gpt-4.1","tools":[{"type":"mcp","server_label":"github","server_url":"https://gitmcp.io/Azure/azure-rest-api-specs"}],"created_at":1755770400}`)
		case "GET /assistants/agent_123":
			_, _ = fmt.Fprint(w, `{"id":"agent_123","name":"my-mcp-agent","model":"gpt-4.1","tools":[{"type":"mcp","server_label":"github","server_url":"https://gitmcp.io/Azure/azure-rest-api-specs"}],"created_at":1755770400}`)
		case "POST /threads":
			_, _ = fmt.Fprint(w, `{"id":"thread_1","created_at":1755770400}`)
		case "POST /threads/thread_1/messages":
			_, _ = fmt.Fprint(w, `{"id":"msg_1","thread_id":"thread_1","role":"user","created_at":1755770400}`)
		case "GET /threads/thread_1/messages":
			_, _ = fmt.Fprint(w, `{"data":[{"id":"msg_2","thread_id":"thread_1","role":"assistant","content":[{"type":"text","text":{"value":"Here is what I found."}}],"created_at":1755770401}]}`)
		case "POST /threads/thread_1/runs":
			body := new(bytes.Buffer)
			_, _ = body.ReadFrom(r.Body)
			state.mu.Lock()
			state.runBodies = append(state.runBodies, body.String())
			state.mu.Unlock()
			_, _ = fmt.Fprint(w, `{"id":"run_1","thread_id":"thread_1","assistant_id":"agent_123","status":"queued","created_at":1755770400}`)
		case "GET /threads/thread_1/runs/run_1":
			state.mu.Lock()
			state.runPolls++
			polls := state.runPolls
			state.mu.Unlock()
			if polls == 1 {
				_, _ = fmt.Fprint(w, `{"id":"run_1","thread_id":"thread_1","assistant_id":"agent_123","status":"requires_action","required_action":{"type":"submit_tool_approval","submit_tool_approval":{"tool_calls":[{"id":"call_1","type":"mcp","name":"fetch_docs","arguments":"{\"query\":\"docs\"}","server_label":"github"}]}}}`)
				return
			}
			_, _ = fmt.Fprint(w, `{"id":"run_1","thread_id":"thread_1","assistant_id":"agent_123","status":"completed"}`)
		case "POST /threads/thread_1/runs/run_1/submit_tool_outputs":
			body := new(bytes.Buffer)
			_, _ = body.ReadFrom(r.Body)
			state.mu.Lock()
			state.approvalBodies = append(state.approvalBodies, body.String())
			state.mu.Unlock()
			_, _ = fmt.Fprint(w, `{"id":"run_1","thread_id":"thread_1","assistant_id":"agent_123","status":"in_progress"}`)
		case "GET /threads/thread_1/runs/run_1/steps":
			_, _ = fmt.Fprint(w, `{"data":[{"id":"step_1","run_id":"run_1","type":"tool_calls","status":"completed","step_details":{"type":"tool_calls","tool_calls":[{"id":"call_1","type":"mcp","name":"fetch_docs","arguments":"{\"query\":\"docs\"}","output":"{}","server_label":"github"}]}}]}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return server, state
}

// newMCPToolServer fakes a streamable HTTP MCP endpoint: JSON-RPC over POST
// with plain application/json responses.
func newMCPToolServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params struct {
				ProtocolVersion string `json:"protocolVersion"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode json-rpc request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "initialize":
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":%q,"capabilities":{"tools":{}},"serverInfo":{"name":"docs-mcp","version":"1.2.0"}}}`,
				req.ID, req.Params.ProtocolVersion)
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "tools/list":
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":{"tools":[{"name":"fetch_docs","description":"Fetch documentation pages.","inputSchema":{"type":"object"}}]}}`, req.ID)
		default:
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
		}
	}))
	t.Cleanup(server.Close)

	return server
}
