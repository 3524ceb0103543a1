package application

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

func requiredCalls(ids ...string) []domain.RequiredToolCall {
	calls := make([]domain.RequiredToolCall, 0, len(ids))
	for _, id := range ids {
		calls = append(calls, domain.RequiredToolCall{
			ID:          id,
			Type:        "mcp",
			Name:        "tool_" + id,
			ServerLabel: "github",
		})
	}
	return calls
}

func TestApproveAllMatchesEveryCallInOrder(t *testing.T) {
	t.Parallel()

	calls := requiredCalls("call_1", "call_2", "call_3")
	approvals, err := ApproveAll{}.Resolve(context.Background(), calls)
	require.NoError(t, err)

	require.Len(t, approvals, len(calls))
	for i, call := range calls {
		assert.Equal(t, call.ID, approvals[i].ToolCallID)
		assert.True(t, approvals[i].Approve)
	}
	require.NoError(t, validateApprovals(calls, approvals))
}

func TestDenyAllDeniesEveryCall(t *testing.T) {
	t.Parallel()

	calls := requiredCalls("call_1", "call_2")
	approvals, err := DenyAll{}.Resolve(context.Background(), calls)
	require.NoError(t, err)

	require.Len(t, approvals, 2)
	for i, approval := range approvals {
		assert.Equal(t, calls[i].ID, approval.ToolCallID)
		assert.False(t, approval.Approve)
		assert.Equal(t, "denied by policy", approval.Reason)
	}
}

func TestAllowListResolverFiltersByToolName(t *testing.T) {
	t.Parallel()

	calls := []domain.RequiredToolCall{
		{ID: "call_1", Name: "search_code"},
		{ID: "call_2", Name: "delete_repo"},
	}

	resolver := AllowListResolver{Set: StaticAllowedSet{"search_code"}}
	approvals, err := resolver.Resolve(context.Background(), calls)
	require.NoError(t, err)

	require.Len(t, approvals, 2)
	assert.True(t, approvals[0].Approve)
	assert.False(t, approvals[1].Approve)
	assert.Contains(t, approvals[1].Reason, "delete_repo")
}

func TestAllowListResolverEmptySetApprovesEverything(t *testing.T) {
	t.Parallel()

	calls := requiredCalls("call_1", "call_2")

	approvals, err := AllowListResolver{Set: StaticAllowedSet{}}.Resolve(context.Background(), calls)
	require.NoError(t, err)
	for _, approval := range approvals {
		assert.True(t, approval.Approve)
	}

	approvals, err = AllowListResolver{}.Resolve(context.Background(), calls)
	require.NoError(t, err)
	for _, approval := range approvals {
		assert.True(t, approval.Approve)
	}
}

func TestPromptResolverReadsOneDecisionPerCall(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("y\nn\nYES\n")
	var out bytes.Buffer
	resolver := NewPromptResolver(in, &out)

	calls := requiredCalls("call_1", "call_2", "call_3")
	approvals, err := resolver.Resolve(context.Background(), calls)
	require.NoError(t, err)

	require.Len(t, approvals, 3)
	assert.True(t, approvals[0].Approve)
	assert.False(t, approvals[1].Approve)
	assert.True(t, approvals[2].Approve)
	assert.Contains(t, out.String(), `Tool approval requested by "github": tool_call_1`)
	assert.Contains(t, out.String(), "Approve? [y/N]:")
}

func TestPromptResolverDeniesAfterInputCloses(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("y\n")
	var out bytes.Buffer
	resolver := NewPromptResolver(in, &out)

	calls := requiredCalls("call_1", "call_2", "call_3")
	approvals, err := resolver.Resolve(context.Background(), calls)
	require.NoError(t, err)

	require.Len(t, approvals, 3)
	assert.True(t, approvals[0].Approve)
	assert.False(t, approvals[1].Approve)
	assert.Equal(t, "input closed", approvals[1].Reason)
	assert.False(t, approvals[2].Approve)
	require.NoError(t, validateApprovals(calls, approvals))
}

func TestAuditedResolverLogsEveryDecision(t *testing.T) {
	t.Parallel()

	var logBuf bytes.Buffer
	resolver := AuditedResolver{
		Next: DenyAll{},
		Log:  zerolog.New(&logBuf),
	}

	calls := requiredCalls("call_1", "call_2")
	approvals, err := resolver.Resolve(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, approvals, 2)

	logged := logBuf.String()
	assert.Contains(t, logged, "tool approval decision")
	assert.Contains(t, logged, "call_1")
	assert.Contains(t, logged, "call_2")
	assert.Contains(t, logged, `"approved":false`)
	assert.Contains(t, logged, "tool_call_1")
}

func TestValidateApprovals(t *testing.T) {
	t.Parallel()

	calls := requiredCalls("call_1", "call_2")

	tests := []struct {
		name      string
		approvals []domain.ToolApproval
		wantErr   string
	}{
		{
			name: "matched pairs pass",
			approvals: []domain.ToolApproval{
				{ToolCallID: "call_1", Approve: true},
				{ToolCallID: "call_2", Approve: false},
			},
		},
		{
			name:      "missing decision",
			approvals: []domain.ToolApproval{{ToolCallID: "call_1", Approve: true}},
			wantErr:   "1 decisions for 2 tool calls",
		},
		{
			name: "extra decision",
			approvals: []domain.ToolApproval{
				{ToolCallID: "call_1", Approve: true},
				{ToolCallID: "call_2", Approve: true},
				{ToolCallID: "call_3", Approve: true},
			},
			wantErr: "3 decisions for 2 tool calls",
		},
		{
			name: "order swapped",
			approvals: []domain.ToolApproval{
				{ToolCallID: "call_2", Approve: true},
				{ToolCallID: "call_1", Approve: true},
			},
			wantErr: `decision 0 targets "call_2"`,
		},
		{
			name: "unknown id",
			approvals: []domain.ToolApproval{
				{ToolCallID: "call_1", Approve: true},
				{ToolCallID: "call_9", Approve: true},
			},
			wantErr: `decision 1 targets "call_9"`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateApprovals(calls, tc.approvals)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrApprovalMismatch)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
