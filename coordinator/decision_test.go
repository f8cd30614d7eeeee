package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/internal/testutil"
	"github.com/hupe1980/mascoordinator/internal/util"
	"github.com/hupe1980/mascoordinator/model"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    core.Decision
		wantErr bool
	}{
		{
			name:    "gpa",
			content: `{"agent_name":"GPA","additional_instructions":""}`,
			want:    core.Decision{AgentName: core.AgentGPA},
		},
		{
			name:    "ums",
			content: `{"agent_name":"UMS","additional_instructions":"create account for Jane"}`,
			want:    core.Decision{AgentName: core.AgentUMS, AdditionalInstructions: "create account for Jane"},
		},
		{name: "not json", content: `GPA`, wantErr: true},
		{name: "missing agent", content: `{"additional_instructions":"x"}`, wantErr: true},
		{name: "missing instructions", content: `{"agent_name":"GPA"}`, wantErr: true},
		{name: "null agent", content: `{"agent_name":null,"additional_instructions":""}`, wantErr: true},
		{name: "unknown agent", content: `{"agent_name":"WEATHER","additional_instructions":""}`, wantErr: true},
		{name: "wrong type", content: `{"agent_name":"GPA","additional_instructions":7}`, wantErr: true},
		{name: "extra field", content: `{"agent_name":"GPA","additional_instructions":"","confidence":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision(tt.content)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDecision)
				assert.Equal(t, core.Decision{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDecision_ReportsField(t *testing.T) {
	_, err := ParseDecision(`{"agent_name":"WEATHER","additional_instructions":""}`)

	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "agent_name", verr.Field)
}

func TestDecisionMaker_Decide(t *testing.T) {
	llm := model.NewMockModel("gpt-4o").AddText(`{"agent_name":"UMS","additional_instructions":"find Jane"}`)
	dm, err := NewDecisionMaker(llm, func(o *DecisionOptions) { o.SystemPrompt = "route it" })
	require.NoError(t, err)

	conv := testutil.NewConversation().UserWithCustom("find Jane", core.CustomContent{"files": 1}).Build()
	decision, err := dm.Decide(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, core.AgentUMS, decision.AgentName)
	assert.Equal(t, "find Jane", decision.AdditionalInstructions)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].Stream)
	require.NotNil(t, reqs[0].ResponseSchema)
	assert.Equal(t, DecisionSchemaName, reqs[0].ResponseSchema.Name)
	assert.True(t, reqs[0].ResponseSchema.Strict)
	assert.Equal(t, []string{"agent_name", "additional_instructions"}, reqs[0].ResponseSchema.Schema["required"])
	assert.Equal(t, []model.Message{
		{Role: core.RoleSystem, Content: "route it"},
		{Role: core.RoleUser, Content: "find Jane"},
	}, reqs[0].Messages)
}

func TestDecisionMaker_Errors(t *testing.T) {
	conv := testutil.NewConversation().User("hi").Build()

	t.Run("transport", func(t *testing.T) {
		boom := errors.New("401 unauthorized")
		dm, err := NewDecisionMaker(model.NewMockModel("m").AddError(boom))
		require.NoError(t, err)

		_, err = dm.Decide(context.Background(), conv)
		require.ErrorIs(t, err, ErrDecisionTransport)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrInvalidDecision)
	})

	t.Run("invalid", func(t *testing.T) {
		dm, err := NewDecisionMaker(model.NewMockModel("m").AddText(`{"agent_name":"NOPE","additional_instructions":""}`))
		require.NoError(t, err)

		_, err = dm.Decide(context.Background(), conv)
		require.ErrorIs(t, err, ErrInvalidDecision)
		assert.NotErrorIs(t, err, ErrDecisionTransport)
	})

	t.Run("no completion", func(t *testing.T) {
		dm, err := NewDecisionMaker(model.NewMockModel("m").AddReply(model.Reply{OmitFinish: true}))
		require.NoError(t, err)

		_, err = dm.Decide(context.Background(), conv)
		assert.ErrorIs(t, err, ErrDecisionTransport)
	})
}
