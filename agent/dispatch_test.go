package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mascoordinator/core"
)

type MockGateway struct{ mock.Mock }

func (m *MockGateway) Respond(ctx context.Context, conversation []core.Message, instructions string, progress ProgressSink) (core.Message, error) {
	args := m.Called(ctx, conversation, instructions, progress)
	return args.Get(0).(core.Message), args.Error(1)
}

type progressRecorder struct{ parts []string }

func (p *progressRecorder) AppendContent(_ context.Context, s string) { p.parts = append(p.parts, s) }

func TestDispatch_RoutesToExactlyOneGateway(t *testing.T) {
	conversation := []core.Message{core.NewUserMessage("hello")}

	tests := []struct {
		name  core.AgentName
		reply string
	}{
		{core.AgentGPA, "from gpa"},
		{core.AgentUMS, "from ums"},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			gpa, ums := &MockGateway{}, &MockGateway{}
			target := gpa
			if tt.name == core.AgentUMS {
				target = ums
			}
			progress := &progressRecorder{}
			target.On("Respond", mock.Anything, conversation, "be nice", progress).
				Return(core.Message{Content: tt.reply}, nil).Once()

			d := NewDispatcher(gpa, ums)
			msg, err := d.Dispatch(context.Background(), core.Decision{AgentName: tt.name, AdditionalInstructions: "be nice"}, conversation, progress)
			require.NoError(t, err)
			assert.Equal(t, tt.reply, msg.Content)
			assert.Equal(t, core.RoleAssistant, msg.Role)

			gpa.AssertExpectations(t)
			ums.AssertExpectations(t)
			if tt.name == core.AgentUMS {
				gpa.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				ums.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestDispatch_UnknownAgentFailsBeforeAnyCall(t *testing.T) {
	gpa, ums := &MockGateway{}, &MockGateway{}
	d := NewDispatcher(gpa, ums)

	_, err := d.Dispatch(context.Background(), core.Decision{AgentName: "WEATHER"}, nil, nil)
	require.ErrorIs(t, err, ErrUnknownAgent)
	assert.NotErrorIs(t, err, ErrAgentTransport)

	gpa.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ums.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_MissingGateway(t *testing.T) {
	d := NewDispatcher(&MockGateway{}, nil)
	_, err := d.Dispatch(context.Background(), core.Decision{AgentName: core.AgentUMS}, nil, nil)
	assert.ErrorIs(t, err, ErrGatewayMissing)
}

func TestDispatch_GatewayErrorsAreTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")
	ums := GatewayFunc(func(context.Context, []core.Message, string, ProgressSink) (core.Message, error) {
		return core.Message{}, boom
	})

	d := NewDispatcher(nil, ums)
	_, err := d.Dispatch(context.Background(), core.Decision{AgentName: core.AgentUMS}, nil, nil)
	require.ErrorIs(t, err, ErrAgentTransport)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "agent UMS")
}

func TestForwardedConversation(t *testing.T) {
	conversation := []core.Message{
		{Role: core.RoleUser, Content: "first", CustomContent: core.CustomContent{"a": 1}},
		{Role: core.RoleAssistant, Content: "answer", CustomContent: core.CustomContent{"b": 2}},
		{Role: core.RoleUser, Content: "second"},
	}

	out := forwardedConversation(conversation, "use the search tool")
	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "answer", out[1].Content)
	assert.Equal(t, "second\n\n## Additional instructions:\nuse the search tool", out[2].Content)
	assert.Equal(t, "second", conversation[2].Content)

	plain := forwardedConversation(conversation, "")
	assert.Equal(t, "second", plain[2].Content)
}
