package agent

import (
	"context"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/model"
)

// ProgressSink receives the progress an agent narrates while it works. The
// coordinator passes the open "Call <Agent> Agent" stage here.
type ProgressSink interface {
	AppendContent(ctx context.Context, content string)
}

// Gateway is the uniform contract of every agent backend.
type Gateway interface {
	// Respond answers the conversation. instructions come from the routing
	// decision and may be empty. The returned message has the assistant role.
	Respond(ctx context.Context, conversation []core.Message, instructions string, progress ProgressSink) (core.Message, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, conversation []core.Message, instructions string, progress ProgressSink) (core.Message, error)

// Respond implements Gateway.
func (f GatewayFunc) Respond(ctx context.Context, conversation []core.Message, instructions string, progress ProgressSink) (core.Message, error) {
	return f(ctx, conversation, instructions, progress)
}

type discardProgress struct{}

func (discardProgress) AppendContent(context.Context, string) {}

func progressOrDiscard(p ProgressSink) ProgressSink {
	if p == nil {
		return discardProgress{}
	}
	return p
}

const instructionsHeader = "\n\n## Additional instructions:\n"

// forwardedConversation strips custom content and appends the routing
// instructions to the last user message. The input is not modified.
func forwardedConversation(conversation []core.Message, instructions string) []model.Message {
	out := make([]model.Message, 0, len(conversation))
	lastUser := -1
	for _, m := range conversation {
		if m.Role == core.RoleUser {
			lastUser = len(out)
		}
		out = append(out, model.Message{Role: m.Role, Content: m.Content})
	}
	if instructions != "" && lastUser >= 0 {
		out[lastUser].Content += instructionsHeader + instructions
	}
	return out
}
