package testutil

import (
	"context"

	"github.com/hupe1980/mascoordinator/agent"
	"github.com/hupe1980/mascoordinator/core"
)

// ConversationBuilder helps construct conversations with fluent chaining.
// Example:
//
//	conv := NewConversation().User("hi").Assistant("hello", nil).User("bye").Build()
type ConversationBuilder struct {
	messages []core.Message
}

// NewConversation creates an empty builder.
func NewConversation() *ConversationBuilder {
	return &ConversationBuilder{}
}

// User appends a plain user message (chainable).
func (b *ConversationBuilder) User(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewUserMessage(content))
	return b
}

// UserWithCustom appends a user message carrying custom content (chainable).
func (b *ConversationBuilder) UserWithCustom(content string, custom core.CustomContent) *ConversationBuilder {
	b.messages = append(b.messages, core.Message{Role: core.RoleUser, Content: content, CustomContent: custom})
	return b
}

// Assistant appends an assistant message (chainable).
func (b *ConversationBuilder) Assistant(content string, custom core.CustomContent) *ConversationBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(content, custom))
	return b
}

// Build returns a copy of the conversation.
func (b *ConversationBuilder) Build() []core.Message {
	out := make([]core.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// AgentCall records one invocation of a StaticGateway.
type AgentCall struct {
	Conversation []core.Message
	Instructions string
}

// StaticGateway is an agent.Gateway returning a fixed reply. Progress lines
// are written to the sink before replying.
type StaticGateway struct {
	Reply    core.Message
	Err      error
	Progress []string

	Calls []AgentCall
}

// Respond implements agent.Gateway.
func (g *StaticGateway) Respond(ctx context.Context, conversation []core.Message, instructions string, progress agent.ProgressSink) (core.Message, error) {
	g.Calls = append(g.Calls, AgentCall{Conversation: conversation, Instructions: instructions})
	for _, p := range g.Progress {
		if progress != nil {
			progress.AppendContent(ctx, p)
		}
	}
	if g.Err != nil {
		return core.Message{}, g.Err
	}
	return g.Reply, nil
}
