package core

import "maps"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks instructions prepended by the coordinator.
	RoleSystem Role = "system"
	// RoleUser marks end user messages.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by an agent or the coordinator.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// CustomContent is an opaque structured payload attached to a message for the
// client UI (attachments, state, widgets). The coordinator carries it through
// unchanged and never forwards it to an LLM.
type CustomContent map[string]any

// IsEmpty reports whether the payload carries no keys.
func (c CustomContent) IsEmpty() bool { return len(c) == 0 }

// Clone returns a shallow copy so callers can merge without aliasing.
func (c CustomContent) Clone() CustomContent {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}

// Message is one conversation entry as received from or returned to the caller.
type Message struct {
	Role          Role          `json:"role"`
	Content       string        `json:"content"`
	CustomContent CustomContent `json:"custom_content,omitempty"`
}

// NewUserMessage builds a user message with plain text content.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant message carrying an optional payload.
func NewAssistantMessage(content string, custom CustomContent) Message {
	return Message{Role: RoleAssistant, Content: content, CustomContent: custom}
}

// HasCustomContent reports whether the message carries a non-empty payload.
func (m Message) HasCustomContent() bool { return !m.CustomContent.IsEmpty() }
