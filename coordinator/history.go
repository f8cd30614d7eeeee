package coordinator

import (
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/model"
)

// BuildHistory prepends systemPrompt to conversation and reduces every entry
// to role and content. Custom content never reaches the model; a user message
// carrying it contributes its plain text only. The result has one entry more
// than conversation and its last entry is the last conversation message.
func BuildHistory(conversation []core.Message, systemPrompt string) []model.Message {
	history := make([]model.Message, 0, len(conversation)+1)
	history = append(history, model.Message{Role: core.RoleSystem, Content: systemPrompt})
	for _, m := range conversation {
		history = append(history, model.Message{Role: m.Role, Content: m.Content})
	}
	return history
}
