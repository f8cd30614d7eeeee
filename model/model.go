package model

import (
	"context"

	"github.com/hupe1980/mascoordinator/core"
)

// Message is a provider-facing conversation entry. It deliberately carries
// only role and content so strict providers never see unset optional fields.
type Message struct {
	Role    core.Role `json:"role"`
	Content string    `json:"content"`
}

// ResponseSchema constrains generation to a JSON document matching Schema.
type ResponseSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      bool           `json:"strict"`
}

// Request captures the normalized model input.
type Request struct {
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseSchema *ResponseSchema `json:"response_schema,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is a partial or final chunk emitted by a model. Partial chunks
// carry an incremental text fragment in Content; the final chunk carries the
// complete text and a non-empty FinishReason.
type Response struct {
	ID           string      `json:"id,omitempty"`
	Partial      bool        `json:"partial"`
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", "tool_use", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "azure", "anthropic", "mock"
}

// Model is the minimal interface required to drive generation.
//
// Implementations close both channels when generation ends. At most one error
// is delivered and it is sent before the channels close. Sends respect ctx so
// a caller that stops reading must cancel ctx to release the producer.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Consume forwards every response to fn in arrival order and then returns the
// terminal error of the generation, if any. It stops early when fn fails; the
// caller must then cancel the context passed to Generate.
func Consume(respCh <-chan Response, errCh <-chan error, fn func(Response) error) error {
	for resp := range respCh {
		if err := fn(resp); err != nil {
			return err
		}
	}
	return <-errCh
}
