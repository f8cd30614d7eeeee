package server

import (
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/stage"
)

const (
	objectChunk      = "chat.completion.chunk"
	objectCompletion = "chat.completion"
	finishStop       = "stop"
	stagesKey        = "stages"
)

// ChatRequest is the inbound DIAL chat completion request. Fields the
// coordinator does not use are ignored.
type ChatRequest struct {
	Messages []core.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// Delta is the incremental message of a streamed chunk.
type Delta struct {
	Role          core.Role      `json:"role,omitempty"`
	Content       string         `json:"content,omitempty"`
	CustomContent map[string]any `json:"custom_content,omitempty"`
}

// ChunkChoice is one choice of a streamed chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Chunk is one SSE event of a streamed response.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// CompletionMessage is the assistant message of a non-streamed response.
type CompletionMessage struct {
	Role          core.Role      `json:"role"`
	Content       string         `json:"content"`
	CustomContent map[string]any `json:"custom_content,omitempty"`
}

// CompletionChoice is one choice of a non-streamed response.
type CompletionChoice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// Completion is the body of a non-streamed response.
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

// APIError is the error body, both as a JSON response and as an SSE event.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// deltaFor converts a pipeline update into a chunk delta.
func deltaFor(d stage.Delta) Delta {
	if d.Stage == nil {
		return Delta{Content: d.Content}
	}
	return Delta{CustomContent: map[string]any{stagesKey: []stage.StageDelta{*d.Stage}}}
}

// finalCustomContent is the payload of the last chunk. The stages key belongs
// to the coordinator and is never taken from the payload.
func finalCustomContent(payload core.CustomContent) map[string]any {
	if payload.IsEmpty() {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k != stagesKey {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// completionCustomContent merges the final payload with the folded stages.
func completionCustomContent(payload core.CustomContent, stages []stage.Snapshot) map[string]any {
	if payload.IsEmpty() && len(stages) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	if len(stages) > 0 {
		out[stagesKey] = stages
	}
	return out
}
