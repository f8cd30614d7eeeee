package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/model"
)

func collect(t *testing.T, m model.Model, req model.Request) ([]model.Response, error) {
	t.Helper()
	respCh, errCh := m.Generate(context.Background(), req)
	var out []model.Response
	err := model.Consume(respCh, errCh, func(r model.Response) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

func TestBuildMessages_SkipsSystemAndEmpty(t *testing.T) {
	msgs := []model.Message{
		{Role: core.RoleSystem, Content: "be brief"},
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: ""},
		{Role: core.RoleAssistant, Content: "hello"},
	}

	out := buildMessages(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))

	system := extractSystem(msgs)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)
}

func TestBuildSchemaTool(t *testing.T) {
	tool := buildSchemaTool(&model.ResponseSchema{
		Name:        "response",
		Description: "routing decision",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"agent_name": map[string]any{"type": "string"}},
			"required":   []any{"agent_name"},
		},
	})
	require.NotNil(t, tool.OfTool)
	assert.Equal(t, "response", tool.OfTool.Name)
	assert.Equal(t, []string{"agent_name"}, tool.OfTool.InputSchema.Required)
}

func TestGenerate_StructuredOutputForcesTool(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"tool_use","id":"tu_1","name":"response","input":{"agent_name":"UMS","additional_instructions":"find Jane"}}],
			"stop_reason":"tool_use","usage":{"input_tokens":4,"output_tokens":6}}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "key"
		o.BaseURL = srv.URL + "/"
	})

	out, err := collect(t, m, model.Request{
		Messages: []model.Message{
			{Role: core.RoleSystem, Content: "route"},
			{Role: core.RoleUser, Content: "find Jane"},
		},
		ResponseSchema: &model.ResponseSchema{
			Name:   "response",
			Schema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	var decision core.Decision
	require.NoError(t, json.Unmarshal([]byte(out[0].Content), &decision))
	assert.Equal(t, core.AgentUMS, decision.AgentName)
	assert.Equal(t, "find Jane", decision.AdditionalInstructions)
	assert.Equal(t, int64(10), out[0].Usage.TotalTokens)

	choice := body["tool_choice"].(map[string]any)
	assert.Equal(t, "tool", choice["type"])
	assert.Equal(t, "response", choice["name"])
	assert.NotNil(t, body["system"])
}

func TestGenerate_StructuredOutputWithoutToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"no"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "key"
		o.BaseURL = srv.URL + "/"
	})

	_, err := collect(t, m, model.Request{
		Messages:       []model.Message{{Role: core.RoleUser, Content: "hi"}},
		ResponseSchema: &model.ResponseSchema{Name: "response", Schema: map[string]any{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did not call "response"`)
}

func sseEvent(name string, payload string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload)
}

func TestGenerate_Streaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseEvent("message_start", `{"type":"message_start","message":{"id":"msg_2","type":"message","role":"assistant","model":"claude","content":[],"usage":{"input_tokens":1,"output_tokens":0}}}`))
		_, _ = io.WriteString(w, sseEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`))
		_, _ = io.WriteString(w, sseEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`))
		_, _ = io.WriteString(w, sseEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`))
		_, _ = io.WriteString(w, sseEvent("content_block_stop", `{"type":"content_block_stop","index":0}`))
		_, _ = io.WriteString(w, sseEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`))
		_, _ = io.WriteString(w, sseEvent("message_stop", `{"type":"message_stop"}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "key"
		o.BaseURL = srv.URL + "/"
	})

	out, err := collect(t, m, model.Request{
		Stream:   true,
		Messages: []model.Message{{Role: core.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "Hel", out[0].Content)
	assert.Equal(t, "lo", out[1].Content)
	assert.Equal(t, "Hello", out[2].Content)
	assert.Equal(t, "end_turn", out[2].FinishReason)
	assert.Equal(t, "anthropic", m.Info().Provider)
}
