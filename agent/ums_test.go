package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mascoordinator/core"
)

func newUMSServer(t *testing.T, handler func(w http.ResponseWriter, body umsRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/openai/deployments/ums-agent/chat/completions", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Api-Key"))
		assert.Equal(t, "conv-1", r.Header.Get("X-Conversation-Id"))

		var body umsRequest
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		handler(w, body)
	}))
}

func newTestUMSGateway(url string) *UMSGateway {
	return NewUMSGateway(url+"/", func(o *UMSOptions) {
		o.APIKey = "key-1"
		o.ConversationID = "conv-1"
		o.Timeout = 5 * time.Second
	})
}

func TestUMSGateway_Stream(t *testing.T) {
	srv := newUMSServer(t, func(w http.ResponseWriter, body umsRequest) {
		assert.True(t, body.Stream)
		if !assert.Len(t, body.Messages, 1) {
			return
		}
		assert.Equal(t, "Create a new account for Jane\n\n## Additional instructions:\ncreate account for Jane", body.Messages[0].Content)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"role":"assistant","content":"Account "}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"created","custom_content":{"id":42}}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	defer srv.Close()

	progress := &progressRecorder{}
	msg, err := newTestUMSGateway(srv.URL).Respond(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "Create a new account for Jane", CustomContent: core.CustomContent{"ui": true}},
	}, "create account for Jane", progress)
	require.NoError(t, err)

	assert.Equal(t, core.RoleAssistant, msg.Role)
	assert.Equal(t, "Account created", msg.Content)
	assert.Equal(t, core.CustomContent{"id": float64(42)}, msg.CustomContent)
	assert.Equal(t, []string{"Account ", "created"}, progress.parts)
}

func TestUMSGateway_JSONCompletion(t *testing.T) {
	srv := newUMSServer(t, func(w http.ResponseWriter, _ umsRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"done","custom_content":{"state":{"k":"v"}}},"finish_reason":"stop"}]}`)
	})
	defer srv.Close()

	msg, err := newTestUMSGateway(srv.URL).Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
	assert.Equal(t, map[string]any{"k": "v"}, msg.CustomContent["state"])
}

func TestUMSGateway_StreamCustomContent(t *testing.T) {
	srv := newUMSServer(t, func(w http.ResponseWriter, _ umsRequest) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"choices":[{"index":0,"delta":{"role":"assistant","custom_content":{"stages":[{"index":0,"name":"Create user"}]}}}]}`,
			`{"choices":[{"index":0,"delta":{"custom_content":{"stages":[{"index":0,"content":"Checking name..."}]}}}]}`,
			`{"choices":[{"index":0,"delta":{"custom_content":{"attachments":[{"title":"one.csv"}]}}}]}`,
			`{"choices":[{"index":0,"delta":{"custom_content":{"attachments":[{"title":"two.csv"}]}}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"Created","custom_content":{"id":42}}}]}`,
			`{"choices":[{"index":0,"delta":{"custom_content":{"stages":[{"index":0,"status":"completed"}]}},"finish_reason":"stop"}]}`,
		} {
			_, _ = io.WriteString(w, "data: "+chunk+"\n\n")
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	defer srv.Close()

	progress := &progressRecorder{}
	msg, err := newTestUMSGateway(srv.URL).Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", progress)
	require.NoError(t, err)

	assert.Equal(t, "Created", msg.Content)
	assert.Equal(t, []any{
		map[string]any{"title": "one.csv"},
		map[string]any{"title": "two.csv"},
	}, msg.CustomContent[attachmentsKey])
	assert.Equal(t, float64(42), msg.CustomContent["id"])
	assert.NotContains(t, msg.CustomContent, stagesKey)
	assert.Equal(t, []string{"Checking name...", "Created"}, progress.parts)
}

func TestUMSGateway_JSONCompletionDropsStages(t *testing.T) {
	srv := newUMSServer(t, func(w http.ResponseWriter, _ umsRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"done","custom_content":{"stages":[{"index":0,"name":"Lookup","content":"found"}],"attachments":[{"title":"a.csv"}]}},"finish_reason":"stop"}]}`)
	})
	defer srv.Close()

	progress := &progressRecorder{}
	msg, err := newTestUMSGateway(srv.URL).Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", progress)
	require.NoError(t, err)
	assert.Equal(t, core.CustomContent{attachmentsKey: []any{map[string]any{"title": "a.csv"}}}, msg.CustomContent)
	assert.ElementsMatch(t, []string{"done", "found"}, progress.parts)
}

func TestUMSGateway_SharedClientUntouched(t *testing.T) {
	srv := newUMSServer(t, func(w http.ResponseWriter, _ umsRequest) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"ok"}}]}`+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	defer srv.Close()

	shared := resty.New()
	g := NewUMSGateway(srv.URL, func(o *UMSOptions) {
		o.APIKey = "key-1"
		o.ConversationID = "conv-1"
		o.Timeout = time.Second
		o.Client = shared
	})

	msg, err := g.Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)

	assert.Empty(t, shared.Header.Get("Accept"))
	assert.Empty(t, shared.Header.Get("Content-Type"))
	assert.Zero(t, shared.GetClient().Timeout)
}

func TestUMSGateway_Timeout(t *testing.T) {
	srv := newUMSServer(t, func(w http.ResponseWriter, _ umsRequest) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"slow"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		time.Sleep(500 * time.Millisecond)
	})
	defer srv.Close()

	g := NewUMSGateway(srv.URL, func(o *UMSOptions) {
		o.APIKey = "key-1"
		o.ConversationID = "conv-1"
		o.Timeout = 50 * time.Millisecond
	})

	_, err := g.Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", nil)
	require.ErrorIs(t, err, ErrAgentTransport)
}

func TestUMSGateway_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, body umsRequest)
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ umsRequest) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "upstream down")
			},
			want: "ums agent returned 502: upstream down",
		},
		{
			name: "truncated stream",
			handler: func(w http.ResponseWriter, _ umsRequest) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"Acc"}}]}`+"\n\n")
			},
			want: "without [DONE]",
		},
		{
			name: "malformed chunk",
			handler: func(w http.ResponseWriter, _ umsRequest) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "data: {not json\n\n")
			},
			want: "malformed ums agent chunk",
		},
		{
			name: "error chunk",
			handler: func(w http.ResponseWriter, _ umsRequest) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, `data: {"error":{"message":"user store offline"}}`+"\n\n")
			},
			want: "user store offline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUMSServer(t, tt.handler)
			defer srv.Close()

			_, err := newTestUMSGateway(srv.URL).Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", nil)
			require.ErrorIs(t, err, ErrAgentTransport)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUMSGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestUMSGateway(url).Respond(context.Background(), []core.Message{core.NewUserMessage("q")}, "", nil)
	assert.ErrorIs(t, err, ErrAgentTransport)
}
