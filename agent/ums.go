package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
)

// UMSOptions configure a UMSGateway.
type UMSOptions struct {
	// Deployment is the deployment name the UMS agent is served under.
	Deployment string
	// Timeout bounds the whole exchange including the stream. It is applied
	// per request, so a shared Client is left untouched.
	Timeout time.Duration
	// APIKey is forwarded in the Api-Key header.
	APIKey string
	// ConversationID is forwarded in the X-Conversation-Id header.
	ConversationID string
	Logger         logging.Logger
	// Client overrides the HTTP client. It is used as is and never modified.
	Client *resty.Client
}

// UMSGateway proxies the request to the user management service agent, a
// separate service speaking the streaming chat completion protocol.
type UMSGateway struct {
	endpoint string
	client   *resty.Client
	opts     UMSOptions
	logger   logging.Logger
}

// NewUMSGateway creates a gateway for the UMS agent served at endpoint.
func NewUMSGateway(endpoint string, optFns ...func(o *UMSOptions)) *UMSGateway {
	opts := UMSOptions{
		Deployment: "ums-agent",
		Timeout:    2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.Client
	if client == nil {
		client = resty.New()
	}

	return &UMSGateway{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

type umsMessage struct {
	Role    core.Role `json:"role"`
	Content string    `json:"content"`
}

type umsRequest struct {
	Messages []umsMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type umsError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type umsChunk struct {
	Choices []struct {
		Delta struct {
			Content       string         `json:"content"`
			CustomContent map[string]any `json:"custom_content"`
		} `json:"delta"`
		Message struct {
			Content       string         `json:"content"`
			CustomContent map[string]any `json:"custom_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *umsError `json:"error"`
}

func (g *UMSGateway) completionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions", g.endpoint, url.PathEscape(g.opts.Deployment))
}

// Respond posts the conversation to the UMS agent and relays its streamed
// content to progress. Custom content found in deltas is merged into the
// returned message: attachments accumulate, the agent's own stages are
// relayed to progress and dropped, other keys are replaced by later chunks.
func (g *UMSGateway) Respond(ctx context.Context, conversation []core.Message, instructions string, progress ProgressSink) (core.Message, error) {
	progress = progressOrDiscard(progress)

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	forwarded := forwardedConversation(conversation, instructions)
	body := umsRequest{Messages: make([]umsMessage, 0, len(forwarded)), Stream: true}
	for _, m := range forwarded {
		body.Messages = append(body.Messages, umsMessage{Role: m.Role, Content: m.Content})
	}

	req := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(body).
		SetDoNotParseResponse(true)
	if g.opts.APIKey != "" {
		req.SetHeader("Api-Key", g.opts.APIKey)
	}
	if g.opts.ConversationID != "" {
		req.SetHeader("X-Conversation-Id", g.opts.ConversationID)
	}

	g.logger.Debug("calling ums agent", "url", g.completionsURL())

	resp, err := req.Post(g.completionsURL())
	if err != nil {
		return core.Message{}, fmt.Errorf("%w: ums agent request: %w", ErrAgentTransport, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return core.Message{}, fmt.Errorf("%w: ums agent returned %d: %s", ErrAgentTransport, resp.StatusCode(), strings.TrimSpace(string(snippet)))
	}

	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		return g.readCompletion(ctx, raw, progress)
	}
	return g.readStream(ctx, raw, progress)
}

func (g *UMSGateway) readStream(ctx context.Context, r io.Reader, progress ProgressSink) (core.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		content strings.Builder
		custom  core.CustomContent
		done    bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			done = true
			break
		}

		var chunk umsChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return core.Message{}, fmt.Errorf("%w: malformed ums agent chunk: %w", ErrAgentTransport, err)
		}
		if chunk.Error != nil {
			return core.Message{}, fmt.Errorf("%w: ums agent error: %s", ErrAgentTransport, chunk.Error.Message)
		}

		for _, ch := range chunk.Choices {
			if ch.Delta.Content != "" {
				content.WriteString(ch.Delta.Content)
				progress.AppendContent(ctx, ch.Delta.Content)
			}
			custom = mergeCustomContent(ctx, custom, ch.Delta.CustomContent, progress)
		}
	}
	if err := scanner.Err(); err != nil {
		return core.Message{}, fmt.Errorf("%w: reading ums agent stream: %w", ErrAgentTransport, err)
	}
	if !done {
		return core.Message{}, fmt.Errorf("%w: ums agent stream ended without [DONE]", ErrAgentTransport)
	}

	g.logger.Debug("ums agent responded", "content_length", content.Len(), "custom_content", !custom.IsEmpty())

	return core.NewAssistantMessage(content.String(), custom), nil
}

// readCompletion handles agents that answer with a single JSON completion
// even though a stream was requested.
func (g *UMSGateway) readCompletion(ctx context.Context, r io.Reader, progress ProgressSink) (core.Message, error) {
	var completion umsChunk
	if err := json.NewDecoder(r).Decode(&completion); err != nil {
		return core.Message{}, fmt.Errorf("%w: malformed ums agent completion: %w", ErrAgentTransport, err)
	}
	if completion.Error != nil {
		return core.Message{}, fmt.Errorf("%w: ums agent error: %s", ErrAgentTransport, completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return core.Message{}, fmt.Errorf("%w: ums agent returned no choices", ErrAgentTransport)
	}

	msg := completion.Choices[0].Message
	progress.AppendContent(ctx, msg.Content)

	custom := mergeCustomContent(ctx, nil, msg.CustomContent, progress)
	return core.NewAssistantMessage(msg.Content, custom), nil
}

const (
	attachmentsKey = "attachments"
	stagesKey      = "stages"
)

// mergeCustomContent folds one payload delta into dst and returns it.
// Attachment lists accumulate across chunks. Stage content goes to progress
// and the stages themselves are not kept. Any other key is replaced.
func mergeCustomContent(ctx context.Context, dst core.CustomContent, src map[string]any, progress ProgressSink) core.CustomContent {
	for k, v := range src {
		if k == stagesKey {
			relayStages(ctx, v, progress)
			continue
		}
		if dst == nil {
			dst = core.CustomContent{}
		}
		if items, ok := v.([]any); ok && k == attachmentsKey {
			prev, _ := dst[k].([]any)
			dst[k] = append(prev, items...)
			continue
		}
		dst[k] = v
	}
	return dst
}

func relayStages(ctx context.Context, v any, progress ProgressSink) {
	items, _ := v.([]any)
	for _, item := range items {
		st, _ := item.(map[string]any)
		if content, _ := st["content"].(string); content != "" {
			progress.AppendContent(ctx, content)
		}
	}
}
