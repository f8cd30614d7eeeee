// Package anthropic provides a model.Model implementation for the Anthropic
// Messages API. Structured output is obtained by forcing a single tool call
// whose input schema is the requested response schema.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		if req.Stream && req.ResponseSchema == nil {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		content, err := responseText(resp, req.ResponseSchema)
		if err != nil {
			errCh <- err
			return
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		if err := send(ctx, out, model.Response{
			ID:           resp.ID,
			Content:      content,
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			},
		}); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func send(ctx context.Context, out chan<- model.Response, resp model.Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- resp:
		return nil
	}
}

// buildParams assembles the request; system entries move to the System field
// and a response schema becomes a forced tool call.
func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	if systemBlocks := extractSystem(req.Messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if rs := req.ResponseSchema; rs != nil {
		params.Tools = []anthropic.ToolUnionParam{buildSchemaTool(rs)}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: rs.Name},
		}
	}

	return params
}

// buildMessages converts normalized messages to Anthropic message params.
// Consecutive entries of the same role are allowed by the API.
func buildMessages(msgs []model.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return messages
}

func extractSystem(msgs []model.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range msgs {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

// buildSchemaTool exposes the response schema as the input schema of a tool.
func buildSchemaTool(rs *model.ResponseSchema) anthropic.ToolUnionParam {
	inputSchema := anthropic.ToolInputSchemaParam{
		Type: constant.Object("object"),
	}
	if properties, ok := rs.Schema["properties"]; ok {
		inputSchema.Properties = properties
	}
	switch required := rs.Schema["required"].(type) {
	case []string:
		inputSchema.Required = required
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	}

	tool := anthropic.ToolUnionParamOfTool(inputSchema, rs.Name)
	if rs.Description != "" && tool.OfTool != nil {
		tool.OfTool.Description = anthropic.String(rs.Description)
	}
	return tool
}

// responseText extracts the generated text, or the forced tool input when a
// response schema was requested.
func responseText(resp *anthropic.Message, rs *model.ResponseSchema) (string, error) {
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolBlock := block.AsToolUse()
			if rs == nil || toolBlock.Name != rs.Name {
				continue
			}
			args, err := json.Marshal(toolBlock.Input)
			if err != nil {
				return "", fmt.Errorf("anthropic tool input: %w", err)
			}
			return string(args), nil
		}
	}
	if rs != nil {
		return "", fmt.Errorf("anthropic response did not call %q", rs.Name)
	}
	return text.String(), nil
}

// handleStreaming forwards text deltas and emits the final response on
// message_stop. A stream without message_stop produces no final response.
func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		textBuilder strings.Builder
		id          string
		stopReason  string
	)

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			id = ev.Message.ID
		case anthropic.ContentBlockDeltaEvent:
			delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			textBuilder.WriteString(delta.Text)
			if err := send(ctx, out, model.Response{ID: id, Partial: true, Content: delta.Text}); err != nil {
				errCh <- err
				return
			}
		case anthropic.MessageDeltaEvent:
			stopReason = string(ev.Delta.StopReason)
		case anthropic.MessageStopEvent:
			if stopReason == "" {
				stopReason = "stop"
			}
			if err := send(ctx, out, model.Response{ID: id, Content: textBuilder.String(), FinishReason: stopReason}); err != nil {
				errCh <- err
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: "anthropic",
	}
}
