package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/metrics"
	"github.com/hupe1980/mascoordinator/model"
)

// ContentSink receives the user-visible fragments of the final answer.
type ContentSink interface {
	AppendContent(ctx context.Context, content string) error
}

// AugmentRequest combines the agent answer and the user request into the
// prompt of the synthesis call.
func AugmentRequest(agentContent, userRequest string) string {
	return fmt.Sprintf("## CONTEXT:\n %s\n ---\n ## USER_REQUEST: \n %s", agentContent, userRequest)
}

// SynthesizerOptions configure a Synthesizer.
type SynthesizerOptions struct {
	SystemPrompt string
	Logger       logging.Logger
	Metrics      *metrics.Metrics
}

// Synthesizer produces the final answer with one streaming LLM call.
type Synthesizer struct {
	llm     model.Model
	prompt  string
	logger  logging.Logger
	metrics *metrics.Metrics
}

// NewSynthesizer creates a Synthesizer using llm.
func NewSynthesizer(llm model.Model, optFns ...func(o *SynthesizerOptions)) *Synthesizer {
	opts := SynthesizerOptions{SystemPrompt: FinalResponsePrompt}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Synthesizer{
		llm:     llm,
		prompt:  opts.SystemPrompt,
		logger:  logging.OrNoOp(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Synthesize rewrites the last conversation entry as CONTEXT plus
// USER_REQUEST, streams the answer to out fragment by fragment and returns
// the final message carrying the agent's custom content. Fragments already
// forwarded stay visible when the stream fails.
func (s *Synthesizer) Synthesize(ctx context.Context, conversation []core.Message, agentMessage core.Message, out ContentSink) (core.Message, error) {
	if len(conversation) == 0 {
		return core.Message{}, fmt.Errorf("%w: empty conversation", ErrSynthesis)
	}

	history := BuildHistory(conversation, s.prompt)
	last := len(history) - 1
	history[last].Content = AugmentRequest(agentMessage.Content, history[last].Content)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	respCh, errCh := s.llm.Generate(ctx, model.Request{Messages: history, Stream: true})

	var (
		content  strings.Builder
		finished bool
	)
	forward := func(fragment string) error {
		content.WriteString(fragment)
		s.metrics.Fragment()
		if err := out.AppendContent(ctx, fragment); err != nil {
			return fmt.Errorf("forwarding fragment: %w", err)
		}
		return nil
	}

	err := model.Consume(respCh, errCh, func(r model.Response) error {
		if r.Partial {
			if r.Content == "" {
				return nil
			}
			return forward(r.Content)
		}
		finished = true
		if content.Len() == 0 && r.Content != "" {
			return forward(r.Content)
		}
		return nil
	})
	if err != nil {
		return core.Message{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if !finished {
		return core.Message{}, fmt.Errorf("%w: %w", ErrSynthesis, ErrStreamTruncated)
	}

	return core.NewAssistantMessage(content.String(), agentMessage.CustomContent.Clone()), nil
}
