package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/model"
)

// GeneralPurposeOptions configure a GeneralPurposeGateway.
type GeneralPurposeOptions struct {
	Logger logging.Logger
}

// GeneralPurposeGateway calls the general purpose agent, an LLM deployment
// reached through the same chat completion API as the coordinator itself.
type GeneralPurposeGateway struct {
	llm    model.Model
	logger logging.Logger
}

// NewGeneralPurposeGateway creates a gateway talking to llm.
func NewGeneralPurposeGateway(llm model.Model, optFns ...func(o *GeneralPurposeOptions)) *GeneralPurposeGateway {
	opts := GeneralPurposeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &GeneralPurposeGateway{llm: llm, logger: logging.OrNoOp(opts.Logger)}
}

// Respond streams the agent answer into progress and returns it.
func (g *GeneralPurposeGateway) Respond(ctx context.Context, conversation []core.Message, instructions string, progress ProgressSink) (core.Message, error) {
	progress = progressOrDiscard(progress)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	info := g.llm.Info()
	g.logger.Debug("calling general purpose agent", "model", info.Name, "provider", info.Provider)

	respCh, errCh := g.llm.Generate(ctx, model.Request{
		Messages: forwardedConversation(conversation, instructions),
		Stream:   true,
	})

	var (
		content  strings.Builder
		finished bool
	)
	err := model.Consume(respCh, errCh, func(r model.Response) error {
		if r.Partial {
			content.WriteString(r.Content)
			progress.AppendContent(ctx, r.Content)
			return nil
		}
		if content.Len() == 0 && r.Content != "" {
			content.WriteString(r.Content)
			progress.AppendContent(ctx, r.Content)
		}
		finished = true
		return nil
	})
	if err != nil {
		return core.Message{}, fmt.Errorf("%w: general purpose agent: %w", ErrAgentTransport, err)
	}
	if !finished {
		return core.Message{}, fmt.Errorf("%w: general purpose agent stream ended without completion", ErrAgentTransport)
	}

	return core.NewAssistantMessage(content.String(), nil), nil
}
