package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/internal/util"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/model"
)

// DecisionSchemaName is the name of the structured output schema.
const DecisionSchemaName = "response"

var decisionSchema = util.CreateSchema(core.Decision{})

// DecisionSchema returns the JSON schema every decision must satisfy.
func DecisionSchema() map[string]any { return decisionSchema }

// DecisionOptions configure a DecisionMaker.
type DecisionOptions struct {
	// SystemPrompt overrides the rendered coordination prompt.
	SystemPrompt string
	Logger       logging.Logger
}

// DecisionMaker classifies a conversation into a routing decision with one
// schema-constrained, non-streaming LLM call.
type DecisionMaker struct {
	llm    model.Model
	prompt string
	logger logging.Logger
}

// NewDecisionMaker creates a DecisionMaker using llm.
func NewDecisionMaker(llm model.Model, optFns ...func(o *DecisionOptions)) (*DecisionMaker, error) {
	opts := DecisionOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	prompt := opts.SystemPrompt
	if prompt == "" {
		var err error
		if prompt, err = CoordinationPrompt(); err != nil {
			return nil, err
		}
	}

	return &DecisionMaker{llm: llm, prompt: prompt, logger: logging.OrNoOp(opts.Logger)}, nil
}

// Decide asks the model which agent should handle conversation. It never
// falls back to a default agent.
func (d *DecisionMaker) Decide(ctx context.Context, conversation []core.Message) (core.Decision, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	respCh, errCh := d.llm.Generate(ctx, model.Request{
		Messages: BuildHistory(conversation, d.prompt),
		ResponseSchema: &model.ResponseSchema{
			Name:        DecisionSchemaName,
			Description: "Agent selected to handle the request",
			Schema:      decisionSchema,
			Strict:      true,
		},
	})

	var final *model.Response
	if err := model.Consume(respCh, errCh, func(r model.Response) error {
		if !r.Partial {
			final = &r
		}
		return nil
	}); err != nil {
		return core.Decision{}, fmt.Errorf("%w: %w", ErrDecisionTransport, err)
	}
	if final == nil {
		return core.Decision{}, fmt.Errorf("%w: no completion returned", ErrDecisionTransport)
	}

	d.logger.Debug("decision received", "content", final.Content)

	return ParseDecision(final.Content)
}

// ParseDecision decodes and validates a decision document.
func ParseDecision(content string) (core.Decision, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return core.Decision{}, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}
	if err := util.ValidateParameters(raw, decisionSchema); err != nil {
		return core.Decision{}, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}

	var decision core.Decision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return core.Decision{}, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}
	if err := decision.Validate(); err != nil {
		return core.Decision{}, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}
	return decision, nil
}
