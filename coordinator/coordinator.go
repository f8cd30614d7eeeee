package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/mascoordinator/agent"
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/metrics"
	"github.com/hupe1980/mascoordinator/model"
	"github.com/hupe1980/mascoordinator/stage"
)

// Stage names shown to the caller.
const (
	CoordinationStageName = "Coordination Request"
	agentStageNameFormat  = "Call %s Agent"
)

// llmCallsPerRequest is the budget of one request: the decision and the
// synthesis.
const llmCallsPerRequest = 2

// AgentStageName returns the label of the stage narrating the agent call.
func AgentStageName(name core.AgentName) string {
	return fmt.Sprintf(agentStageNameFormat, name)
}

// Request is one inbound chat completion to coordinate.
type Request struct {
	// ConversationID correlates log lines; it is never sent to a model.
	ConversationID string
	// APIKey is the caller credential used for every downstream call.
	APIKey   string
	Messages []core.Message
}

// Validate checks that the conversation ends with a user message.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	if last := r.Messages[len(r.Messages)-1]; last.Role != core.RoleUser {
		return fmt.Errorf("%w: last message must come from the user, got %s", ErrInvalidRequest, last.Role)
	}
	return nil
}

// Downstream holds the per-request clients of a pipeline run.
type Downstream struct {
	// LLM serves both the decision and the synthesis call.
	LLM        model.Model
	Dispatcher *agent.Dispatcher
}

// Connector builds the downstream clients for a request, typically bound to
// the caller's credentials.
type Connector interface {
	Connect(ctx context.Context, req Request) (*Downstream, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, req Request) (*Downstream, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, req Request) (*Downstream, error) {
	return f(ctx, req)
}

// Options configure a Coordinator.
type Options struct {
	Logger  logging.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Metrics
	// CoordinationPrompt overrides the rendered decision prompt.
	CoordinationPrompt string
	// FinalResponsePrompt overrides the synthesis prompt.
	FinalResponsePrompt string
}

// Coordinator runs the decide, dispatch and synthesize pipeline. It holds no
// per-request state and is safe for concurrent use.
type Coordinator struct {
	connector Connector
	opts      Options
	logger    logging.Logger
	tracer    trace.Tracer
}

// New creates a Coordinator.
func New(connector Connector, optFns ...func(o *Options)) (*Coordinator, error) {
	opts := Options{FinalResponsePrompt: FinalResponsePrompt}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.CoordinationPrompt == "" {
		prompt, err := CoordinationPrompt()
		if err != nil {
			return nil, err
		}
		opts.CoordinationPrompt = prompt
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("coordinator")
	}

	return &Coordinator{
		connector: connector,
		opts:      opts,
		logger:    logging.OrNoOp(opts.Logger),
		tracer:    tracer,
	}, nil
}

// pipeline is the state of one HandleRequest call.
type pipeline struct {
	*Coordinator
	run    *run
	logger logging.Logger
	span   trace.Span
}

// HandleRequest coordinates one request. Progress and the streamed answer go
// to choice; the returned message is complete only when err is nil. Every
// error is a *PhaseError.
func (c *Coordinator) HandleRequest(ctx context.Context, choice *stage.Choice, req Request) (core.Message, error) {
	start := time.Now()

	p := &pipeline{
		Coordinator: c,
		run:         newRun(),
		logger:      logging.With(c.logger, "conversation_id", req.ConversationID, "request_id", core.NewID()),
	}

	ctx, p.span = c.tracer.Start(ctx, "coordinator.HandleRequest",
		trace.WithAttributes(attribute.String("conversation.id", req.ConversationID)))
	defer p.span.End()

	c.opts.Metrics.RequestStarted()
	defer func() {
		c.opts.Metrics.RequestFinished(p.run.state.String(), time.Since(start))
		p.span.SetAttributes(attribute.String("pipeline.state", p.run.state.String()))
	}()

	p.logger.Info("processing chat completion request", "messages", len(req.Messages))

	if err := req.Validate(); err != nil {
		return core.Message{}, p.fail(PhaseSetup, err)
	}
	if err := ctx.Err(); err != nil {
		return core.Message{}, p.fail(PhaseSetup, err)
	}
	down, err := c.connector.Connect(ctx, req)
	if err != nil {
		return core.Message{}, p.fail(PhaseSetup, err)
	}
	limiter := model.NewCallLimiter(llmCallsPerRequest)
	down = &Downstream{LLM: model.WithLimiter(down.LLM, limiter), Dispatcher: down.Dispatcher}

	decision, err := p.decide(ctx, choice, down, req)
	if err != nil {
		return core.Message{}, p.fail(PhaseDecide, err)
	}

	agentMessage, err := p.dispatch(ctx, choice, down, decision, req)
	if err != nil {
		return core.Message{}, p.fail(PhaseDispatch, err)
	}

	final, err := p.synthesize(ctx, choice, down, agentMessage, req)
	if err != nil {
		return core.Message{}, p.fail(PhaseSynthesize, err)
	}

	p.run.advance(StateDone)
	p.logger.Info("final response", "content_length", len(final.Content), "custom_content", final.HasCustomContent(),
		"llm_calls", limiter.Count(), "duration", time.Since(start))

	return final, nil
}

// Decide runs only the decision phase for req, without progress reporting or
// dispatch. It is meant for operator debugging.
func (c *Coordinator) Decide(ctx context.Context, req Request) (core.Decision, error) {
	p := &pipeline{
		Coordinator: c,
		run:         newRun(),
		logger:      logging.With(c.logger, "conversation_id", req.ConversationID),
	}
	ctx, p.span = c.tracer.Start(ctx, "coordinator.Decide")
	defer p.span.End()

	if err := req.Validate(); err != nil {
		return core.Decision{}, p.fail(PhaseSetup, err)
	}
	down, err := c.connector.Connect(ctx, req)
	if err != nil {
		return core.Decision{}, p.fail(PhaseSetup, err)
	}
	down = &Downstream{LLM: model.WithLimiter(down.LLM, model.NewCallLimiter(1)), Dispatcher: down.Dispatcher}

	p.run.advance(StateDecisionRequested)
	decision, err := p.makeDecision(ctx, down, req)
	if err != nil {
		return core.Decision{}, p.fail(PhaseDecide, err)
	}
	p.run.advance(StateDecisionReceived)
	return decision, nil
}

func (p *pipeline) decide(ctx context.Context, choice *stage.Choice, down *Downstream, req Request) (core.Decision, error) {
	p.run.advance(StateDecisionRequested)

	ctx, span := p.tracer.Start(ctx, "coordinator.decide")
	defer span.End()
	start := time.Now()

	st := choice.OpenStage(ctx, CoordinationStageName)

	decision, err := p.makeDecision(ctx, down, req)
	if err == nil {
		p.reportDecision(ctx, st, decision)
	}
	stage.CloseSafely(ctx, st, err)

	p.opts.Metrics.Phase(string(PhaseDecide), time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		return core.Decision{}, err
	}

	span.SetAttributes(attribute.String("agent.name", decision.AgentName.String()))
	p.opts.Metrics.Decision(decision.AgentName.String())
	p.run.advance(StateDecisionReceived)
	return decision, nil
}

// reportDecision logs the decision and writes it to the stage as a fenced
// JSON block. Reporting failures never fail the phase.
func (p *pipeline) reportDecision(ctx context.Context, st *stage.Stage, decision core.Decision) {
	pretty, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		p.logger.Warn("failed to render coordination decision", "agent", decision.AgentName, "error", err)
		st.AppendContent(ctx, fmt.Sprintf("agent: %s\n\r", decision.AgentName))
		return
	}
	p.logger.Info("prepared coordination request", "decision", string(pretty))
	st.AppendContent(ctx, fmt.Sprintf("```json\n\r%s\n\r```\n\r", pretty))
}

func (p *pipeline) makeDecision(ctx context.Context, down *Downstream, req Request) (core.Decision, error) {
	dm, err := NewDecisionMaker(down.LLM, func(o *DecisionOptions) {
		o.SystemPrompt = p.opts.CoordinationPrompt
		o.Logger = p.logger
	})
	if err != nil {
		return core.Decision{}, err
	}
	return dm.Decide(ctx, req.Messages)
}

func (p *pipeline) dispatch(ctx context.Context, choice *stage.Choice, down *Downstream, decision core.Decision, req Request) (core.Message, error) {
	ctx, span := p.tracer.Start(ctx, "coordinator.dispatch",
		trace.WithAttributes(attribute.String("agent.name", decision.AgentName.String())))
	defer span.End()
	start := time.Now()

	st := choice.OpenStage(ctx, AgentStageName(decision.AgentName))
	p.run.advance(StateAgentDispatched)

	msg, err := core.Message{}, ctx.Err()
	if err == nil {
		msg, err = down.Dispatcher.Dispatch(ctx, decision, req.Messages, st)
	}
	stage.CloseSafely(ctx, st, err)

	p.opts.Metrics.Phase(string(PhaseDispatch), time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		return core.Message{}, err
	}

	p.logger.Info("agent response", "agent", decision.AgentName, "content_length", len(msg.Content),
		"custom_content", msg.HasCustomContent())
	p.run.advance(StateAgentResponded)
	return msg, nil
}

func (p *pipeline) synthesize(ctx context.Context, choice *stage.Choice, down *Downstream, agentMessage core.Message, req Request) (core.Message, error) {
	p.run.advance(StateSynthesisStreaming)

	ctx, span := p.tracer.Start(ctx, "coordinator.synthesize")
	defer span.End()
	start := time.Now()

	synth := NewSynthesizer(down.LLM, func(o *SynthesizerOptions) {
		o.SystemPrompt = p.opts.FinalResponsePrompt
		o.Logger = p.logger
		o.Metrics = p.opts.Metrics
	})
	final, err := synth.Synthesize(ctx, req.Messages, agentMessage, choice)

	p.opts.Metrics.Phase(string(PhaseSynthesize), time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		return core.Message{}, err
	}
	return final, nil
}

func (p *pipeline) fail(phase Phase, err error) error {
	p.run.fail()
	recordSpanError(p.span, err)
	p.logger.Error("error processing chat completion", "phase", phase, "error", err)
	return &PhaseError{Phase: phase, Err: err}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
