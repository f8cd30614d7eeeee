package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
)

// DispatcherOptions configure a Dispatcher.
type DispatcherOptions struct {
	Logger logging.Logger
}

// Dispatcher routes a decision to exactly one gateway.
type Dispatcher struct {
	gpa    Gateway
	ums    Gateway
	logger logging.Logger
}

// NewDispatcher creates a Dispatcher over one gateway per known agent.
func NewDispatcher(gpa, ums Gateway, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{gpa: gpa, ums: ums, logger: logging.OrNoOp(opts.Logger)}
}

// Gateway returns the gateway serving name.
func (d *Dispatcher) Gateway(name core.AgentName) (Gateway, error) {
	var gw Gateway
	switch name {
	case core.AgentGPA:
		gw = d.gpa
	case core.AgentUMS:
		gw = d.ums
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	if gw == nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayMissing, name)
	}
	return gw, nil
}

// Dispatch hands the conversation to the gateway named by decision. Gateway
// failures are returned unchanged in kind, always matching ErrAgentTransport.
func (d *Dispatcher) Dispatch(ctx context.Context, decision core.Decision, conversation []core.Message, progress ProgressSink) (core.Message, error) {
	gw, err := d.Gateway(decision.AgentName)
	if err != nil {
		return core.Message{}, err
	}

	d.logger.Debug("dispatching to agent", "agent", decision.AgentName)

	msg, err := gw.Respond(ctx, conversation, decision.AdditionalInstructions, progress)
	if err != nil {
		if !errors.Is(err, ErrAgentTransport) {
			err = fmt.Errorf("%w: %w", ErrAgentTransport, err)
		}
		return core.Message{}, fmt.Errorf("agent %s: %w", decision.AgentName, err)
	}

	msg.Role = core.RoleAssistant
	return msg, nil
}
