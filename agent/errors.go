package agent

import "errors"

var (
	// ErrUnknownAgent is returned when a decision names no known agent. It is
	// raised before any network call.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrGatewayMissing is returned when a known agent has no gateway wired.
	ErrGatewayMissing = errors.New("agent gateway not configured")
	// ErrAgentTransport wraps every failure talking to an agent: timeouts,
	// non-2xx replies, malformed or truncated streams.
	ErrAgentTransport = errors.New("agent transport failure")
)
