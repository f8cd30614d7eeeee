package coordinator

import "fmt"

// State is the position of a request in the pipeline.
type State int

const (
	StateStart State = iota
	StateDecisionRequested
	StateDecisionReceived
	StateAgentDispatched
	StateAgentResponded
	StateSynthesisStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateDecisionRequested:
		return "DecisionRequested"
	case StateDecisionReceived:
		return "DecisionReceived"
	case StateAgentDispatched:
		return "AgentDispatched"
	case StateAgentResponded:
		return "AgentResponded"
	case StateSynthesisStreaming:
		return "SynthesisStreaming"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// run tracks the state of one request. Phases only move forward, one step at
// a time; leaving a terminal state is a programming error.
type run struct {
	state   State
	history []State
}

func newRun() *run {
	return &run{state: StateStart, history: []State{StateStart}}
}

func (r *run) advance(next State) {
	if r.state.Terminal() {
		panic(fmt.Sprintf("coordinator: transition %s -> %s out of terminal state", r.state, next))
	}
	if next != StateFailed && next != r.state+1 {
		panic(fmt.Sprintf("coordinator: invalid transition %s -> %s", r.state, next))
	}
	r.state = next
	r.history = append(r.history, next)
}

func (r *run) fail() {
	if r.state.Terminal() {
		return
	}
	r.advance(StateFailed)
}
