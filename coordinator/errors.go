package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned for requests the pipeline cannot run.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDecisionTransport wraps failures of the decision call.
	ErrDecisionTransport = errors.New("decision call failed")
	// ErrInvalidDecision is returned when the decision does not match its schema.
	ErrInvalidDecision = errors.New("invalid coordination decision")
	// ErrSynthesis wraps failures of the synthesis call.
	ErrSynthesis = errors.New("synthesis call failed")
	// ErrStreamTruncated is returned when the synthesis stream ends without a
	// finish signal.
	ErrStreamTruncated = errors.New("synthesis stream truncated")
)

// Phase names a step of the pipeline.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseDecide     Phase = "decide"
	PhaseDispatch   Phase = "dispatch"
	PhaseSynthesize Phase = "synthesize"
)

// PhaseError reports the phase a request failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// PhaseOf returns the phase err was raised in, if it carries one.
func PhaseOf(err error) (Phase, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}
