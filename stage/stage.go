package stage

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/mascoordinator/logging"
)

// ErrStageClosed is returned when a stage is closed twice.
var ErrStageClosed = errors.New("stage already closed")

// Status is the terminal state of a stage.
type Status string

const (
	// StatusCompleted marks a stage whose step succeeded.
	StatusCompleted Status = "completed"
	// StatusFailed marks a stage whose step failed.
	StatusFailed Status = "failed"
)

// StageDelta is an incremental update of one stage. Name is only set on the
// first delta of a stage and Status only on the last one.
type StageDelta struct {
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
	Status  Status `json:"status,omitempty"`
}

// Delta is one update of the response choice: either a content fragment for
// the user or a stage update.
type Delta struct {
	Content string
	Stage   *StageDelta
}

// Sink receives deltas in emission order.
type Sink interface {
	Send(ctx context.Context, d Delta) error
}

// Options configure a Choice.
type Options struct {
	Logger logging.Logger
}

// Choice is the per-request response being streamed to the caller. It hands
// out stage indexes in opening order.
type Choice struct {
	sink   Sink
	logger logging.Logger

	mu   sync.Mutex
	next int
}

// NewChoice creates a Choice writing to sink. A nil sink discards updates.
func NewChoice(sink Sink, optFns ...func(o *Options)) *Choice {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if sink == nil {
		sink = Discard
	}
	return &Choice{sink: sink, logger: logging.OrNoOp(opts.Logger)}
}

// AppendContent emits a user-visible content fragment.
func (c *Choice) AppendContent(ctx context.Context, s string) error {
	if s == "" {
		return nil
	}
	return c.sink.Send(ctx, Delta{Content: s})
}

// OpenStage opens a named stage. Reporting failures are logged and never
// returned, so the step the stage narrates runs regardless.
func (c *Choice) OpenStage(ctx context.Context, name string) *Stage {
	c.mu.Lock()
	index := c.next
	c.next++
	c.mu.Unlock()

	s := &Stage{choice: c, index: index, name: name}
	s.send(ctx, StageDelta{Index: index, Name: name})
	return s
}

// Stage is one named progress segment.
type Stage struct {
	choice *Choice
	index  int
	name   string

	mu     sync.Mutex
	closed bool
}

// Index returns the position of the stage within its choice.
func (s *Stage) Index() int { return s.index }

// Name returns the stage label.
func (s *Stage) Name() string { return s.name }

// AppendContent adds text to the stage. Appends after Close are dropped.
func (s *Stage) AppendContent(ctx context.Context, content string) {
	if content == "" {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.choice.logger.Warn("append to closed stage dropped", "stage", s.name)
		return
	}
	s.send(ctx, StageDelta{Index: s.index, Content: content})
}

// Close finishes the stage with the given status.
func (s *Stage) Close(ctx context.Context, status Status) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStageClosed
	}
	s.closed = true
	s.mu.Unlock()

	return s.choice.sink.Send(ctx, Delta{Stage: &StageDelta{Index: s.index, Status: status}})
}

func (s *Stage) send(ctx context.Context, d StageDelta) {
	if err := s.choice.sink.Send(ctx, Delta{Stage: &d}); err != nil {
		s.choice.logger.Warn("stage update failed", "stage", s.name, "error", err)
	}
}

// CloseSafely closes s as completed when err is nil and as failed otherwise.
// It tolerates a nil or already closed stage and only logs reporting errors.
func CloseSafely(ctx context.Context, s *Stage, err error) {
	if s == nil {
		return
	}
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	// The request context may already be cancelled; the close still needs to
	// reach sinks that are draining.
	if cerr := s.Close(context.WithoutCancel(ctx), status); cerr != nil && !errors.Is(cerr, ErrStageClosed) {
		s.choice.logger.Warn("stage close failed", "stage", s.name, "error", cerr)
	}
}
