package stage

import (
	"context"
	"strings"
	"sync"
)

type discard struct{}

func (discard) Send(context.Context, Delta) error { return nil }

// Discard is a Sink that drops every delta.
var Discard Sink = discard{}

// ChannelSink forwards deltas to a channel read by the transport layer. The
// producer closes it once the pipeline returns; the consumer must drain it.
type ChannelSink struct {
	ch   chan Delta
	once sync.Once
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Delta, buffer)}
}

// Send implements Sink.
func (s *ChannelSink) Send(ctx context.Context, d Delta) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- d:
		return nil
	}
}

// Updates returns the receive side of the sink.
func (s *ChannelSink) Updates() <-chan Delta { return s.ch }

// Close closes the channel. It must not be called while Send is in flight.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.ch) })
}

// Snapshot is the accumulated state of one stage.
type Snapshot struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Status  Status `json:"status,omitempty"`
}

// Recorder is an in-memory Sink that keeps every delta. It is used by the
// non-streaming transport and by tests.
type Recorder struct {
	mu     sync.Mutex
	deltas []Delta
}

// Send implements Sink.
func (r *Recorder) Send(_ context.Context, d Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Stage != nil {
		cp := *d.Stage
		d.Stage = &cp
	}
	r.deltas = append(r.deltas, d)
	return nil
}

// Deltas returns a copy of the recorded deltas.
func (r *Recorder) Deltas() []Delta {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delta, len(r.deltas))
	copy(out, r.deltas)
	return out
}

// Content returns the concatenated user-visible content.
func (r *Recorder) Content() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, d := range r.deltas {
		b.WriteString(d.Content)
	}
	return b.String()
}

// Stages folds the stage deltas into one snapshot per stage, ordered by index.
func (r *Recorder) Stages() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	pos := map[int]int{}
	for _, d := range r.deltas {
		if d.Stage == nil {
			continue
		}
		i, ok := pos[d.Stage.Index]
		if !ok {
			i = len(out)
			pos[d.Stage.Index] = i
			out = append(out, Snapshot{Index: d.Stage.Index})
		}
		if d.Stage.Name != "" {
			out[i].Name = d.Stage.Name
		}
		out[i].Content += d.Stage.Content
		if d.Stage.Status != "" {
			out[i].Status = d.Stage.Status
		}
	}
	return out
}
