package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Reply scripts one MockModel generation.
type Reply struct {
	// Fragments are emitted as partial chunks when streaming; their
	// concatenation is the final content.
	Fragments []string
	// Err is delivered after the fragments.
	Err error
	// OmitFinish ends the stream without a final chunk, imitating a
	// connection cut mid-response.
	OmitFinish bool
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted replies are consumed in order; once exhausted it echoes the last
// message.
type MockModel struct {
	info Info

	mu       sync.Mutex
	replies  []Reply
	requests []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock"}}
}

// AddReply queues a scripted reply.
func (m *MockModel) AddReply(r Reply) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
	return m
}

// AddText queues a reply made of the given fragments.
func (m *MockModel) AddText(fragments ...string) *MockModel {
	return m.AddReply(Reply{Fragments: fragments})
}

// AddError queues a reply that fails without emitting content.
func (m *MockModel) AddError(err error) *MockModel {
	return m.AddReply(Reply{Err: err})
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockModel) next(req Request) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		return r
	}
	var last string
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return Reply{Fragments: []string{fmt.Sprintf("Mock response to: %s", last)}}
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	reply := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		send := func(r Response) bool {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case respCh <- r:
				return true
			}
		}

		if req.Stream {
			for _, f := range reply.Fragments {
				if !send(Response{Partial: true, Content: f}) {
					return
				}
			}
		}
		if reply.Err != nil {
			errCh <- reply.Err
			return
		}
		if reply.OmitFinish {
			return
		}
		send(Response{Content: strings.Join(reply.Fragments, ""), FinishReason: "stop"})
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
