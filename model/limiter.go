package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCallLimitExceeded is returned by a limited model once its budget is spent.
var ErrCallLimitExceeded = errors.New("model call limit exceeded")

// CallLimiter enforces a maximum number of model calls.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter allowing max calls. If max == 0, unlimited
// calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Increment counts one call and fails once the limit is exceeded.
func (l *CallLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: %d", ErrCallLimitExceeded, l.max)
	}
	return nil
}

// Count returns the number of calls made so far.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}
	return max(0, l.max-l.count)
}

type limitedModel struct {
	Model
	limiter *CallLimiter
}

// WithLimiter wraps m so that every Generate call is counted by limiter.
// Calls over budget never reach m and fail with ErrCallLimitExceeded.
func WithLimiter(m Model, limiter *CallLimiter) Model {
	return &limitedModel{Model: m, limiter: limiter}
}

func (m *limitedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := m.limiter.Increment(); err != nil {
		respCh := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- err
		close(respCh)
		close(errCh)
		return respCh, errCh
	}
	return m.Model.Generate(ctx, req)
}
