package core

import "github.com/google/uuid"

// NewID returns a random identifier used to correlate requests in logs,
// traces and downstream calls.
func NewID() string { return uuid.NewString() }
