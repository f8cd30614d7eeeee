// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the coordinator, gateways and server use. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZerologAdapter wrapping github.com/rs/zerolog
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Backend: "zerolog", Level: logging.LevelInfo, Format: "json"})
//	reqLogger := logging.With(logger, "conversation_id", id)
//
// The interface stays minimal to avoid vendor lock-in while supporting
// structured key/value pairs on every backend.
package logging
