// Package logging provides a minimal logging interface and adapters for railflow.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// the engine uses for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building a JSON or text slog logger from a Config
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.Config{Level: logging.LogLevelDebug, Format: "text", Output: os.Stderr})
//	eng := engine.New(m, fns, func(o *engine.Options) { o.Logger = logger })
package logging
