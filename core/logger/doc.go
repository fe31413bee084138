// Package logger builds the application's structured Zap logger.
//
// Synchronization passes are long multi-request operations, so every log
// line carries enough context to reconstruct one pass after the fact: the
// organization, the provider and, for HTTP-triggered passes, the ray id.
//
// # Ray id correlation
//
// The rayid middleware stores a per-request id in the Fiber context; the
// WithRayID helper lifts it onto a logger so handler and engine logs for
// the same request line up.
//
// # Configuration
//
//   - Level: debug, info, warn, error (debug selects the development preset)
//   - Format: json (default) or console
//
// # Usage
//
//	logg, _ := logger.New(&logger.Config{Level: "info", Format: "json"})
//	logg.Info("synchronization started")
//
//	// In a request handler:
//	l := logger.WithRayID(logg, c)
//	l.Error("ticketing request failed", zap.Error(err))
package logger
