// Package logging provides structured logging for the inference engine.
//
// # Overview
//
// The logging package implements a structured logging system with support
// for multiple output formats, log levels, and contextual fields tied to
// the inference execution lifecycle (session, run, node).
//
// # Features
//
//   - Structured logging: JSON and text formats
//   - Log levels: DEBUG, INFO, WARN, ERROR
//   - Context propagation: session ID, run ID, node ID, op type
//   - Thread-safe: safe for concurrent use
//   - Flexible output: write to any io.Writer
//
// # Basic Usage
//
//	import "github.com/luocf/inferunity/pkg/logging"
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Output: os.Stdout,
//	})
//
//	logger.WithSessionID("sess-123").
//	    WithRunID("run-456").
//	    Info("run started")
//
//	logger.WithNodeID("node-5").
//	    WithOpType("Conv").
//	    WithError(err).
//	    Error("node execution failed")
//
// # Output Formats
//
// JSON Format (production):
//
//	{
//	  "time": "2026-01-15T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "run started",
//	  "session_id": "sess-123",
//	  "run_id": "run-456"
//	}
//
// Text format (development) is enabled via Config.Pretty.
package logging
