// Package log provides structured event logging for the SHC gateway.
//
// This package defines the Logger interface and Event types for capturing
// gateway events (HTTP exchanges, pairing steps, long-poll activity, update
// dispatch, bridge state changes). It is separate from operational logging -
// event capture provides a complete machine-readable trace for debugging a
// controller connection.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/shc/bridge.slog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/shc/bridge.slog"),
//	)
//
// # File Format
//
// Capture files use CBOR encoding. Reader decodes them back into Events for
// inspection.
package log
