// Package logging provides structured logging configuration for metricsd.
//
// This package wraps log/slog so every component logs the same way.
// It supports configurable log levels and output formats.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("metrics endpoint listening", "addr", addr)
//
// # Log Event Counting
//
// InstrumentedHandler wraps another handler and increments a counter with a
// single "level" label for every record the wrapped handler accepts. The
// setup package uses it to publish logback_appender_total alongside the bot
// metrics.
//
// # Integration
//
// Components should accept a *slog.Logger in their constructor or via an option.
// If no logger is provided, use logging.Nop().
package logging
