// Package logging provides structured logging configuration for contractd.
//
// This package wraps log/slog so every component logs the same way.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("listening", "addr", ":4242")
//
// Request scoped attributes, such as the request id, are attached to the
// context with WithAttrs and appear on every record logged with the
// *Context methods:
//
//	ctx = logging.WithAttrs(ctx, slog.String("request_id", id))
//	logger.InfoContext(ctx, "engine call finished")
//
// # Integration
//
// Components accept a *slog.Logger through an option or a setter and fall
// back to logging.Nop().
package logging
