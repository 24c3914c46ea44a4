// Package logger provides structured logging for the service.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Request and resolve logging with structured attributes
//   - LLM API call logging (requests, responses, errors)
//   - Automatic API key and bearer token redaction
//   - Contextual logging with request tracing
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different log levels.
package logger

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger
)

func init() {
	// Check LOG_LEVEL environment variable
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// Initialize with text handler writing to stderr
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
// The context can be used for request tracing and cancellation.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
// Debug messages are only output when the log level is set to LevelDebug or lower.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
// Use for errors that affect operation but don't cause complete failure.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// LLMCall logs an outbound LLM API call with structured fields for observability.
// Additional attributes can be passed as key-value pairs after the required parameters.
func LLMCall(model, operation string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"model", model,
		"operation", operation,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("🤖 LLM API Call", allAttrs...)
}

// LLMResponse logs an LLM API response with token usage.
func LLMResponse(model, operation string, tokensIn, tokensOut int, attrs ...any) {
	allAttrs := make([]any, 0, 8+len(attrs))
	allAttrs = append(allAttrs,
		"model", model,
		"operation", operation,
		"tokens_in", tokensIn,
		"tokens_out", tokensOut,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("✅ LLM API Response", allAttrs...)
}

// LLMError logs an LLM API error for debugging and monitoring.
func LLMError(model, operation string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"model", model,
		"operation", operation,
		"error", err,
	)
	allAttrs = append(allAttrs, attrs...)
	Error("❌ LLM API Call Failed", allAttrs...)
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	// Patterns match common API key formats.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),     // OpenAI API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_-]+`), // Bearer tokens
	}
)

// RedactSensitiveData removes API keys and bearer tokens from strings.
// It replaces matched patterns with a redacted form that preserves the first
// few characters for debugging while hiding the sensitive portion.
//
// This function is safe for concurrent use as it only reads from the compiled patterns.
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			// Show first 4 characters for debugging context
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}
