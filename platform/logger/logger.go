// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// BrokerIDKey is the context key for the broker acted upon
	BrokerIDKey contextKey = "broker_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if brokerID, ok := ctx.Value(BrokerIDKey).(string); ok && brokerID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("broker_id", brokerID))}
	}

	return newLogger
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// EmailEvent logs the outcome of an outbound email attempt.
func (l *Logger) EmailEvent(template, toEmail string, err error) {
	if err == nil {
		l.Info("email_sent",
			slog.String("template", template),
			slog.String("to", toEmail),
		)
		return
	}
	l.Error("email_failed",
		slog.String("template", template),
		slog.String("to", toEmail),
		slog.String("error", err.Error()),
	)
}

// PaymentEvent logs payment-provider interactions (link creation, webhooks).
func (l *Logger) PaymentEvent(event, invoiceNumber string, success bool, detail string) {
	if success {
		l.Info("payment_event",
			slog.String("event", event),
			slog.String("invoice_number", invoiceNumber),
		)
		return
	}
	l.Warn("payment_event",
		slog.String("event", event),
		slog.String("invoice_number", invoiceNumber),
		slog.String("detail", detail),
	)
}

// SweepRun logs a scheduled sweep run (follow-up dispatch, package delivery).
func (l *Logger) SweepRun(sweep string, processed, failed int) {
	l.Info("sweep_run",
		slog.String("sweep", sweep),
		slog.Int("processed", processed),
		slog.Int("failed", failed),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
