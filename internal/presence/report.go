package presence

import (
	"context"
	"log/slog"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Reporter receives failures that must not interrupt event handling.
type Reporter interface {
	Report(ctx context.Context, severity Severity, err error, args ...any)
}

// SlogReporter writes reports to the default logger.
type SlogReporter struct{}

func (SlogReporter) Report(ctx context.Context, severity Severity, err error, args ...any) {
	level := slog.LevelError
	switch severity {
	case SeverityInfo:
		level = slog.LevelInfo
	case SeverityWarning:
		level = slog.LevelWarn
	}
	attrs := append([]any{"severity", severity.String(), "error", err}, args...)
	slog.Log(ctx, level, "presence failure", attrs...)
}
