// Package slogstore writes audit events to a structured logger. It is the
// default store when no database is configured.
package slogstore

import (
	"context"
	"log/slog"

	audit "civictrust/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.logger.Log(ctx, levelFor(event.Severity), "audit",
		"severity", event.Severity,
		"operation", event.Operation,
		"category", event.Operation.Category(),
		"correlation_id", event.CorrelationID,
		"subject", event.Subject,
		"message", event.Message,
		"metadata", event.Metadata,
		"timestamp", event.Timestamp,
	)
	return nil
}

func levelFor(sev audit.Severity) slog.Level {
	switch sev {
	case audit.SeverityWarning:
		return slog.LevelWarn
	case audit.SeverityError, audit.SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
