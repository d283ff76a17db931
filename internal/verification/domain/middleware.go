package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs every
// verification attempt with its outcome.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) VerifyDonation(ctx context.Context, donationID string) (*Result, error) {
	start := time.Now()
	res, err := m.next.VerifyDonation(ctx, donationID)
	attrs := []any{
		"donationId", donationID,
		"duration", time.Since(start),
		"error", err,
	}
	if res != nil {
		attrs = append(attrs,
			"status", res.Status,
			"reason", res.Reason,
			"speedup", res.Speedup,
			"changed", res.Changed,
		)
	}
	m.logger.Info("VerifyDonation", attrs...)
	return res, err
}
