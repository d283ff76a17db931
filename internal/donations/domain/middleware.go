package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/donationwatch/internal/storage"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Create(ctx context.Context, req CreateRequest) (*storage.Donation, error) {
	start := time.Now()
	d, err := m.next.Create(ctx, req)
	m.logger.Info("Create",
		"projectId", req.ProjectID,
		"network", req.NetworkID,
		"txHash", req.TxHash,
		"currency", req.Currency,
		"duration", time.Since(start),
		"error", err,
	)
	return d, err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*storage.Donation, error) {
	start := time.Now()
	d, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"donationId", id,
		"duration", time.Since(start),
		"error", err,
	)
	return d, err
}

func (m *loggingMiddleware) ListByProjectSlug(ctx context.Context, slug string) ([]storage.Donation, error) {
	start := time.Now()
	donations, err := m.next.ListByProjectSlug(ctx, slug)
	m.logger.Debug("ListByProjectSlug",
		"slug", slug,
		"count", len(donations),
		"duration", time.Since(start),
		"error", err,
	)
	return donations, err
}
