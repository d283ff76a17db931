package verification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/donationwatch/internal/observability/metrics"
)

// PendingLister lists the donations awaiting verification.
type PendingLister interface {
	ListPendingDonationIDs(ctx context.Context) ([]string, error)
}

// Scanner snapshots the pending donations and feeds them to the queue.
// It is driven by the scheduler and by the one-shot scan command.
type Scanner struct {
	store  PendingLister
	queue  *Queue
	logger *slog.Logger
}

// NewScanner creates a scanner over the given store and queue.
func NewScanner(store PendingLister, queue *Queue, logger *slog.Logger) *Scanner {
	return &Scanner{
		store:  store,
		queue:  queue,
		logger: logger,
	}
}

// Scan runs one pass: list pending donation ids, then verify each through
// the queue. It returns only when every enqueued job has finished. Should
// two passes still run at once, the queue's shared cap keeps the total
// number of in-flight verifications bounded.
func (s *Scanner) Scan(ctx context.Context) error {
	ids, err := s.store.ListPendingDonationIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing pending donations: %w", err)
	}
	metrics.RecordScanPending(len(ids))
	if len(ids) == 0 {
		s.logger.Debug("no pending donations")
		return nil
	}

	s.logger.Info("verification scan started",
		"pending", len(ids),
		"concurrency", s.queue.Concurrency(),
	)
	s.queue.Process(ctx, ids)
	s.logger.Info("verification scan finished", "pending", len(ids))
	return nil
}
