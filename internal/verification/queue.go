// Package verification runs the periodic scan-and-verify pipeline for
// pending donations.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pendergraft/donationwatch/internal/verification/domain"
)

// Queue executes verification jobs with bounded concurrency. The cap is
// held by the queue itself, so concurrent Process calls (an overlapping
// scheduled scan plus a one-shot scan command, say) share one budget. The
// queue carries no retry policy of its own: a job that ends in transient
// trouble simply leaves its donation pending, and the next scan enqueues
// it again.
type Queue struct {
	svc    domain.Service
	sem    chan struct{}
	logger *slog.Logger
}

// NewQueue creates a verification queue running at most concurrency jobs
// at a time. A concurrency below 1 is treated as 1.
func NewQueue(svc domain.Service, concurrency int, logger *slog.Logger) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Queue{
		svc:    svc,
		sem:    make(chan struct{}, concurrency),
		logger: logger,
	}
}

// Concurrency returns the configured job cap.
func (q *Queue) Concurrency() int {
	return cap(q.sem)
}

// Process runs one verification job per donation id and blocks until all
// jobs finish or the context is cancelled. Job errors never escape the
// queue; they are logged and the donation stays pending.
func (q *Queue) Process(ctx context.Context, donationIDs []string) {
	var wg sync.WaitGroup

	for _, id := range donationIDs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			// Loop exits on the next iteration.
		case q.sem <- struct{}{}:
			wg.Add(1)
			go func(donationID string) {
				defer wg.Done()
				defer func() { <-q.sem }()
				q.runJob(ctx, donationID)
			}(id)
		}
	}
	wg.Wait()
}

func (q *Queue) runJob(ctx context.Context, donationID string) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("verification job panicked",
				"donationId", donationID,
				"panic", r,
			)
		}
	}()

	_, err := q.svc.VerifyDonation(ctx, donationID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDonationNotFound), errors.Is(err, domain.ErrProjectNotFound):
		// The scan snapshot referenced a row that no longer resolves.
		// Retrying cannot help.
		q.logger.Error("verification job hit missing record",
			"donationId", donationID,
			"error", err,
		)
	default:
		q.logger.Warn("verification job left donation pending",
			"donationId", donationID,
			"error", err,
		)
	}
}
