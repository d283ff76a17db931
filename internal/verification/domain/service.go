package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/observability/metrics"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// Common errors returned by the verification service.
var (
	// ErrDonationNotFound means the scanned donation id no longer resolves
	// to a row. The scan snapshot is the only source of ids, so this is an
	// invariant violation, not a retryable condition.
	ErrDonationNotFound = errors.New("donation not found")
	ErrProjectNotFound  = errors.New("project not found")
)

// DonationStore defines the donation operations needed by verification.
type DonationStore interface {
	GetDonation(ctx context.Context, id string) (*storage.Donation, error)
	UpdateDonationVerification(ctx context.Context, d *storage.Donation) error
}

// ProjectStore defines the project operations needed by verification.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*storage.Project, error)
}

// TransactionResolver looks up the on-chain facts for a claimed transaction.
type TransactionResolver interface {
	Resolve(ctx context.Context, inq chains.TransactionInquiry) (*chains.TransactionFact, error)
}

// Notifier delivers donation settlement events. Delivery is best effort;
// failures must not affect verification.
type Notifier interface {
	DonationSettled(ctx context.Context, d *storage.Donation, project *storage.Project) error
}

// Result summarizes one verification attempt for callers and logs.
type Result struct {
	DonationID string
	Status     string
	Reason     string
	Speedup    bool
	// Changed is false when the attempt resolved nothing and the donation
	// stays pending.
	Changed bool
}

// Service verifies donor-claimed donations against chain data.
type Service interface {
	VerifyDonation(ctx context.Context, donationID string) (*Result, error)
}

type service struct {
	donations DonationStore
	projects  ProjectStore
	resolver  TransactionResolver
	notifier  Notifier
}

// NewService creates a new verification service.
func NewService(donations DonationStore, projects ProjectStore, resolver TransactionResolver, notifier Notifier) *service {
	return &service{
		donations: donations,
		projects:  projects,
		resolver:  resolver,
		notifier:  notifier,
	}
}

// VerifyDonation runs one verification attempt for a pending donation.
// Transient trouble (chain RPC failures, an unmined replacement, store
// write errors) returns an error and leaves the donation pending; the next
// scan picks it up again. Terminal outcomes are persisted exactly once.
func (s *service) VerifyDonation(ctx context.Context, donationID string) (*Result, error) {
	d, err := s.donations.GetDonation(ctx, donationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDonationNotFound, donationID)
		}
		return nil, fmt.Errorf("getting donation: %w", err)
	}
	if d.Status != storage.DonationStatusPending {
		// Already settled by an earlier attempt.
		return &Result{DonationID: d.ID, Status: d.Status, Reason: d.VerifyErrorMessage}, nil
	}

	project, err := s.projects.GetProject(ctx, d.ProjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, d.ProjectID)
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	// Misdirected claims fail without touching the chain.
	if dec := Precheck(d, project.WalletAddress); dec != nil {
		return s.settle(ctx, d, project, *dec)
	}

	fact, resolveErr := s.resolver.Resolve(ctx, chains.TransactionInquiry{
		TxHash:      d.TxHash,
		NetworkID:   d.NetworkID,
		Symbol:      d.Currency,
		FromAddress: d.FromAddress,
		ToAddress:   d.ToAddress,
		Amount:      d.Amount,
		Nonce:       d.Nonce,
	})
	if resolveErr != nil {
		if f, ok := chains.AsFailure(resolveErr); ok {
			metrics.RecordResolverFailure(d.NetworkID, string(f.Kind))
		}
	}

	dec := Judge(d, fact, resolveErr)
	if dec.Outcome == OutcomeNoChange {
		metrics.RecordVerification("no_change")
		return &Result{DonationID: d.ID, Status: d.Status}, nil
	}
	return s.settle(ctx, d, project, dec)
}

// settle persists a terminal decision and emits the settlement event.
func (s *service) settle(ctx context.Context, d *storage.Donation, project *storage.Project, dec Decision) (*Result, error) {
	switch dec.Outcome {
	case OutcomeVerified:
		d.Status = storage.DonationStatusVerified
		d.VerifyErrorMessage = ""
		d.Amount = dec.Amount
		d.Currency = dec.Currency
		d.ValueUsd = dec.ValueUsd
		d.ValueEth = dec.ValueEth
		d.Speedup = dec.Speedup
		if dec.MinedTxHash != "" {
			d.TxHash = dec.MinedTxHash
		}
	case OutcomeFailed:
		d.Status = storage.DonationStatusFailed
		d.VerifyErrorMessage = dec.Reason
	default:
		return nil, fmt.Errorf("unexpected decision outcome %q", dec.Outcome)
	}

	if err := s.donations.UpdateDonationVerification(ctx, d); err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			// Lost a race with another attempt; the first writer wins.
			return &Result{DonationID: d.ID, Status: d.Status}, nil
		}
		return nil, fmt.Errorf("updating donation: %w", err)
	}
	metrics.RecordVerification(string(dec.Outcome))

	if s.notifier != nil {
		if err := s.notifier.DonationSettled(ctx, d, project); err != nil {
			// Best effort only.
			metrics.RecordNotificationFailure()
		}
	}

	return &Result{
		DonationID: d.ID,
		Status:     d.Status,
		Reason:     d.VerifyErrorMessage,
		Speedup:    d.Speedup,
		Changed:    true,
	}, nil
}
