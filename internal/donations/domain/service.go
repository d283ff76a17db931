// Package domain contains the business logic for donation intake and
// retrieval.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/observability/metrics"
	"github.com/pendergraft/donationwatch/internal/storage"
	"github.com/pendergraft/donationwatch/internal/validation"
)

// Common errors returned by the donations service.
var (
	ErrNotFound        = errors.New("donation not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrDuplicate       = errors.New("donation already recorded")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidNetwork  = errors.New("network not supported")
)

// DonationStore defines the donation operations needed by intake.
type DonationStore interface {
	CreateDonation(ctx context.Context, d *storage.Donation) error
	GetDonation(ctx context.Context, id string) (*storage.Donation, error)
	ListDonationsByProject(ctx context.Context, projectID string) ([]storage.Donation, error)
}

// ProjectStore defines the project operations needed by intake.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*storage.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*storage.Project, error)
}

// NetworkRegistry reports which networks have a configured resolver.
type NetworkRegistry interface {
	Get(networkID int) (chains.Resolver, bool)
}

// Service handles donation intake and lookups.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*storage.Donation, error)
	Get(ctx context.Context, id string) (*storage.Donation, error)
	ListByProjectSlug(ctx context.Context, slug string) ([]storage.Donation, error)
}

type service struct {
	donations DonationStore
	projects  ProjectStore
	networks  NetworkRegistry
}

// NewService creates a new donations service.
func NewService(donations DonationStore, projects ProjectStore, networks NetworkRegistry) *service {
	return &service{
		donations: donations,
		projects:  projects,
		networks:  networks,
	}
}

// Create records a donor claim as a pending donation. Addresses and hashes
// are normalized to lowercase before storage so later comparisons and the
// duplicate constraint are case-insensitive.
func (s *service) Create(ctx context.Context, req CreateRequest) (*storage.Donation, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if _, ok := s.networks.Get(req.NetworkID); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNetwork, req.NetworkID)
	}

	if _, err := s.projects.GetProject(ctx, req.ProjectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, req.ProjectID)
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	d := &storage.Donation{
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		Status:      storage.DonationStatusPending,
		TxHash:      strings.ToLower(req.TxHash),
		NetworkID:   req.NetworkID,
		FromAddress: strings.ToLower(req.FromAddress),
		ToAddress:   strings.ToLower(req.ToAddress),
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		Nonce:       req.Nonce,
		ValueUsd:    req.ValueUsd,
		ValueEth:    req.ValueEth,
	}
	if err := s.donations.CreateDonation(ctx, d); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			metrics.RecordDonationCreate(req.NetworkID, "duplicate")
			return nil, fmt.Errorf("%w: %s on network %d", ErrDuplicate, d.TxHash, d.NetworkID)
		}
		metrics.RecordDonationCreate(req.NetworkID, "error")
		return nil, fmt.Errorf("creating donation: %w", err)
	}
	metrics.RecordDonationCreate(req.NetworkID, "created")
	return d, nil
}

// Get returns a donation by id.
func (s *service) Get(ctx context.Context, id string) (*storage.Donation, error) {
	d, err := s.donations.GetDonation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting donation: %w", err)
	}
	return d, nil
}

// ListByProjectSlug returns all donations for the project with the given slug.
func (s *service) ListByProjectSlug(ctx context.Context, slug string) ([]storage.Donation, error) {
	if err := validation.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	project, err := s.projects.GetProjectBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, slug)
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	donations, err := s.donations.ListDonationsByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("listing donations: %w", err)
	}
	return donations, nil
}

func (s *service) validate(req CreateRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("%w: projectId is required", ErrInvalidRequest)
	}
	if err := validation.ValidateTxHash(req.TxHash); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateNetworkID(req.NetworkID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateAddress(req.FromAddress); err != nil {
		return fmt.Errorf("%w: fromAddress: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateAddress(req.ToAddress); err != nil {
		return fmt.Errorf("%w: toAddress: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateAmount(req.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateCurrency(req.Currency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
