package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/donationwatch/internal/config"
)

// Donation lifecycle states. Transitions are pending→verified or
// pending→failed only; terminal states are never reverted.
const (
	DonationStatusPending  = "pending"
	DonationStatusVerified = "verified"
	DonationStatusFailed   = "failed"
)

// DonationStore handles donation operations
type DonationStore interface {
	CreateDonation(ctx context.Context, d *Donation) error
	GetDonation(ctx context.Context, id string) (*Donation, error)
	ListPendingDonationIDs(ctx context.Context) ([]string, error)
	ListDonationsByProject(ctx context.Context, projectID string) ([]Donation, error)
	// UpdateDonationVerification persists the outcome of one verification
	// attempt: status, error message, corrected amount/currency and the
	// rescaled valuation, plus the speedup flag.
	UpdateDonationVerification(ctx context.Context, d *Donation) error
	// ListDonationsMissingPrice returns donations in the given currencies
	// whose priceUsd has never been set.
	ListDonationsMissingPrice(ctx context.Context, currencies []string) ([]Donation, error)
	// UpdateDonationValuation repairs price and value fields only; it never
	// touches status.
	UpdateDonationValuation(ctx context.Context, id string, priceUsd, priceEth, valueUsd, valueEth float64) error
}

// ProjectStore handles project operations
type ProjectStore interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*Project, error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	DonationStore
	ProjectStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Donation is a donor-claimed on-chain payment record. Only the creation
// flow and the verification/backfill jobs ever write it.
type Donation struct {
	ID          string
	ProjectID   string
	UserID      string
	Status      string
	TxHash      string
	NetworkID   int
	FromAddress string
	ToAddress   string
	Amount      float64
	Currency    string
	// Nonce is the sender's claimed account nonce, when the donor supplied
	// one; it enables fee-bump replacement detection.
	Nonce    *uint64
	ValueUsd float64
	ValueEth float64
	// PriceUsd/PriceEth stay nil until a reliable quote exists; the
	// backfill job selects on that.
	PriceUsd           *float64
	PriceEth           *float64
	Speedup            bool
	VerifyErrorMessage string
	CreatedAt          string
	VerifiedAt         string
}

// Project represents a fundraising project with a registered wallet address
type Project struct {
	ID            string
	Title         string
	Slug          string
	WalletAddress string
	Verified      bool
	CreatedAt     string
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
