package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Projects
	CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		wallet_address TEXT NOT NULL,
		verified BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- Donations
	CREATE TABLE IF NOT EXISTS donations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id),
		user_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		tx_hash TEXT NOT NULL,
		network_id INTEGER NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		currency TEXT NOT NULL,
		nonce BIGINT,
		value_usd DOUBLE PRECISION DEFAULT 0,
		value_eth DOUBLE PRECISION DEFAULT 0,
		price_usd DOUBLE PRECISION,
		price_eth DOUBLE PRECISION,
		speedup BOOLEAN DEFAULT FALSE,
		verify_error_message TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		verified_at TIMESTAMPTZ,
		UNIQUE(network_id, tx_hash, to_address)
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_donations_status ON donations(status);
	CREATE INDEX IF NOT EXISTS idx_donations_project ON donations(project_id);
	CREATE INDEX IF NOT EXISTS idx_donations_currency_price ON donations(currency, price_usd);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

const pgDonationColumns = `id, project_id, user_id, status, tx_hash, network_id, from_address, to_address,
	amount, currency, nonce, value_usd, value_eth, price_usd, price_eth, speedup, verify_error_message,
	created_at::text, COALESCE(verified_at::text, '')`

// CreateDonation inserts a new donation row
func (s *PostgresStore) CreateDonation(ctx context.Context, d *Donation) error {
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.Status == "" {
		d.Status = DonationStatusPending
	}
	query := `
		INSERT INTO donations (id, project_id, user_id, status, tx_hash, network_id, from_address, to_address,
			amount, currency, nonce, value_usd, value_eth, price_usd, price_eth, speedup)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ProjectID, nullableString(d.UserID), d.Status, d.TxHash, d.NetworkID, d.FromAddress, d.ToAddress,
		d.Amount, d.Currency, nullableNonce(d.Nonce), d.ValueUsd, d.ValueEth,
		nullableFloat(d.PriceUsd), nullableFloat(d.PriceEth), d.Speedup,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrDuplicate
	}
	return err
}

// GetDonation retrieves a donation by id
func (s *PostgresStore) GetDonation(ctx context.Context, id string) (*Donation, error) {
	query := `SELECT ` + pgDonationColumns + ` FROM donations WHERE id = $1`
	d, err := scanDonation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// ListPendingDonationIDs returns the ids of all pending donations
func (s *PostgresStore) ListPendingDonationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM donations WHERE status = $1 ORDER BY created_at`, DonationStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDonationsByProject lists a project's donations, newest first
func (s *PostgresStore) ListDonationsByProject(ctx context.Context, projectID string) ([]Donation, error) {
	query := `SELECT ` + pgDonationColumns + ` FROM donations WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

// UpdateDonationVerification persists a verification outcome; terminal
// states are write-once
func (s *PostgresStore) UpdateDonationVerification(ctx context.Context, d *Donation) error {
	query := `
		UPDATE donations
		SET status = $1, verify_error_message = $2, amount = $3, currency = $4,
			value_usd = $5, value_eth = $6, speedup = $7, tx_hash = $8,
			verified_at = CASE WHEN $1 != 'pending' THEN NOW() ELSE verified_at END
		WHERE id = $9 AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query,
		d.Status, nullableString(d.VerifyErrorMessage), d.Amount, d.Currency,
		d.ValueUsd, d.ValueEth, d.Speedup, d.TxHash, d.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.GetDonation(ctx, d.ID); getErr != nil {
			return getErr
		}
		return ErrNotPending
	}
	return nil
}

// ListDonationsMissingPrice returns donations in the given currencies whose
// price has never been set
func (s *PostgresStore) ListDonationsMissingPrice(ctx context.Context, currencies []string) ([]Donation, error) {
	if len(currencies) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(currencies))
	args := make([]any, len(currencies))
	for i, c := range currencies {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c
	}
	query := `SELECT ` + pgDonationColumns + ` FROM donations
		WHERE currency IN (` + strings.Join(placeholders, ",") + `) AND price_usd IS NULL
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

// UpdateDonationValuation repairs price/value fields without touching status
func (s *PostgresStore) UpdateDonationValuation(ctx context.Context, id string, priceUsd, priceEth, valueUsd, valueEth float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE donations SET price_usd = $1, price_eth = $2, value_usd = $3, value_eth = $4 WHERE id = $5`,
		priceUsd, priceEth, valueUsd, valueEth, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProject creates a new project
func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = generateID()
	}
	query := `INSERT INTO projects (id, title, slug, wallet_address, verified) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.WalletAddress, p.Verified)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrDuplicate
	}
	return err
}

// GetProject retrieves a project by id
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.getProject(ctx, `SELECT id, title, slug, wallet_address, verified, created_at::text FROM projects WHERE id = $1`, id)
}

// GetProjectBySlug retrieves a project by slug
func (s *PostgresStore) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	return s.getProject(ctx, `SELECT id, title, slug, wallet_address, verified, created_at::text FROM projects WHERE slug = $1`, slug)
}

func (s *PostgresStore) getProject(ctx context.Context, query string, arg any) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Title, &p.Slug, &p.WalletAddress, &p.Verified, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &p, err
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx,
		"SELECT id, key_hash, name, created_at::text FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, err
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at::text, COALESCE(last_used_at::text, '') FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1", id)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
