package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Projects
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		wallet_address TEXT NOT NULL,
		verified INTEGER DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now'))
	);

	-- Donations
	CREATE TABLE IF NOT EXISTS donations (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		user_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		tx_hash TEXT NOT NULL,
		network_id INTEGER NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount REAL NOT NULL,
		currency TEXT NOT NULL,
		nonce INTEGER,
		value_usd REAL DEFAULT 0,
		value_eth REAL DEFAULT 0,
		price_usd REAL,
		price_eth REAL,
		speedup INTEGER DEFAULT 0,
		verify_error_message TEXT,
		created_at TEXT DEFAULT (datetime('now')),
		verified_at TEXT,
		UNIQUE(network_id, tx_hash, to_address)
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
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

const donationColumns = `id, project_id, user_id, status, tx_hash, network_id, from_address, to_address,
	amount, currency, nonce, value_usd, value_eth, price_usd, price_eth, speedup, verify_error_message,
	created_at, verified_at`

func scanDonation(row interface{ Scan(...any) error }) (*Donation, error) {
	var d Donation
	var userID, verifyErr, verifiedAt sql.NullString
	var nonce sql.NullInt64
	var priceUsd, priceEth sql.NullFloat64
	err := row.Scan(
		&d.ID, &d.ProjectID, &userID, &d.Status, &d.TxHash, &d.NetworkID, &d.FromAddress, &d.ToAddress,
		&d.Amount, &d.Currency, &nonce, &d.ValueUsd, &d.ValueEth, &priceUsd, &priceEth, &d.Speedup, &verifyErr,
		&d.CreatedAt, &verifiedAt,
	)
	if err != nil {
		return nil, err
	}
	d.UserID = userID.String
	d.VerifyErrorMessage = verifyErr.String
	d.VerifiedAt = verifiedAt.String
	if nonce.Valid {
		n := uint64(nonce.Int64)
		d.Nonce = &n
	}
	if priceUsd.Valid {
		d.PriceUsd = &priceUsd.Float64
	}
	if priceEth.Valid {
		d.PriceEth = &priceEth.Float64
	}
	return &d, nil
}

func nullableNonce(n *uint64) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// CreateDonation inserts a new donation row
func (s *SQLiteStore) CreateDonation(ctx context.Context, d *Donation) error {
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.Status == "" {
		d.Status = DonationStatusPending
	}
	query := `
		INSERT INTO donations (id, project_id, user_id, status, tx_hash, network_id, from_address, to_address,
			amount, currency, nonce, value_usd, value_eth, price_usd, price_eth, speedup, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ProjectID, d.UserID, d.Status, d.TxHash, d.NetworkID, d.FromAddress, d.ToAddress,
		d.Amount, d.Currency, nullableNonce(d.Nonce), d.ValueUsd, d.ValueEth,
		nullableFloat(d.PriceUsd), nullableFloat(d.PriceEth), d.Speedup,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

// GetDonation retrieves a donation by id
func (s *SQLiteStore) GetDonation(ctx context.Context, id string) (*Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = ?`
	d, err := scanDonation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// ListPendingDonationIDs returns the ids of all pending donations (id-only
// projection, the scanner does not need the full rows)
func (s *SQLiteStore) ListPendingDonationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM donations WHERE status = ? ORDER BY created_at`, DonationStatusPending)
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
func (s *SQLiteStore) ListDonationsByProject(ctx context.Context, projectID string) ([]Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE project_id = ? ORDER BY created_at DESC`
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

// UpdateDonationVerification persists a verification outcome. Terminal
// states are write-once: the WHERE clause refuses to touch a row that has
// already left pending.
func (s *SQLiteStore) UpdateDonationVerification(ctx context.Context, d *Donation) error {
	query := `
		UPDATE donations
		SET status = ?, verify_error_message = ?, amount = ?, currency = ?,
			value_usd = ?, value_eth = ?, speedup = ?, tx_hash = ?,
			verified_at = CASE WHEN ? != 'pending' THEN datetime('now') ELSE verified_at END
		WHERE id = ? AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query,
		d.Status, d.VerifyErrorMessage, d.Amount, d.Currency,
		d.ValueUsd, d.ValueEth, d.Speedup, d.TxHash, d.Status, d.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row vanished or it already reached a terminal state
		if _, getErr := s.GetDonation(ctx, d.ID); getErr != nil {
			return getErr
		}
		return ErrNotPending
	}
	return nil
}

// ListDonationsMissingPrice returns donations in the given currencies whose
// price has never been set
func (s *SQLiteStore) ListDonationsMissingPrice(ctx context.Context, currencies []string) ([]Donation, error) {
	if len(currencies) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(currencies)), ",")
	query := `SELECT ` + donationColumns + ` FROM donations
		WHERE currency IN (` + placeholders + `) AND price_usd IS NULL
		ORDER BY created_at`
	args := make([]any, len(currencies))
	for i, c := range currencies {
		args[i] = c
	}

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
func (s *SQLiteStore) UpdateDonationValuation(ctx context.Context, id string, priceUsd, priceEth, valueUsd, valueEth float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE donations SET price_usd = ?, price_eth = ?, value_usd = ?, value_eth = ? WHERE id = ?`,
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
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = generateID()
	}
	query := `INSERT INTO projects (id, title, slug, wallet_address, verified, created_at) VALUES (?, ?, ?, ?, ?, datetime('now'))`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.WalletAddress, p.Verified)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

// GetProject retrieves a project by id
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.getProject(ctx, `SELECT id, title, slug, wallet_address, verified, created_at FROM projects WHERE id = ?`, id)
}

// GetProjectBySlug retrieves a project by slug
func (s *SQLiteStore) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	return s.getProject(ctx, `SELECT id, title, slug, wallet_address, verified, created_at FROM projects WHERE slug = ?`, slug)
}

func (s *SQLiteStore) getProject(ctx context.Context, query string, arg any) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Title, &p.Slug, &p.WalletAddress, &p.Verified, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &p, err
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, datetime('now'))", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, err
}

// ListAPIKeys lists all API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ?", id)
	return err
}
