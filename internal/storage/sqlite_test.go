package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedProject(t *testing.T, store *SQLiteStore) *Project {
	t.Helper()
	p := &Project{
		Title:         "Water Wells Kenya",
		Slug:          "water-wells-kenya",
		WalletAddress: "0x10a84b835c5df26f2a380b3e00bcc84a66cd2d34",
	}
	require.NoError(t, store.CreateProject(context.Background(), p))
	return p
}

func pendingDonation(projectID string) *Donation {
	return &Donation{
		ProjectID:   projectID,
		UserID:      "user-1",
		TxHash:      "0x" + strings.Repeat("ab", 32),
		NetworkID:   1,
		FromAddress: "0x5ac583feb2b1f288c0a51d6cdca2e8c814bfe93b",
		ToAddress:   "0x10a84b835c5df26f2a380b3e00bcc84a66cd2d34",
		Amount:      10,
		Currency:    "GIV",
		ValueUsd:    20,
		ValueEth:    0.01,
	}
}

func TestProjectCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	assert.NotEmpty(t, p.ID)

	got, err := store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Slug, got.Slug)
	assert.NotEmpty(t, got.CreatedAt)

	bySlug, err := store.GetProjectBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySlug.ID)

	_, err = store.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	dup := &Project{Title: "Other", Slug: p.Slug, WalletAddress: p.WalletAddress}
	assert.ErrorIs(t, store.CreateProject(ctx, dup), ErrDuplicate)
}

func TestDonationCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	nonce := uint64(7)
	d := pendingDonation(p.ID)
	d.Nonce = &nonce
	require.NoError(t, store.CreateDonation(ctx, d))
	assert.NotEmpty(t, d.ID)

	got, err := store.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, DonationStatusPending, got.Status)
	assert.Equal(t, d.TxHash, got.TxHash)
	require.NotNil(t, got.Nonce)
	assert.Equal(t, uint64(7), *got.Nonce)
	assert.Nil(t, got.PriceUsd)
	assert.Empty(t, got.VerifiedAt)

	_, err = store.GetDonation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDonationDuplicateClaim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	require.NoError(t, store.CreateDonation(ctx, pendingDonation(p.ID)))

	// Same (network, hash, recipient) is the same claim.
	assert.ErrorIs(t, store.CreateDonation(ctx, pendingDonation(p.ID)), ErrDuplicate)

	// A different network makes it a distinct claim.
	other := pendingDonation(p.ID)
	other.NetworkID = 100
	assert.NoError(t, store.CreateDonation(ctx, other))
}

func TestListPendingDonationIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	first := pendingDonation(p.ID)
	require.NoError(t, store.CreateDonation(ctx, first))
	second := pendingDonation(p.ID)
	second.TxHash = "0x" + strings.Repeat("cd", 32)
	require.NoError(t, store.CreateDonation(ctx, second))

	ids, err := store.ListPendingDonationIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	// Settled donations drop out of the scan.
	first.Status = DonationStatusVerified
	require.NoError(t, store.UpdateDonationVerification(ctx, first))

	ids, err = store.ListPendingDonationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)
}

func TestListDonationsByProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	d := pendingDonation(p.ID)
	require.NoError(t, store.CreateDonation(ctx, d))

	list, err := store.ListDonationsByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)

	list, err = store.ListDonationsByProject(ctx, "other-project")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateDonationVerification_WriteOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	d := pendingDonation(p.ID)
	require.NoError(t, store.CreateDonation(ctx, d))

	d.Status = DonationStatusVerified
	d.Amount = 5
	d.ValueUsd = 10
	d.ValueEth = 0.005
	require.NoError(t, store.UpdateDonationVerification(ctx, d))

	got, err := store.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, DonationStatusVerified, got.Status)
	assert.Equal(t, 5.0, got.Amount)
	assert.Equal(t, 10.0, got.ValueUsd)
	assert.NotEmpty(t, got.VerifiedAt)

	// The terminal state never flips.
	d.Status = DonationStatusFailed
	assert.ErrorIs(t, store.UpdateDonationVerification(ctx, d), ErrNotPending)

	got, err = store.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, DonationStatusVerified, got.Status)
}

func TestUpdateDonationVerification_MissingRow(t *testing.T) {
	store := newTestStore(t)

	d := pendingDonation("proj-x")
	d.ID = "missing"
	d.Status = DonationStatusFailed
	assert.ErrorIs(t, store.UpdateDonationVerification(context.Background(), d), ErrNotFound)
}

func TestUpdateDonationVerification_SpeedupReplacesHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	d := pendingDonation(p.ID)
	require.NoError(t, store.CreateDonation(ctx, d))

	d.Status = DonationStatusVerified
	d.TxHash = "0x" + strings.Repeat("ef", 32)
	d.Speedup = true
	require.NoError(t, store.UpdateDonationVerification(ctx, d))

	got, err := store.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.TxHash, got.TxHash)
	assert.True(t, got.Speedup)
}

func TestDonationsMissingPrice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	unpriced := pendingDonation(p.ID)
	require.NoError(t, store.CreateDonation(ctx, unpriced))

	priceUsd := 2.0
	priceEth := 0.001
	priced := pendingDonation(p.ID)
	priced.TxHash = "0x" + strings.Repeat("cd", 32)
	priced.PriceUsd = &priceUsd
	priced.PriceEth = &priceEth
	require.NoError(t, store.CreateDonation(ctx, priced))

	otherCurrency := pendingDonation(p.ID)
	otherCurrency.TxHash = "0x" + strings.Repeat("ef", 32)
	otherCurrency.Currency = "ETH"
	require.NoError(t, store.CreateDonation(ctx, otherCurrency))

	missing, err := store.ListDonationsMissingPrice(ctx, []string{"GIV"})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, unpriced.ID, missing[0].ID)

	// Repairing the valuation removes it from the backlog.
	require.NoError(t, store.UpdateDonationValuation(ctx, unpriced.ID, 2.0, 0.001, 20.000, 0.010000))

	missing, err = store.ListDonationsMissingPrice(ctx, []string{"GIV"})
	require.NoError(t, err)
	assert.Empty(t, missing)

	got, err := store.GetDonation(ctx, unpriced.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PriceUsd)
	assert.Equal(t, 2.0, *got.PriceUsd)
	assert.Equal(t, 20.0, got.ValueUsd)

	// No currencies means nothing to backfill.
	missing, err = store.ListDonationsMissingPrice(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestUpdateDonationValuation_MissingRow(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateDonationValuation(context.Background(), "missing", 1, 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAPIKeyLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.CreateAPIKey(ctx, "ci")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "dw_key_"))

	ak, err := store.ValidateAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ci", ak.Name)

	_, err = store.ValidateAPIKey(ctx, "dw_key_bogus")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := store.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, store.RevokeAPIKey(ctx, keys[0].ID))

	_, err = store.ValidateAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err = store.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
