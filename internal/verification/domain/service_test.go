package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// mockStore implements the donation and project store interfaces for testing
type mockStore struct {
	donations map[string]*storage.Donation
	projects  map[string]*storage.Project
	updates   []storage.Donation
	updateErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		donations: make(map[string]*storage.Donation),
		projects:  make(map[string]*storage.Project),
	}
}

func (m *mockStore) GetDonation(ctx context.Context, id string) (*storage.Donation, error) {
	if d, ok := m.donations[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockStore) UpdateDonationVerification(ctx context.Context, d *storage.Donation) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, *d)
	stored := *d
	m.donations[d.ID] = &stored
	return nil
}

func (m *mockStore) GetProject(ctx context.Context, id string) (*storage.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

// mockResolver implements TransactionResolver for testing
type mockResolver struct {
	fact   *chains.TransactionFact
	err    error
	called int
}

func (m *mockResolver) Resolve(ctx context.Context, inq chains.TransactionInquiry) (*chains.TransactionFact, error) {
	m.called++
	if m.err != nil {
		return nil, m.err
	}
	return m.fact, nil
}

// mockNotifier records settlement events
type mockNotifier struct {
	events []string
}

func (m *mockNotifier) DonationSettled(ctx context.Context, d *storage.Donation, p *storage.Project) error {
	m.events = append(m.events, d.Status)
	return nil
}

func seed(store *mockStore) *storage.Donation {
	d := pendingDonation()
	store.donations[d.ID] = d
	store.projects[d.ProjectID] = &storage.Project{
		ID:            d.ProjectID,
		Slug:          "clean-water",
		WalletAddress: d.ToAddress,
	}
	return d
}

func TestVerifyDonation_MissingDonation(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, store, &mockResolver{}, nil)

	result, err := svc.VerifyDonation(context.Background(), "nope")
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrDonationNotFound))
}

func TestVerifyDonation_PrecheckSkipsResolver(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	store.projects[d.ProjectID].WalletAddress = "0x0000000000000000000000000000000000000009"
	resolver := &mockResolver{}
	svc := NewService(store, store, resolver, nil)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, resolver.called)
	assert.Equal(t, storage.DonationStatusFailed, result.Status)
	assert.Equal(t, MsgToAddressNotProjectWallet, result.Reason)

	require.Len(t, store.updates, 1)
	assert.Equal(t, storage.DonationStatusFailed, store.updates[0].Status)
}

func TestVerifyDonation_Verified(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	resolver := &mockResolver{fact: matchingFact(d)}
	notifier := &mockNotifier{}
	svc := NewService(store, store, resolver, notifier)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.DonationStatusVerified, result.Status)
	assert.True(t, result.Changed)
	assert.Equal(t, []string{storage.DonationStatusVerified}, notifier.events)
}

func TestVerifyDonation_TransientErrorLeavesPending(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	resolver := &mockResolver{err: errors.New("rpc timeout")}
	svc := NewService(store, store, resolver, nil)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.DonationStatusPending, result.Status)
	assert.False(t, result.Changed)
	assert.Empty(t, store.updates)
}

func TestVerifyDonation_TerminalFailurePersists(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	resolver := &mockResolver{err: chains.NewFailure(chains.FailContractConflictsWithCurrency, "targets 0xdead")}
	notifier := &mockNotifier{}
	svc := NewService(store, store, resolver, notifier)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.DonationStatusFailed, result.Status)
	assert.Equal(t, string(chains.FailContractConflictsWithCurrency), result.Reason)

	require.Len(t, store.updates, 1)
	assert.Equal(t, string(chains.FailContractConflictsWithCurrency), store.updates[0].VerifyErrorMessage)
	assert.Equal(t, []string{storage.DonationStatusFailed}, notifier.events)
}

func TestVerifyDonation_SpeedupReplacesHash(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	fact := matchingFact(d)
	fact.Hash = "0xreplacement"
	fact.Speedup = true
	svc := NewService(store, store, &mockResolver{fact: fact}, nil)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.True(t, result.Speedup)

	require.Len(t, store.updates, 1)
	assert.Equal(t, "0xreplacement", store.updates[0].TxHash)
}

func TestVerifyDonation_AlreadySettledIsNoop(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	d.Status = storage.DonationStatusVerified
	resolver := &mockResolver{}
	svc := NewService(store, store, resolver, nil)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.DonationStatusVerified, result.Status)
	assert.Equal(t, 0, resolver.called)
}

func TestVerifyDonation_LostUpdateRace(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	store.updateErr = storage.ErrNotPending
	svc := NewService(store, store, &mockResolver{fact: matchingFact(d)}, nil)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Changed)
}

func TestVerifyDonation_StoreWriteErrorPropagates(t *testing.T) {
	store := newMockStore()
	d := seed(store)
	store.updateErr = errors.New("disk full")
	svc := NewService(store, store, &mockResolver{fact: matchingFact(d)}, nil)

	result, err := svc.VerifyDonation(context.Background(), d.ID)
	assert.Nil(t, result)
	assert.Error(t, err)
}
