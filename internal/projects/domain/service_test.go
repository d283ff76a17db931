package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/donationwatch/internal/storage"
)

type mockStore struct {
	projects  map[string]*storage.Project
	createErr error
}

func newMockStore() *mockStore {
	return &mockStore{projects: make(map[string]*storage.Project)}
}

func (m *mockStore) CreateProject(ctx context.Context, p *storage.Project) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.projects[p.Slug]; ok {
		return storage.ErrDuplicate
	}
	p.ID = "proj-1"
	m.projects[p.Slug] = p
	return nil
}

func (m *mockStore) GetProjectBySlug(ctx context.Context, slug string) (*storage.Project, error) {
	if p, ok := m.projects[slug]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func validRequest() CreateRequest {
	return CreateRequest{
		Title:         "Water Wells",
		Slug:          "water-wells",
		WalletAddress: "0x10A84B835C5DF26F2A380B3E00BCC84A66CD2D34",
	}
}

func TestCreate_NormalizesWalletAddress(t *testing.T) {
	svc := NewService(newMockStore())

	p, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "proj-1", p.ID)
	assert.Equal(t, "0x10a84b835c5df26f2a380b3e00bcc84a66cd2d34", p.WalletAddress)
}

func TestCreate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"missing title", func(r *CreateRequest) { r.Title = "" }},
		{"invalid slug", func(r *CreateRequest) { r.Slug = "Not A Slug" }},
		{"invalid wallet address", func(r *CreateRequest) { r.WalletAddress = "0x123" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMockStore())
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	store := newMockStore()
	svc := NewService(store)

	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetBySlug(t *testing.T) {
	store := newMockStore()
	store.projects["water-wells"] = &storage.Project{ID: "proj-1", Slug: "water-wells"}
	svc := NewService(store)

	t.Run("existing project", func(t *testing.T) {
		p, err := svc.GetBySlug(context.Background(), "water-wells")
		require.NoError(t, err)
		assert.Equal(t, "proj-1", p.ID)
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := svc.GetBySlug(context.Background(), "no-such-project")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid slug", func(t *testing.T) {
		_, err := svc.GetBySlug(context.Background(), "NOT A SLUG")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}
