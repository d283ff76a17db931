// Package domain contains the business logic for fundraising projects.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pendergraft/donationwatch/internal/storage"
	"github.com/pendergraft/donationwatch/internal/validation"
)

// Common errors returned by the projects service.
var (
	ErrNotFound       = errors.New("project not found")
	ErrDuplicate      = errors.New("project already exists")
	ErrInvalidRequest = errors.New("invalid request")
)

// CreateRequest carries the fields for registering a project.
type CreateRequest struct {
	Title         string
	Slug          string
	WalletAddress string
}

// ProjectStore defines the storage operations needed by the projects domain.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *storage.Project) error
	GetProjectBySlug(ctx context.Context, slug string) (*storage.Project, error)
}

// Service handles project registration and lookups.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*storage.Project, error)
	GetBySlug(ctx context.Context, slug string) (*storage.Project, error)
}

type service struct {
	projects ProjectStore
}

// NewService creates a new projects service.
func NewService(projects ProjectStore) *service {
	return &service{projects: projects}
}

// Create registers a project. The wallet address is stored lowercase; it is
// the only address donations to this project may legitimately target.
func (s *service) Create(ctx context.Context, req CreateRequest) (*storage.Project, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if err := validation.ValidateSlug(req.Slug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateAddress(req.WalletAddress); err != nil {
		return nil, fmt.Errorf("%w: walletAddress: %v", ErrInvalidRequest, err)
	}

	p := &storage.Project{
		Title:         req.Title,
		Slug:          req.Slug,
		WalletAddress: strings.ToLower(req.WalletAddress),
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, req.Slug)
		}
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return p, nil
}

// GetBySlug returns a project by its slug.
func (s *service) GetBySlug(ctx context.Context, slug string) (*storage.Project, error) {
	if err := validation.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p, err := s.projects.GetProjectBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}
