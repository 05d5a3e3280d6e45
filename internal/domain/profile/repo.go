package profile

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	UpdateAvatar(ctx context.Context, id uuid.UUID, url string) error
	// ListPatients returns patient profiles, newest first, filtered by a
	// case-insensitive name fragment when query is non-empty.
	ListPatients(ctx context.Context, query string, limit, offset int) ([]*Profile, int, error)
	Registry(ctx context.Context, query string) ([]*RegistryEntry, error)
}
