package account

import (
	"context"

	"github.com/google/uuid"

	"github.com/vitalia/portal/internal/domain/profile"
)

type Repository interface {
	// CreateWithProfile inserts the account and its profile atomically. A
	// duplicate email yields ErrEmailTaken.
	CreateWithProfile(ctx context.Context, a *Account, p *profile.Profile) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}
