package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/db"
)

type repoPG struct {
	pool     db.Beginner
	profiles profile.Repository
}

// NewRepoPG stores accounts in pool; profiles writes the profile row inside
// the same transaction.
func NewRepoPG(pool db.Beginner, profiles profile.Repository) Repository {
	return &repoPG{pool: pool, profiles: profiles}
}

const accountCols = `id, email, password_hash, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateWithProfile(ctx context.Context, a *Account, p *profile.Profile) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		err := tx.QueryRow(ctx, `
			INSERT INTO accounts (id, email, password_hash)
			VALUES ($1, lower($2), $3)
			RETURNING email, created_at, updated_at`,
			a.ID, a.Email, a.PasswordHash).Scan(&a.Email, &a.CreatedAt, &a.UpdatedAt)
		if db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		if err != nil {
			return err
		}

		// the profile policies admit only the new user's own row
		if err := db.AssumeIdentity(ctx, tx, db.Identity{UserID: a.ID.String(), Role: p.Role}); err != nil {
			return err
		}
		p.ID = a.ID
		return r.profiles.Create(ctx, p)
	})
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	var out *Account
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		var err error
		out, err = scanAccount(q.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE lower(email) = lower($1)`, email))
		return err
	})
	return out, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	var out *Account
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		var err error
		out, err = scanAccount(q.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
		return err
	})
	return out, err
}

func (r *repoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		tag, err := q.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
