package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const (
	DBTxKey     contextKey = "db_tx"
	IdentityKey contextKey = "db_identity"
)

// Querier is the subset of pgx used by repositories. pgx.Tx, *pgxpool.Conn
// and *pgxpool.Pool all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Identity is the caller on whose behalf SQL runs. It is published to row
// security policies as app.user_id and app.user_role.
type Identity struct {
	UserID string
	Role   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(IdentityKey).(Identity)
	return id
}

func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

var ErrNoBeginner = errors.New("no database connection available")

// WithTx begins a transaction scoped to the identity carried by ctx and
// returns a context that carries it.
func WithTx(ctx context.Context, b Beginner) (context.Context, pgx.Tx, error) {
	if b == nil {
		return ctx, nil, ErrNoBeginner
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	if err := AssumeIdentity(ctx, tx, IdentityFromContext(ctx)); err != nil {
		_ = tx.Rollback(ctx)
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// AssumeIdentity switches the row security identity for the rest of tx.
func AssumeIdentity(ctx context.Context, tx Querier, id Identity) error {
	_, err := tx.Exec(ctx,
		"SELECT set_config('app.user_id', $1, true), set_config('app.user_role', $2, true)",
		id.UserID, id.Role)
	if err != nil {
		return fmt.Errorf("set row security identity: %w", err)
	}
	return nil
}

// InTx runs fn inside a transaction, committing when fn returns nil. A
// transaction already present in ctx is reused and left for its owner to
// commit.
func InTx(ctx context.Context, b Beginner, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	txCtx, tx, err := WithTx(ctx, b)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Run hands fn a Querier bound to the caller's identity.
func Run(ctx context.Context, b Beginner, fn func(q Querier) error) error {
	return InTx(ctx, b, func(ctx context.Context) error {
		return fn(TxFromContext(ctx))
	})
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
