package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxBeginner starts transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups the repositories that take part in one transaction.
type Repositories struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
}

// UnitOfWork runs fn with repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type pgUnitOfWork struct {
	db TxBeginner
}

// NewUnitOfWork returns a Postgres-backed unit of work.
func NewUnitOfWork(db TxBeginner) UnitOfWork {
	return &pgUnitOfWork{db: db}
}

func (u *pgUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return pgx.BeginFunc(ctx, u.db, func(tx pgx.Tx) error {
		return fn(ctx, Repositories{
			Users:         NewUserRepository(tx),
			RefreshTokens: NewRefreshTokenRepository(tx),
		})
	})
}
