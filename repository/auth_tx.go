package repository

import (
	"context"
	"database/sql"

	"github.com/devchat/devchat/database"
)

// AuthRepos are the account repositories bound to one transaction.
type AuthRepos struct {
	User       UserRepository
	Session    SessionRepository
	ResetToken PasswordResetRepository
}

// AuthTxRunner runs fn inside a single transaction. fn's error rolls the
// whole change back.
type AuthTxRunner func(ctx context.Context, fn func(repos AuthRepos) error) error

func NewSQLiteAuthTxRunner(db *sql.DB) AuthTxRunner {
	return func(ctx context.Context, fn func(repos AuthRepos) error) error {
		return database.WithTx(ctx, db, func(tx *sql.Tx) error {
			return fn(AuthRepos{
				User:       NewSQLiteUserRepo(tx),
				Session:    NewSQLiteSessionRepo(tx),
				ResetToken: NewSQLiteResetTokenRepo(tx),
			})
		})
	}
}
