// Package repository is the data access layer. Services depend on the
// interfaces declared here; the sqlite_*.go files implement them.
//
// Every constructor takes a database.TxQuerier so a repository can be
// bound to the pool or to a transaction.
package repository

import (
	"context"

	"github.com/devchat/devchat/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetAll returns every user in registration order.
	GetAll(ctx context.Context) ([]models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
	UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// ResetAllStatuses marks everyone offline. Called at startup, when no
	// connection can be alive.
	ResetAllStatuses(ctx context.Context) error
}
