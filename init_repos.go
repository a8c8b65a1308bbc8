package main

import (
	"database/sql"

	"github.com/devchat/devchat/repository"
)

// Repositories holds every repository instance.
type Repositories struct {
	User       repository.UserRepository
	Session    repository.SessionRepository
	ResetToken repository.PasswordResetRepository
	AuthTx     repository.AuthTxRunner
	Channel    repository.ChannelRepository
	Message    repository.MessageRepository
	Starred    repository.StarredRepository
	Color      repository.ColorRepository
}

// initRepositories builds the repositories on one shared pool. *sql.DB is
// safe for concurrent use.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User:       repository.NewSQLiteUserRepo(conn),
		Session:    repository.NewSQLiteSessionRepo(conn),
		ResetToken: repository.NewSQLiteResetTokenRepo(conn),
		AuthTx:     repository.NewSQLiteAuthTxRunner(conn),
		Channel:    repository.NewSQLiteChannelRepo(conn),
		Message:    repository.NewSQLiteMessageRepo(conn),
		Starred:    repository.NewSQLiteStarredRepo(conn),
		Color:      repository.NewSQLiteColorRepo(conn),
	}
}
