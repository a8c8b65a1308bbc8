package database

import (
	"embed"
	"io/fs"
)

// EmbeddedMigrations holds migrations/*.sql compiled into the binary.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS

// Migrations returns the migrations directory as an fs.FS rooted at
// migrations/, ready to hand to New.
func Migrations() fs.FS {
	sub, err := fs.Sub(EmbeddedMigrations, "migrations")
	if err != nil {
		// The directory is embedded at compile time; a failure here is a build defect.
		panic(err)
	}
	return sub
}
