package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir overrides the embedded migrations with a directory on disk
// when non-empty (development use).
var MigrationsDir string

// getMigrationsFS returns the migrations filesystem rooted at the directory
// holding the *.sql files.
func getMigrationsFS() (fs.FS, error) {
	if MigrationsDir != "" {
		if _, err := os.Stat(MigrationsDir); err != nil {
			return nil, fmt.Errorf("migrations directory: %w", err)
		}
		return os.DirFS(MigrationsDir), nil
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return sub, nil
}
