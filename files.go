package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsDir is the directory of the SQL files inside GetMigrationsFS.
const MigrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for the profile and account
// tables
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
