package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Used by the migrate runner (cmd/migrate) to create users, identities, login tokens,
// remember-me tokens, second-factor enrollments, platform settings, and audit tables.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
