// Package sql embeds the schema migrations applied by cmd/migrate.
package sql

import "embed"

//go:embed all:migrations
var MigrationFiles embed.FS
