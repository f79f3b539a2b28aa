// Package migrations embeds the goose SQL migrations for the metadata store.
package migrations

import "embed"

// FS holds the migration files, rooted at ".".
//
//go:embed *.sql
var FS embed.FS
