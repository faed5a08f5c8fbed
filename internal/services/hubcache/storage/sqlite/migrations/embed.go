package migrations

import "embed"

// FS contains embedded SQLite migrations for hub cache storage.
//
//go:embed *.sql
var FS embed.FS
