package migrations

import "embed"

// FS contains embedded SQLite migrations for timer storage.
//
//go:embed *.sql
var FS embed.FS
