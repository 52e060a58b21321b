package migrations

import "embed"

// FS contains embedded SQLite migrations for the talentdex store.
//
//go:embed *.sql
var FS embed.FS
