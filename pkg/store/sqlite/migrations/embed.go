package migrations

import "embed"

// FS contains the embedded schema migrations of the SQLite store.
//
//go:embed *.sql
var FS embed.FS
