// Package dbmigrations exposes embedded SQL migrations for Folio binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into Folio binaries.
//
//go:embed *.sql
var Files embed.FS
