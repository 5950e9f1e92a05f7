package migrations

import "embed"

// Files exposes the portal's SQL migrations embedded into the binary.
//
//go:embed *.sql
var Files embed.FS
