// Package migrations embeds the PostgreSQL schema migrations
package migrations

import "embed"

// FS holds the NNNNNN_name.{up,down}.sql files
//
//go:embed *.sql
var FS embed.FS
