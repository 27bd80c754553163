// Package migrations embeds the SQL files that create the message history and
// sticker tables.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
