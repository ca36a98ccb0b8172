// Package migrations embeds the SQL schema applied by catalogd.
package migrations

import "embed"

// FS holds the ordered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
