// Package migrations embeds the schema applied at startup by the database package.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
