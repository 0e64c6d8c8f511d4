// Package migrations embeds the schema for the SQL document store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
