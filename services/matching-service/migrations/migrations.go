// Package migrations embeds the matching-service schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
