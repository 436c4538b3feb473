// Package migrations embeds the availability-service schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
