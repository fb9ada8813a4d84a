// Package migrations embeds the schema for the self-hosted postgres
// backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
