// Package migrations embeds the numbered SQL schema files.
package migrations

import "embed"

// FS holds every NNNNNN_name.up.sql / NNNNNN_name.down.sql pair.
//
//go:embed *.sql
var FS embed.FS
