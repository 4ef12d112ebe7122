// Package migrations embeds the SQL schema files.
package migrations

import "embed"

// FS contains the PostgreSQL migrations in lexical apply order.
//
//go:embed *.sql
var FS embed.FS
