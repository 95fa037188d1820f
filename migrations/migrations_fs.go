package migrations

import "embed"

// FS holds the schema migrations, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
