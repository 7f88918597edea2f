// Package migrations embeds the SQL schema files so the runner does not
// depend on the process working directory.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
