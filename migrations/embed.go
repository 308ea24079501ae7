// Package migrations embeds the schema the isolation core depends on:
// session helper functions read by row policies, the tenants registry and
// the append-only audit log.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
