// migrations/embed.go
package migrations

import "embed"

// FS holds the schema for every supported store driver, one directory per driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
