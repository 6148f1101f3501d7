// Package migrations holds the goose SQL migrations of each module.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed registry/*.sql
var files embed.FS

// Registry returns the registry module migrations rooted at their directory.
func Registry() fs.FS {
	sub, err := fs.Sub(files, "registry")
	if err != nil {
		panic(err)
	}
	return sub
}
