//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build. Pure Go SQLite, no C compiler required:
//
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether the database driver can load
	// native vector extensions
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
