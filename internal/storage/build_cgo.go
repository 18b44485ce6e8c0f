//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag:
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Uses github.com/mattn/go-sqlite3. Vector scoring still runs in Go
// (internal/similarity) so every metric behaves the same in both builds.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether the database driver can load
	// native vector extensions
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
