// Package storage defines the file-system abstraction for content and build
// output trees.
package storage

import "github.com/grayside/grayside/internal/models"

// Provider is the interface for tree file operations. All paths are relative
// to the provider root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Abs resolves a relative path to an absolute one inside the root.
	Abs(path string) (string, error)
	// Match reports whether path is a file List would return.
	Match(path string) bool
	// List returns metadata for every matching file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

var _ Provider = (*FS)(nil)
