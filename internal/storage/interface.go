package storage

import (
	"context"
	"io"
)

// BlobStorage defines the interface for page and media file storage
type BlobStorage interface {
	// Store saves content at the given path
	Store(ctx context.Context, path string, content io.Reader, contentType string) error

	// Retrieve gets content from the given path
	Retrieve(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes content at the given path. Deleting a missing file
	// is not an error; cleanup paths rely on this.
	Delete(ctx context.Context, path string) error

	// Move renames content from one path to another
	Move(ctx context.Context, src, dst string) error

	// RemoveDir removes a directory and everything under it. Missing
	// directories are not an error.
	RemoveDir(ctx context.Context, path string) error

	// Exists checks if content exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// GetSize returns the size of content at the given path
	GetSize(ctx context.Context, path string) (int64, error)

	// List returns paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)
}
