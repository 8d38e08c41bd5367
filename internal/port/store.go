package port

import (
	"context"
	"io"
	"time"
)

// FileDescriptor is what the walker yields for one stored file
type FileDescriptor struct {
	ID         string
	Name       string
	ParentPath string
	Size       int64
	MimeType   string
	ModifiedAt time.Time
	Width      int
	Height     int
}

// WalkFunc is invoked once per file during a walk. Returning an error stops
// the walk.
type WalkFunc func(desc FileDescriptor) error

// StoreClient is the hierarchical content store: authoritative for bytes and
// physical location, never for classification or status.
type StoreClient interface {
	// Walk traverses all files under the named subtree, recursing through
	// sub-containers. Unreadable entries are skipped, not fatal.
	Walk(ctx context.Context, subtree string, fn WalkFunc) error

	// Stat returns the descriptor for a single file id
	Stat(ctx context.Context, id string) (*FileDescriptor, error)

	// Open returns the file content for hashing or enrichment
	Open(ctx context.Context, id string) (io.ReadCloser, error)

	// MoveToCategory moves a file under the categories subtree, creating the
	// category container if missing. Returns the effective category name.
	MoveToCategory(ctx context.Context, id, category string) (string, error)

	// MoveToArchive moves a file to the archive location
	MoveToArchive(ctx context.Context, id string) error

	// Rename changes the file name in the store
	Rename(ctx context.Context, id, name string) error

	// Delete permanently removes the file (administrative purge only)
	Delete(ctx context.Context, id string) error
}
