// Package localstore implements port.StoreClient over a directory tree laid
// out as <root>/<intake>, <root>/<categories>/<Category> and <root>/<archive>.
// File identity survives moves and renames within the tree, so records keyed
// by id stay attached to their file while the reconciler shuffles it around.
package localstore

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
	"go.uber.org/zap"
)

// Layout names the three well-known subtrees of the store
type Layout struct {
	Intake     string
	Categories string
	Archive    string
}

// Store is a filesystem-backed content store
type Store struct {
	root   string
	layout Layout
	logger *zap.Logger

	mu    sync.Mutex
	paths map[string]string // id -> absolute path, rebuilt on miss
}

var _ port.StoreClient = (*Store)(nil)

// New creates a store rooted at root, creating the well-known subtrees
func New(root string, layout Layout, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root is required")
	}
	for _, sub := range []string{layout.Intake, layout.Categories, layout.Archive} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return &Store{
		root:   root,
		layout: layout,
		logger: logger,
		paths:  make(map[string]string),
	}, nil
}

// Layout returns the configured subtree names
func (s *Store) Layout() Layout {
	return s.layout
}

// Walk traverses all files under the named subtree
func (s *Store) Walk(ctx context.Context, subtree string, fn port.WalkFunc) error {
	base := filepath.Join(s.root, subtree)
	if _, err := os.Stat(base); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, subtree)
	}

	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable entries are skipped, not fatal to the walk
			s.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping entry without info", zap.String("path", path), zap.Error(err))
			return nil
		}

		id := fileID(info)
		s.remember(id, path)

		rel, _ := filepath.Rel(s.root, filepath.Dir(path))
		mt := mimeFor(d.Name())
		width, height := dimensions(path, mt)
		return fn(port.FileDescriptor{
			ID:         id,
			Name:       d.Name(),
			ParentPath: filepath.ToSlash(rel),
			Size:       info.Size(),
			MimeType:   mt,
			ModifiedAt: info.ModTime(),
			Width:      width,
			Height:     height,
		})
	})
}

// Stat returns the descriptor for a single file id
func (s *Store) Stat(ctx context.Context, id string) (*port.FileDescriptor, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	rel, _ := filepath.Rel(s.root, filepath.Dir(path))
	mt := mimeFor(info.Name())
	width, height := dimensions(path, mt)
	return &port.FileDescriptor{
		ID:         id,
		Name:       info.Name(),
		ParentPath: filepath.ToSlash(rel),
		Size:       info.Size(),
		MimeType:   mt,
		ModifiedAt: info.ModTime(),
		Width:      width,
		Height:     height,
	}, nil
}

// Open returns the file content
func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	return f, nil
}

// MoveToCategory moves a file under the categories subtree
func (s *Store) MoveToCategory(ctx context.Context, id, category string) (string, error) {
	if category == "" {
		category = domain.FallbackCategory
	}
	dest := filepath.Join(s.root, s.layout.Categories, category)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create category %s: %w", category, err)
	}
	if err := s.move(ctx, id, dest); err != nil {
		return "", err
	}
	return category, nil
}

// MoveToArchive moves a file to the archive location
func (s *Store) MoveToArchive(ctx context.Context, id string) error {
	return s.move(ctx, id, filepath.Join(s.root, s.layout.Archive))
}

// Rename changes the file name, keeping its location
func (s *Store) Rename(ctx context.Context, id, name string) error {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	next := filepath.Join(filepath.Dir(path), name)
	if next == path {
		return nil
	}
	if err := os.Rename(path, next); err != nil {
		return fmt.Errorf("rename %s: %w", id, err)
	}
	s.remember(id, next)
	return nil
}

// Delete permanently removes the file
func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.forget(id)
	return nil
}

func (s *Store) move(ctx context.Context, id string, destDir string) error {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	next := filepath.Join(destDir, filepath.Base(path))
	if next == path {
		return nil
	}
	if err := os.Rename(path, next); err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	s.remember(id, next)
	return nil
}

// resolve maps an id to its current path, re-walking the tree on miss since
// files move underneath us between sweeps.
func (s *Store) resolve(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	path, ok := s.paths[id]
	s.mu.Unlock()
	if ok {
		if info, err := os.Stat(path); err == nil && fileID(info) == id {
			return path, nil
		}
		s.forget(id)
	}

	if err := s.reindex(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	path, ok = s.paths[id]
	s.mu.Unlock()
	if !ok {
		return "", domain.ErrNotFound
	}
	return path, nil
}

func (s *Store) reindex(ctx context.Context) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		s.remember(fileID(info), path)
		return nil
	})
}

func (s *Store) remember(id, path string) {
	s.mu.Lock()
	s.paths[id] = path
	s.mu.Unlock()
}

func (s *Store) forget(id string) {
	s.mu.Lock()
	delete(s.paths, id)
	s.mu.Unlock()
}

// dimensions reads the pixel size from an image header. Non-image mimes and
// undecodable files report zero without failing the walk.
func dimensions(path, mimeType string) (int, int) {
	if !strings.HasPrefix(mimeType, "image/") {
		return 0, 0
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func mimeFor(name string) string {
	mt := mime.TypeByExtension(filepath.Ext(name))
	if mt == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(mt, ";"); idx > 0 {
		mt = mt[:idx]
	}
	return mt
}
