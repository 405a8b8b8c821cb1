package store

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"cardd/internal/types"
)

// Export streams the bundle as a gzip tarball. Entries are rooted at
// "<clientID>/" and emitted in lexical walk order, so the archive is
// deterministic for a given on-disk state. The archive is staged in memory
// under the bundle's lock and streamed to w after the lock is released, so a
// slow reader never blocks mutations of the same client ID and an export
// never observes a half-written update.
func (s *Store) Export(ctx context.Context, clientID string, w io.Writer) error {
	if err := checkID(clientID); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.stageArchive(ctx, clientID, &buf); err != nil {
		return err
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return types.Err(types.ErrIO, err, "stream archive for %q", clientID)
	}
	return nil
}

// stageArchive builds the whole tarball into buf while holding the bundle's
// lock. Bundle sizes are bounded by the deploy body limit, so buffering in
// memory is acceptable.
func (s *Store) stageArchive(ctx context.Context, clientID string, buf *bytes.Buffer) error {
	mu := s.locks.get(clientID)
	mu.Lock()
	defer mu.Unlock()

	dir := s.dir(clientID)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Err(types.ErrNotFound, nil, "client id %q", clientID)
		}
		return types.Err(types.ErrIO, err, "stat bundle %q", clientID)
	}

	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(clientID, rel))
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return types.Err(types.ErrIO, err, "export bundle %q", clientID)
	}

	if err := tw.Close(); err != nil {
		return types.Err(types.ErrIO, err, "close archive for %q", clientID)
	}
	if err := gz.Close(); err != nil {
		return types.Err(types.ErrIO, err, "close gzip for %q", clientID)
	}
	return nil
}
