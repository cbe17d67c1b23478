// Package local writes output files to the local filesystem atomically.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tempPattern = ".elections-scraper-*.tmp"

// Info describes a completed write.
type Info struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// FileStore writes whole files by staging them next to the destination and
// renaming into place, so readers never observe a partial file.
type FileStore struct {
	perm fs.FileMode
}

// New creates a FileStore that creates files with perm (0o644 when zero).
func New(perm fs.FileMode) *FileStore {
	if perm == 0 {
		perm = 0o644
	}
	return &FileStore{perm: perm}
}

// Exists reports whether path names an existing regular file. A directory at
// path is an error.
func (s *FileStore) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

// WriteAtomic copies data into a temp file in path's directory, syncs it and
// renames it over path. On any failure the temp file is removed and path is
// left as it was.
func (s *FileStore) WriteAtomic(ctx context.Context, path string, data io.Reader) (Info, error) {
	if strings.TrimSpace(path) == "" {
		return Info{}, fmt.Errorf("path is required")
	}
	if err := ctx.Err(); err != nil {
		return Info{}, fmt.Errorf("write canceled: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return Info{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	digest := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, digest), data)
	if err != nil {
		return Info{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Info{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(s.perm); err != nil {
		return Info{}, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, fmt.Errorf("write canceled: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Info{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true

	return Info{Path: path, Bytes: n, SHA256: hex.EncodeToString(digest.Sum(nil))}, nil
}
