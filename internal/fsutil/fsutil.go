// Package fsutil is the platform-independent filesystem veneer the
// extraction engine and its workers use: existence/kind checks,
// idempotent recursive directory creation with a shared cache, mtime
// assignment, replace-on-rename, and a scoped read/write file handle.
//
// Every function here fails loudly on anything other than the specific
// "does not exist" case that callers are expected to handle themselves.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/no-more-secrets/p-unzip/internal/pathutil"
)

// Info is the platform-independent result of Stat. Only Exists is
// meaningful when it is false.
type Info struct {
	Exists   bool
	IsFolder bool
}

// Stat reports whether path exists and, if so, whether it is a
// directory. Stat treats ENOENT as a non-error "does not exist" result;
// every other error (permission denied, not-a-directory in the path
// prefix, etc.) is returned as an error.
func Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{Exists: false}, nil
		}
		return Info{}, fmt.Errorf("fsutil: stat %s: %w", path, err)
	}
	return Info{Exists: true, IsFolder: fi.IsDir()}, nil
}

// dirMode matches the reference implementation's explicit mode: rwx for
// owner, rx for group and other.
const dirMode = 0o755

// CreateFolder creates exactly one directory. It fails if path already
// exists or if its parent does not.
func CreateFolder(path string) error {
	if err := os.Mkdir(path, dirMode); err != nil {
		return fmt.Errorf("fsutil: create folder %s: %w", path, err)
	}
	return nil
}

// MkdirCache remembers which directories are already known to exist so
// that a batch of MkdirP calls sharing one cache stats each ancestor
// directory at most once.
type MkdirCache struct {
	mu    sync.Mutex
	known map[string]struct{}
}

// NewMkdirCache creates an empty cache.
func NewMkdirCache() *MkdirCache {
	return &MkdirCache{known: make(map[string]struct{})}
}

// MkdirP recursively creates path and all of its parents, consulting
// and updating cache to avoid redundant stat calls. It succeeds
// idempotently if the leaf already exists and is a folder, and fails if
// the leaf exists but is not a folder.
func MkdirP(cache *MkdirCache, path pathutil.Path) error {
	if path.Empty() {
		return nil
	}
	s := path.String()

	cache.mu.Lock()
	_, known := cache.known[s]
	cache.mu.Unlock()
	if known {
		return nil
	}

	parent, err := path.Parent()
	if err != nil {
		return fmt.Errorf("fsutil: mkdir_p %s: %w", s, err)
	}
	if err := MkdirP(cache, parent); err != nil {
		return err
	}

	cache.mu.Lock()
	cache.known[s] = struct{}{}
	cache.mu.Unlock()

	info, err := Stat(s)
	if err != nil {
		return err
	}
	if info.Exists {
		if !info.IsFolder {
			return fmt.Errorf("fsutil: mkdir_p: %s exists but is not a folder", s)
		}
		return nil
	}
	return CreateFolder(s)
}

// MkdirsP calls MkdirP for each path, sharing one cache across the
// whole batch so that a parent directory common to many of them is
// stat'd at most once.
func MkdirsP(paths []pathutil.Path) error {
	cache := NewMkdirCache()
	for _, p := range paths {
		if err := MkdirP(cache, p); err != nil {
			return err
		}
	}
	return nil
}

// SetTimestamp sets both the access and modification time of path to t.
func SetTimestamp(path string, t int64) error {
	tm := time.Unix(t, 0)
	if err := os.Chtimes(path, tm, tm); err != nil {
		return fmt.Errorf("fsutil: set timestamp %s: %w", path, err)
	}
	return nil
}

// RenameFile renames src to dst, replacing dst if it exists. It is a
// no-op when src == dst.
func RenameFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("fsutil: rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// File is a scoped handle over an open file, closed deterministically
// by the caller's defer.
type File struct {
	f *os.File
}

// OpenRead opens path for reading.
func OpenRead(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // archive-controlled path, validated by pathutil before use
	if err != nil {
		return nil, fmt.Errorf("fsutil: open %s: %w", path, err)
	}
	return &File{f: f}, nil
}

// OpenWrite creates (or truncates) path for writing.
func OpenWrite(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // archive-controlled path
	if err != nil {
		return nil, fmt.Errorf("fsutil: create %s: %w", path, err)
	}
	return &File{f: f}, nil
}

// ReadAll seeks to the end to learn the file's size, rewinds, and reads
// the whole file into a single buffer.
func (h *File) ReadAll() ([]byte, error) {
	size, err := h.f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("fsutil: seek end: %w", err)
	}
	if _, err := h.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("fsutil: seek start: %w", err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(h.f, buf); err != nil {
		return nil, fmt.Errorf("fsutil: read all: %w", err)
	}
	return buf, nil
}

// Write writes the first n bytes of buf, failing if n exceeds the
// buffer's length or if fewer than n bytes are actually written.
func (h *File) Write(buf []byte, n int) error {
	if n > len(buf) {
		return fmt.Errorf("fsutil: write: n=%d exceeds buffer size %d", n, len(buf))
	}
	written, err := h.f.Write(buf[:n])
	if err != nil {
		return fmt.Errorf("fsutil: write: %w", err)
	}
	if written != n {
		return fmt.Errorf("fsutil: write: wrote %d of %d bytes", written, n)
	}
	return nil
}

// Close closes the underlying file.
func (h *File) Close() error {
	return h.f.Close()
}
