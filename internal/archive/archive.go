// Package archive is a thin façade over the standard library's ZIP codec.
// It enumerates and caches every entry's stat record at construction, and
// exposes per-entry extraction either into a caller-supplied scratch
// buffer or streamed in bounded chunks directly to a file.
//
// The façade makes no attempt to be thread-safe: archive/zip readers are
// not shared across goroutines, so each worker is expected to construct
// its own Archive over the same shared ByteSource.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/no-more-secrets/p-unzip/internal/fsutil"
	"github.com/no-more-secrets/p-unzip/internal/pathutil"
)

// fastFlate is klauspost/compress's flate decompressor, which decodes
// meaningfully faster than the standard library's on the large batches of
// DEFLATE entries a bulk extractor sees. Open registers it on every
// zip.Reader it creates, in place of the standard library's.
func fastFlate(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

// ByteSource provides random access to the archive's backing bytes. The
// engine loads the whole ZIP file into memory once and shares one
// ByteSource across every worker's independent Archive handle.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// bytesSource is the concrete ByteSource the engine constructs after
// reading a ZIP file fully into memory.
type bytesSource struct {
	data []byte
}

// NewByteSource wraps an in-memory buffer as a ByteSource.
func NewByteSource(data []byte) ByteSource {
	return &bytesSource{data: data}
}

func (b *bytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, fmt.Errorf("archive: read at %d: out of range", off)
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *bytesSource) Size() int64 {
	return int64(len(b.data))
}

// Stat is the cached, immutable record for one archive entry.
type Stat struct {
	Index    uint64
	Name     string
	Size     uint64
	CompSize uint64
	Mtime    int64
	IsFolder bool
	// FolderPath is dirname(Name) for a file entry, or Path(Name) itself
	// for a folder entry.
	FolderPath pathutil.Path
}

// Archive is a worker-local handle over a shared, read-only ByteSource.
// Construction enumerates every entry once and caches its Stat; all
// subsequent operations are served from that cache plus lazily-opened
// per-entry readers.
type Archive struct {
	source ByteSource
	zr     *zip.Reader
	stats  []Stat
}

// Open constructs an Archive over source, caching the Stat of every
// entry in archive order.
func Open(source ByteSource) (*Archive, error) {
	zr, err := zip.NewReader(source, source.Size())
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, fastFlate)

	stats := make([]Stat, len(zr.File))
	for i, f := range zr.File {
		st, err := statFromHeader(uint64(i), f)
		if err != nil {
			return nil, fmt.Errorf("archive: stat entry %d: %w", i, err)
		}
		stats[i] = st
	}

	return &Archive{source: source, zr: zr, stats: stats}, nil
}

// Source returns the shared ByteSource this Archive was opened over, so
// that each worker can construct its own independent Archive handle over
// the same backing bytes.
func (a *Archive) Source() ByteSource {
	return a.source
}

func statFromHeader(index uint64, f *zip.File) (Stat, error) {
	name := f.Name
	if name == "" {
		return Stat{}, fmt.Errorf("archive: entry %d has an empty name", index)
	}

	p, err := pathutil.New(strings.TrimSuffix(name, "/"))
	if err != nil {
		return Stat{}, fmt.Errorf("archive: entry %q: %w", name, err)
	}

	isFolder := strings.HasSuffix(name, "/")

	var folderPath pathutil.Path
	if isFolder {
		folderPath = p
	} else {
		// A file directly at the archive root gets the empty path
		// (extraction root) from Parent; Parent only fails on an empty
		// path, which falls back to the empty path as well.
		folderPath, err = p.Parent()
		if err != nil {
			folderPath = pathutil.Path{}
		}
	}

	return Stat{
		Index:      index,
		Name:       name,
		Size:       f.UncompressedSize64,
		CompSize:   f.CompressedSize64,
		Mtime:      f.Modified.Unix(),
		IsFolder:   isFolder,
		FolderPath: folderPath,
	}, nil
}

// Len returns the number of cached entries.
func (a *Archive) Len() int {
	return len(a.stats)
}

// At returns the cached Stat for index i.
func (a *Archive) At(i uint64) (Stat, error) {
	if i >= uint64(len(a.stats)) {
		return Stat{}, fmt.Errorf("archive: index %d out of range [0,%d)", i, len(a.stats))
	}
	return a.stats[i], nil
}

// All returns every cached Stat in archive order. The returned slice must
// not be mutated by the caller.
func (a *Archive) All() []Stat {
	return a.stats
}

// Extract allocates size(i) bytes and fills them with the entry's
// decompressed content.
func (a *Archive) Extract(i uint64) ([]byte, error) {
	st, err := a.At(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, st.Size)
	if err := a.ExtractIn(i, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ExtractIn reads the entire uncompressed entry i into scratch in one
// call. It fails if scratch is smaller than the entry's uncompressed
// size.
func (a *Archive) ExtractIn(i uint64, scratch []byte) error {
	st, err := a.At(i)
	if err != nil {
		return err
	}
	if uint64(len(scratch)) < st.Size {
		return fmt.Errorf("archive: extract_in entry %d: scratch buffer too small (%d < %d)", i, len(scratch), st.Size)
	}

	rc, err := a.openEntry(i)
	if err != nil {
		return err
	}
	n, readErr := io.ReadFull(rc, scratch[:st.Size])
	closeErr := rc.Close()
	if readErr != nil {
		return fmt.Errorf("archive: extract_in entry %d: %w", i, readErr)
	}
	if closeErr != nil {
		return fmt.Errorf("archive: extract_in entry %d: close: %w", i, closeErr)
	}
	if uint64(n) != st.Size {
		return fmt.Errorf("archive: extract_in entry %d: read %d of %d bytes", i, n, st.Size)
	}
	return nil
}

// ExtractTo opens destPath for write and repeatedly reads up to
// len(scratch) bytes from entry i, writing each chunk to the file. The
// entry reader is always closed before any failure is propagated.
// ExtractTo fails unless the total bytes written equal the entry's
// uncompressed size.
func (a *Archive) ExtractTo(i uint64, destPath string, scratch []byte) error {
	st, err := a.At(i)
	if err != nil {
		return err
	}

	rc, err := a.openEntry(i)
	if err != nil {
		return err
	}

	out, err := fsutil.OpenWrite(destPath)
	if err != nil {
		_ = rc.Close()
		return err
	}

	var total uint64
	copyErr := func() error {
		if len(scratch) == 0 {
			// Nothing to copy; only valid when the entry itself is empty,
			// since a zero-length read buffer can never make progress.
			return nil
		}
		for {
			n, err := rc.Read(scratch)
			if n > 0 {
				if werr := out.Write(scratch, n); werr != nil {
					return werr
				}
				total += uint64(n)
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("archive: extract_to entry %d: read: %w", i, err)
			}
			if n == 0 {
				return nil
			}
		}
	}()

	closeEntryErr := rc.Close()
	closeOutErr := out.Close()

	if copyErr != nil {
		return copyErr
	}
	if closeEntryErr != nil {
		return fmt.Errorf("archive: extract_to entry %d: close entry: %w", i, closeEntryErr)
	}
	if closeOutErr != nil {
		return fmt.Errorf("archive: extract_to entry %d: close file: %w", i, closeOutErr)
	}
	if total != st.Size {
		return fmt.Errorf("archive: extract_to entry %d: wrote %d of %d bytes", i, total, st.Size)
	}
	return nil
}

func (a *Archive) openEntry(i uint64) (io.ReadCloser, error) {
	st, err := a.At(i)
	if err != nil {
		return nil, err
	}
	f := a.zr.File[i]
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open entry %d (%s): %w", i, st.Name, err)
	}
	return rc, nil
}

// Destroy is a no-op placeholder matching the source's explicit
// archive-handle lifecycle; archive/zip has no close call of its own once
// the ByteSource outlives the Archive.
func (a *Archive) Destroy() {}

// MaxEntrySize returns the largest uncompressed size among every cached
// entry, used to resolve chunk_size == "use max entry size".
func (a *Archive) MaxEntrySize() uint64 {
	var max uint64
	for _, st := range a.stats {
		if st.Size > max {
			max = st.Size
		}
	}
	return max
}
