package engine

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/no-more-secrets/p-unzip/internal/pathutil"
)

func writeFixtureZip(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	_, err = zw.CreateHeader(&zip.FileHeader{Name: "dir/", Modified: mtime})
	require.NoError(t, err)

	fh := &zip.FileHeader{Name: "dir/file.txt", Modified: mtime, Method: zip.Deflate}
	w, err := zw.CreateHeader(fh)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestRoundTripEndToEnd(t *testing.T) {
	chdirTemp(t)
	mtime := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	writeFixtureZip(t, "archive.zip", mtime)

	e := New(
		WithJobs(4),
		WithStrategy("cyclic"),
		WithTsXform(IdentityTsXform),
		WithQuiet(true),
	)
	summary, err := e.Extract("archive.zip")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.Folders)
	assert.Equal(t, uint64(6), summary.Bytes)

	data, err := os.ReadFile(filepath.Join("dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	fi, err := os.Stat(filepath.Join("dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, mtime.Unix(), fi.ModTime().Unix())
}

func TestConstantTsXformSetsFixedMtime(t *testing.T) {
	chdirTemp(t)
	mtime := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	writeFixtureZip(t, "archive.zip", mtime)

	want := int64(1_000_000_000)
	e := New(WithJobs(2), WithTsXform(ConstantTsXform(want)), WithQuiet(true))
	_, err := e.Extract("archive.zip")
	require.NoError(t, err)

	fi, err := os.Stat(filepath.Join("dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, want, fi.ModTime().Unix())
}

func TestNoopTsXformLeavesMtimeAlone(t *testing.T) {
	chdirTemp(t)
	mtime := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	writeFixtureZip(t, "archive.zip", mtime)

	before := time.Now().Add(-time.Hour)

	e := New(WithJobs(2), WithTsXform(NoopTsXform), WithQuiet(true))
	_, err := e.Extract("archive.zip")
	require.NoError(t, err)

	fi, err := os.Stat(filepath.Join("dir", "file.txt"))
	require.NoError(t, err)
	assert.True(t, fi.ModTime().After(before))
}

func writeLongExtensionFixtureZip(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	fh := &zip.FileHeader{Name: "dir/file.longextension", Modified: mtime, Method: zip.Deflate}
	w, err := zw.CreateHeader(fh)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestShortExtsProducesIndistinguishableResult(t *testing.T) {
	mtime := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

	chdirTemp(t)
	writeLongExtensionFixtureZip(t, "archive.zip", mtime)
	eWithout := New(WithJobs(2), WithQuiet(true), WithShortExts(false))
	_, err := eWithout.Extract("archive.zip")
	require.NoError(t, err)
	withoutData, err := os.ReadFile(filepath.Join("dir", "file.longextension"))
	require.NoError(t, err)

	chdirTemp(t)
	writeLongExtensionFixtureZip(t, "archive.zip", mtime)
	eWith := New(WithJobs(2), WithQuiet(true), WithShortExts(true))
	summary, err := eWith.Extract("archive.zip")
	require.NoError(t, err)

	withData, err := os.ReadFile(filepath.Join("dir", "file.longextension"))
	require.NoError(t, err)

	assert.Equal(t, withoutData, withData)
	assert.Equal(t, 1, summary.NumTempNames)
}

func TestInvalidJobsRejected(t *testing.T) {
	e := New(WithJobs(0))
	_, err := e.Extract("doesnotmatter.zip")
	assert.ErrorIs(t, err, ErrInvalidJobs)

	e = New(WithJobs(MaxJobs + 1))
	_, err = e.Extract("doesnotmatter.zip")
	assert.ErrorIs(t, err, ErrInvalidJobs)
}

func TestUnknownStrategyFailsBeforeAnyWorkerStarts(t *testing.T) {
	chdirTemp(t)
	mtime := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	writeFixtureZip(t, "archive.zip", mtime)

	e := New(WithJobs(2), WithStrategy("not-a-strategy"))
	_, err := e.Extract("archive.zip")
	assert.Error(t, err)

	// Folder pre-creation (step 6) runs before distribution (step 7), so
	// the directory exists even though the unknown strategy fails; what
	// must not exist is any file a worker would have written.
	_, statErr := os.Stat(filepath.Join("dir", "file.txt"))
	assert.True(t, os.IsNotExist(statErr), "no files should be written when the strategy is unknown")
}

func TestOutPrefixIsAppliedBeforeFSOperations(t *testing.T) {
	chdirTemp(t)
	mtime := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	writeFixtureZip(t, "archive.zip", mtime)

	prefix := pathutil.MustNew("out")

	e := New(WithJobs(2), WithOutPrefix(prefix), WithQuiet(true))
	_, err := e.Extract("archive.zip")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join("out", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestPathSafetyRejectsUnsafeEntryNames(t *testing.T) {
	chdirTemp(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("/escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile("evil.zip", buf.Bytes(), 0o644))

	e := New(WithJobs(1))
	_, err = e.Extract("evil.zip")
	assert.Error(t, err)
}
