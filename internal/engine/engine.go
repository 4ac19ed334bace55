// Package engine implements the parallel extraction orchestration: load
// the archive, pre-create directories, partition entries across workers
// according to a chosen distribution strategy, run the workers, and
// aggregate their results into an UnzipSummary.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/no-more-secrets/p-unzip/internal/archive"
	"github.com/no-more-secrets/p-unzip/internal/dist"
	"github.com/no-more-secrets/p-unzip/internal/fsutil"
	"github.com/no-more-secrets/p-unzip/internal/pathutil"
	"github.com/no-more-secrets/p-unzip/internal/shortext"
	"github.com/no-more-secrets/p-unzip/internal/timing"
)

// MaxJobs is the upper bound on the worker count the engine will accept.
const MaxJobs = 64

// TsXform maps an archived epoch-seconds mtime to the mtime that should be
// set on the extracted file. Returning 0 means "do not set mtime".
type TsXform func(archivedMtime int64) int64

// IdentityTsXform sets each extracted file's mtime to its archived mtime
// unchanged.
func IdentityTsXform(archivedMtime int64) int64 { return archivedMtime }

// NoopTsXform never sets an mtime.
func NoopTsXform(int64) int64 { return 0 }

// ConstantTsXform always returns t, regardless of the archived mtime.
func ConstantTsXform(t int64) TsXform {
	return func(int64) int64 { return t }
}

// Engine runs the parallel extraction algorithm. The zero value is not
// usable; construct with New.
type Engine struct {
	jobs      int
	quiet     bool
	strategy  string
	chunkSize uint64 // 0 means "use the archive's max entry size"
	tsXform   TsXform
	shortExts bool
	outPrefix pathutil.Path
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithJobs sets the worker count. Values outside [1, MaxJobs] are a
// configuration error surfaced by Extract, not by this option.
func WithJobs(n int) Option {
	return func(e *Engine) { e.jobs = n }
}

// WithQuiet suppresses the per-file log line.
func WithQuiet(quiet bool) Option {
	return func(e *Engine) { e.quiet = quiet }
}

// WithStrategy sets the distribution strategy name.
func WithStrategy(name string) Option {
	return func(e *Engine) { e.strategy = name }
}

// WithChunkSize sets the per-worker scratch buffer size in bytes. Zero
// means "use the archive's largest uncompressed entry size".
func WithChunkSize(n uint64) Option {
	return func(e *Engine) { e.chunkSize = n }
}

// WithTsXform sets the mtime transform applied to every extracted file.
func WithTsXform(fn TsXform) Option {
	return func(e *Engine) { e.tsXform = fn }
}

// WithShortExts enables the short-extension temp-rename optimization.
func WithShortExts(enabled bool) Option {
	return func(e *Engine) { e.shortExts = enabled }
}

// WithOutPrefix sets a path prepended to every extracted entry's name
// before any filesystem operation.
func WithOutPrefix(prefix pathutil.Path) Option {
	return func(e *Engine) { e.outPrefix = prefix }
}

// WithLogger sets the structured logger used for phase and per-file
// records. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New constructs an Engine with defaults matching the CLI's own defaults:
// one job, the cyclic strategy, a 4096-byte chunk size, the identity
// timestamp transform, short-extension optimization disabled, and a
// discarding logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		jobs:      1,
		strategy:  dist.DefaultStrategy,
		chunkSize: 4096,
		tsXform:   IdentityTsXform,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ErrInvalidJobs is returned when the configured job count is out of range.
var ErrInvalidJobs = errors.New("engine: jobs must be between 1 and MaxJobs")

// ErrInvalidChunkSize is returned when chunk size resolves to less than 1
// while some entry has nonzero size.
var ErrInvalidChunkSize = errors.New("engine: invalid chunk size")

// ErrWorkerFailed is returned when any worker's output reports failure.
var ErrWorkerFailed = errors.New("engine: a worker failed")

// ErrAggregateMismatch is returned when post-run sanity checks on
// aggregated counters fail; this indicates a bug, not bad input.
var ErrAggregateMismatch = errors.New("engine: aggregate sanity check failed")

// Extract runs the full parallel extraction algorithm against the ZIP
// file at path and returns the resulting summary.
func (e *Engine) Extract(path string) (*timing.UnzipSummary, error) {
	if e.jobs < 1 || e.jobs > MaxJobs {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidJobs, e.jobs)
	}

	summary := timing.NewUnzipSummary(e.jobs)
	summary.Filename = path
	summary.StrategyUsed = e.strategy

	summary.Watch.Start("total")
	defer summary.Watch.Stop("total") //nolint:errcheck // best-effort if we bail out early below

	e.logger.Info("extract starting", "file", path, "jobs", e.jobs, "strategy", e.strategy)

	var arch *archive.Archive
	err := summary.Watch.Run("load_zip", func() error {
		var loadErr error
		arch, loadErr = loadArchive(path)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("archive loaded", "entries", arch.Len())

	all := arch.All()
	folders, files := partitionFoldersFiles(all)

	chunkSize := e.chunkSize
	if chunkSize == 0 {
		chunkSize = arch.MaxEntrySize()
	}
	if chunkSize < 1 && arch.MaxEntrySize() > 0 {
		return nil, fmt.Errorf("%w: resolved to %d", ErrInvalidChunkSize, chunkSize)
	}
	summary.ChunkSizeUsed = chunkSize

	tmpName := shortext.Func(shortext.Identity)
	if e.shortExts {
		tmpName = shortext.New()
	}

	resolveDest := func(name string) string {
		return e.outPrefix.Join(pathutil.MustNew(strings.TrimSuffix(name, "/"))).String()
	}

	if err := summary.Watch.Run("folders", func() error {
		return e.preCreateFolders(all)
	}); err != nil {
		return nil, err
	}
	e.logger.Info("folders precreated", "count", len(folders))

	var lists [][]uint64
	if err := summary.Watch.Run("distribute", func() error {
		var distErr error
		lists, distErr = dist.Distribute(e.strategy, e.jobs, files)
		return distErr
	}); err != nil {
		return nil, err
	}
	e.logger.Info("files distributed", "files", len(files))

	var outputs []*workerOutput
	if err := summary.Watch.Run("extract", func() error {
		var workErr error
		outputs, workErr = e.runWorkers(arch, lists, chunkSize, tmpName, resolveDest)
		return workErr
	}); err != nil {
		return nil, err
	}

	if err := aggregate(summary, outputs, files, folders); err != nil {
		return nil, err
	}
	e.logger.Info("extract finished", "files", summary.Files, "bytes", summary.Bytes)

	return summary, nil
}

func loadArchive(path string) (*archive.Archive, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the CLI's positional argument
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", path, err)
	}

	arch, err := archive.Open(archive.NewByteSource(data))
	if err != nil {
		return nil, fmt.Errorf("engine: parse %s: %w", path, err)
	}
	return arch, nil
}

// partitionFoldersFiles stable-partitions stats so folders precede files,
// matching the source's std::partition call, and returns the two
// sub-ranges as independent slices.
func partitionFoldersFiles(all []archive.Stat) (folders, files []archive.Stat) {
	for _, st := range all {
		if st.IsFolder {
			folders = append(folders, st)
		} else {
			files = append(files, st)
		}
	}
	return folders, files
}

// preCreateFolders gathers folder_path for every cached entry (folders
// and files alike) and creates every one of them before any worker runs.
func (e *Engine) preCreateFolders(all []archive.Stat) error {
	seen := make(map[string]struct{})
	var paths []pathutil.Path
	for _, st := range all {
		resolved := e.outPrefix.Join(st.FolderPath)
		key := resolved.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		paths = append(paths, resolved)
	}
	return fsutil.MkdirsP(paths)
}

func (e *Engine) runWorkers(
	arch *archive.Archive,
	lists [][]uint64,
	chunkSize uint64,
	tmpName shortext.Func,
	resolveDest func(string) string,
) ([]*workerOutput, error) {
	outputs := make([]*workerOutput, e.jobs)
	var eg errgroup.Group

	source := arch.Source()
	for i := 0; i < e.jobs; i++ {
		i := i
		eg.Go(func() error {
			outputs[i] = runWorker(i, source, lists[i], chunkSize, e.quiet, e.tsXform, tmpName, resolveDest, e.logger)
			return nil // worker failures never leave the goroutine; see workerOutput.OK
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	for i, out := range outputs {
		if !out.OK {
			return nil, fmt.Errorf("%w: worker %d: %v", ErrWorkerFailed, i, out.Err)
		}
	}
	return outputs, nil
}

func aggregate(summary *timing.UnzipSummary, outputs []*workerOutput, files, folders []archive.Stat) error {
	var totalFiles, totalTempNames int
	var totalBytes uint64
	for i, out := range outputs {
		summary.FilesPerWorker[i] = out.Files
		summary.BytesPerWorker[i] = out.Bytes
		summary.Watches[i] = out.Watch
		totalFiles += out.Files
		totalBytes += out.Bytes
		totalTempNames += out.TmpFiles
	}
	summary.Files = totalFiles
	summary.Bytes = totalBytes
	summary.Folders = len(folders)
	summary.NumTempNames = totalTempNames

	if totalFiles != len(files) {
		return fmt.Errorf("%w: extracted %d files, want %d", ErrAggregateMismatch, totalFiles, len(files))
	}

	var wantBytes uint64
	for _, f := range files {
		wantBytes += f.Size
	}
	if totalBytes != wantBytes {
		return fmt.Errorf("%w: extracted %d bytes, want %d", ErrAggregateMismatch, totalBytes, wantBytes)
	}
	return nil
}
