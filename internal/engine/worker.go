package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/no-more-secrets/p-unzip/internal/archive"
	"github.com/no-more-secrets/p-unzip/internal/fsutil"
	"github.com/no-more-secrets/p-unzip/internal/shortext"
	"github.com/no-more-secrets/p-unzip/internal/timing"
)

// logMu serializes the per-file log line across every worker so that
// concurrent goroutines never interleave partial lines. It is
// process-wide by design: the engine never runs two extractions
// concurrently against the same terminal, and a package-level mutex
// mirrors the source's single static mutex exactly.
var logMu sync.Mutex

// workerOutput is what a worker reports back to the engine. The engine
// only reads it after every worker has returned, so no synchronization
// is required on these fields themselves.
type workerOutput struct {
	Watch    *timing.Stopwatch
	Files    int
	Bytes    uint64
	TmpFiles int
	OK       bool
	Err      error
}

// runWorker extracts every entry named by idxs. It never returns an error
// to its caller: any failure is recorded in the output's Err/OK fields,
// mirroring the source's thread-boundary exception barrier. The caller
// (typically an errgroup.Group) should treat a nil return as "ran to
// completion" and separately inspect OK.
func runWorker(
	threadIdx int,
	source archive.ByteSource,
	idxs []uint64,
	chunkSize uint64,
	quiet bool,
	tsXform TsXform,
	tmpName shortext.Func,
	resolveDest func(name string) string,
	logger *slog.Logger,
) *workerOutput {
	out := &workerOutput{Watch: timing.NewStopwatch()}

	err := out.Watch.Run("unzip", func() error {
		return extractAssigned(threadIdx, source, idxs, chunkSize, quiet, tsXform, tmpName, resolveDest, logger, out)
	})
	if err != nil {
		out.Err = err
		out.OK = false
		return out
	}
	out.OK = true
	return out
}

func extractAssigned(
	threadIdx int,
	source archive.ByteSource,
	idxs []uint64,
	chunkSize uint64,
	quiet bool,
	tsXform TsXform,
	tmpName shortext.Func,
	resolveDest func(name string) string,
	logger *slog.Logger,
	out *workerOutput,
) error {
	arch, err := archive.Open(source)
	if err != nil {
		return fmt.Errorf("engine: worker %d: %w", threadIdx, err)
	}

	scratch := make([]byte, chunkSize)

	for _, idx := range idxs {
		st, err := arch.At(idx)
		if err != nil {
			return fmt.Errorf("engine: worker %d: %w", threadIdx, err)
		}

		if !quiet {
			logMu.Lock()
			logger.Info(fmt.Sprintf("%d> %s", threadIdx, st.Name))
			logMu.Unlock()
		}

		dest := resolveDest(st.Name)
		tmp := tmpName(dest)
		if tmp != dest {
			out.TmpFiles++
		}

		if err := arch.ExtractTo(idx, tmp, scratch); err != nil {
			return fmt.Errorf("engine: worker %d: extract %s: %w", threadIdx, st.Name, err)
		}
		if err := fsutil.RenameFile(tmp, dest); err != nil {
			return fmt.Errorf("engine: worker %d: rename %s: %w", threadIdx, st.Name, err)
		}

		if t := tsXform(st.Mtime); t != 0 {
			if err := fsutil.SetTimestamp(dest, t); err != nil {
				return fmt.Errorf("engine: worker %d: set timestamp %s: %w", threadIdx, st.Name, err)
			}
		}

		out.Files++
		out.Bytes += st.Size
	}
	return nil
}
