package dist

import "github.com/no-more-secrets/p-unzip/internal/archive"

func init() {
	Register("runtime", runtimeStrategy)
}

// sizeWeight and fileWeight model, up to a proportionality constant, the
// relative cost of writing bytes versus the fixed per-file overhead of
// creating and closing a file. The constants are the source's calibrated
// values and are platform-dependent in principle, but are kept fixed here
// to match its behavior exactly.
const (
	sizeWeight uint64 = 1
	fileWeight uint64 = 5_000_000
)

// runtimeStrategy is bytesStrategy's greedy-argmin balancing, but weights
// each file by an estimate of its wall-clock cost rather than its raw
// size, so that many small files are not treated as free.
func runtimeStrategy(jobs int, files []archive.Stat) ([][]uint64, error) {
	return byWeight(jobs, files, func(st archive.Stat) uint64 {
		return sizeWeight*st.Size + fileWeight
	})
}
