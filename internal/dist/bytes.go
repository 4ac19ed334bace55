package dist

import (
	"sort"

	"github.com/no-more-secrets/p-unzip/internal/archive"
)

func init() {
	Register("bytes", bytesStrategy)
}

// bytesStrategy sorts files descending by uncompressed size, then greedily
// assigns each to whichever worker currently has the smallest running
// total, breaking ties by lowest worker index. Sorting largest-first
// means the big files get placed while there is the most room left to
// balance them out with the smaller ones that follow.
func bytesStrategy(jobs int, files []archive.Stat) ([][]uint64, error) {
	return byWeight(jobs, files, func(st archive.Stat) uint64 { return st.Size })
}

func byWeight(jobs int, files []archive.Stat, weight func(archive.Stat) uint64) ([][]uint64, error) {
	stats := make([]archive.Stat, len(files))
	copy(stats, files)
	sort.Slice(stats, func(i, j int) bool { return stats[i].Size > stats[j].Size })

	lists := make([][]uint64, jobs)
	totals := make([]uint64, jobs)
	for _, st := range stats {
		w := argmin(totals)
		lists[w] = append(lists[w], st.Index)
		totals[w] += weight(st)
	}
	return lists, nil
}
