package dist

import (
	"sort"

	"github.com/no-more-secrets/p-unzip/internal/archive"
)

func init() {
	Register("sliced", sliced)
}

// sliced sorts files by name ascending, then gives each worker an equal
// contiguous chunk; any residual (< jobs files, since it is the remainder
// of an integer division) is distributed cyclically among the workers
// starting at index 0. Sorting by name first means a folder's files,
// which sort adjacently, tend to land on the same worker.
func sliced(jobs int, files []archive.Stat) ([][]uint64, error) {
	stats := make([]archive.Stat, len(files))
	copy(stats, files)
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	lists := make([][]uint64, jobs)

	n := len(stats)
	chunk := n / jobs
	if chunk < 1 {
		chunk = 1
	}
	residual := n % jobs
	slicedEnd := n - residual

	for k, st := range stats {
		var where int
		if k < slicedEnd {
			where = k / chunk
		} else {
			where = k % jobs
		}
		lists[where] = append(lists[where], st.Index)
	}
	return lists, nil
}
