package dist

import "github.com/no-more-secrets/p-unzip/internal/archive"

func init() {
	Register("cyclic", cyclic)
}

// cyclic assigns the kth file, in input order, to worker k mod jobs.
func cyclic(jobs int, files []archive.Stat) ([][]uint64, error) {
	lists := make([][]uint64, jobs)
	for i, f := range files {
		w := i % jobs
		lists[w] = append(lists[w], f.Index)
	}
	return lists, nil
}
