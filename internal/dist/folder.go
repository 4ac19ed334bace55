package dist

import (
	"sort"

	"github.com/no-more-secrets/p-unzip/internal/archive"
)

func init() {
	Register("folder_files", folderFiles)
	Register("folder_bytes", folderBytes)
}

// folderFiles keeps every file in a given folder on the same worker,
// weighting each folder by its file count.
func folderFiles(jobs int, files []archive.Stat) ([][]uint64, error) {
	return byFolder(jobs, files, func(archive.Stat) uint64 { return 1 })
}

// folderBytes is folderFiles with the per-file metric switched to
// uncompressed size, so folders are balanced by total bytes instead of
// file count.
func folderBytes(jobs int, files []archive.Stat) ([][]uint64, error) {
	return byFolder(jobs, files, func(st archive.Stat) uint64 { return st.Size })
}

// byFolder is the generic template both folder strategies are built on:
// group files by folder_path, compute each folder's total metric, sort
// folders descending by that metric, and assign each folder's entire
// file list, in one piece, to whichever worker currently has the
// smallest running total (lowest-index tie-break).
func byFolder(jobs int, files []archive.Stat, metric func(archive.Stat) uint64) ([][]uint64, error) {
	type folder struct {
		path  string
		stats []archive.Stat
		total uint64
	}

	byPath := make(map[string]*folder)
	var order []string
	for _, st := range files {
		key := st.FolderPath.String()
		f, ok := byPath[key]
		if !ok {
			f = &folder{path: key}
			byPath[key] = f
			order = append(order, key)
		}
		f.stats = append(f.stats, st)
		f.total += metric(st)
	}

	folders := make([]*folder, 0, len(order))
	for _, key := range order {
		folders = append(folders, byPath[key])
	}
	sort.SliceStable(folders, func(i, j int) bool { return folders[i].total > folders[j].total })

	lists := make([][]uint64, jobs)
	totals := make([]uint64, jobs)
	for _, f := range folders {
		w := argmin(totals)
		for _, st := range f.stats {
			lists[w] = append(lists[w], st.Index)
		}
		totals[w] += f.total
	}
	return lists, nil
}
