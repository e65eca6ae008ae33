package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// NoExtension is the statistics bucket for files without an extension.
const NoExtension = "no_extension"

// Statistics summarizes a set of documents.
type Statistics struct {
	TotalFiles       int
	TotalSize        int64
	FilesByExtension map[string]int
	LargestFileSize  int64
	LargestFilePath  string
}

// ExtensionCount is one row of Statistics.ByCount.
type ExtensionCount struct {
	Extension string
	Count     int
}

// ComputeStatistics totals docs by extension and finds the largest file.
// Ties for the largest file go to the first in order.
func ComputeStatistics(docs []Document) Statistics {
	stats := Statistics{FilesByExtension: make(map[string]int)}
	for _, doc := range docs {
		stats.TotalFiles++
		stats.TotalSize += doc.Size

		ext := doc.Extension
		if ext == "" {
			ext = NoExtension
		}
		stats.FilesByExtension[ext]++

		if doc.Size > stats.LargestFileSize {
			stats.LargestFileSize = doc.Size
			stats.LargestFilePath = doc.DisplayPath()
		}
	}
	return stats
}

// ByCount returns the extension buckets ordered by descending count, then
// by name.
func (s Statistics) ByCount() []ExtensionCount {
	out := make([]ExtensionCount, 0, len(s.FilesByExtension))
	for ext, n := range s.FilesByExtension {
		out = append(out, ExtensionCount{Extension: ext, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Extension < out[j].Extension
	})
	return out
}

// AverageSize returns the mean document size, or 0 for an empty set.
func (s Statistics) AverageSize() int64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return s.TotalSize / int64(s.TotalFiles)
}

// Summary renders the statistics as indented text.
func (s Statistics) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan Results:\n  Total files: %d\n  Total size: %s\n",
		s.TotalFiles, humanize.IBytes(uint64(s.TotalSize)))

	if len(s.FilesByExtension) > 0 {
		b.WriteString("  Files by type:\n")
		for _, row := range s.ByCount() {
			fmt.Fprintf(&b, "    %s: %d files\n", row.Extension, row.Count)
		}
	}

	if s.LargestFileSize > 0 {
		fmt.Fprintf(&b, "  Largest file: %s (%s)\n",
			s.LargestFilePath, humanize.IBytes(uint64(s.LargestFileSize)))
	}
	return b.String()
}
