package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

func bytesLabel(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

// WriteText writes the plain-text report stored under .repodocs.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	p("RepoDocs Extraction Report")
	p("==========================")
	p("")
	p("Repository: %s", r.Repository.FullName())
	p("URL: %s", r.Repository.URL)
	p("Branch: %s", r.Repository.DefaultBranch)
	p("Total commits: %d", r.Repository.TotalCommits)
	p("Repository empty: %t", r.Repository.IsEmpty)
	p("Run ID: %s", r.RunID)
	p("")

	s := r.Summary
	p("Extraction Summary:")
	p("  Extracted at: %s", r.ExtractionTime.Format("2006-01-02 15:04:05 UTC"))
	p("  Duration: %s", s.Duration)
	p("  Files processed: %d", s.TotalFilesProcessed)
	p("  Bytes processed: %d (%s)", s.TotalBytesProcessed, bytesLabel(s.TotalBytesProcessed))
	p("  Average file size: %d (%s)", s.AverageFileSize, bytesLabel(s.AverageFileSize))
	p("")

	if len(s.FilesByExtension) > 0 {
		p("Files by extension:")
		for _, row := range r.ByExtension() {
			p("  %s: %d files", row.Extension, row.Count)
		}
		p("")
	}

	if s.LargestFile != nil {
		p("Largest file:")
		p("  Name: %s", s.LargestFile.Filename)
		p("  Path: %s", s.LargestFile.RelativePath)
		p("  Size: %d (%s)", s.LargestFile.Size, bytesLabel(s.LargestFile.Size))
		p("")
	}

	c := r.Config
	p("Configuration used:")
	p("  Extensions: %s", joinOrNone(c.Extensions))
	p("  Max file size: %d (%s)", c.MaxFileSize, bytesLabel(c.MaxFileSize))
	p("  Excluded directories: %s", joinOrNone(c.ExcludeDirs))
	p("  Preserve structure: %t", c.PreserveStructure)
	p("")

	if len(r.Errors) > 0 {
		p("Errors encountered:")
		for _, e := range r.Errors {
			p("  - %s", e)
		}
		p("")
	}

	if len(r.ScanWarnings) > 0 {
		p("Scan warnings:")
		for _, e := range r.ScanWarnings {
			p("  - %s", e)
		}
		p("")
	}

	p("Extracted files:")
	p("%s", FilesTable(r.Files))

	return bw.Flush()
}

// FilesTable renders files as an aligned table.
func FilesTable(files []FileInfo) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateHeader = false
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Path", "Size", "Type", "Language"})
	for _, f := range files {
		ext := f.Extension
		if ext == "" {
			ext = scanner.NoExtension
		}
		tbl.AppendRow(table.Row{f.RelativePath, f.Size, ext, f.Language})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(files))})
	return tbl.Render()
}

// WriteSummaryMarkdown writes the EXTRACTION_SUMMARY.md contents.
func WriteSummaryMarkdown(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	p("# Documentation Extraction Summary")
	p("")
	p("**Repository:** [%s](%s)", r.Repository.FullName(), r.Repository.URL)
	p("**Extracted:** %s", r.ExtractionTime.Format("2006-01-02 15:04 UTC"))
	p("**Duration:** %s", r.Summary.Duration)
	p("")

	p("## Statistics")
	p("")
	p("- **Files processed:** %d", r.Summary.TotalFilesProcessed)
	p("- **Total size:** %s", bytesLabel(r.Summary.TotalBytesProcessed))
	p("- **Average file size:** %s", bytesLabel(r.Summary.AverageFileSize))
	p("")

	if len(r.Summary.FilesByExtension) > 0 {
		p("## File Types")
		p("")
		for _, row := range r.ByExtension() {
			name := row.Extension
			if name == scanner.NoExtension {
				name = "no extension"
			}
			p("- **%s**: %d files", name, row.Count)
		}
		p("")
	}

	if len(r.Errors) > 0 {
		p("## Issues Encountered")
		p("")
		for _, e := range r.Errors {
			p("- %s", e)
		}
		p("")
	}

	p("---")
	p("*Generated by repodocs*")
	return bw.Flush()
}
