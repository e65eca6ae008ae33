// Package report builds the extraction report and renders it as JSON, plain
// text and a markdown summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/src-d/enry/v2"

	"github.com/NicabarNimble/go-repodocs/internal/extract"
	"github.com/NicabarNimble/go-repodocs/internal/git"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

// languageSampleSize bounds how much of each file is read for language
// detection.
const languageSampleSize = 8 * 1024

var now = time.Now

// Report is the record of one extraction run.
type Report struct {
	RunID          string             `json:"run_id"`
	Repository     git.RepositoryInfo `json:"repository_info"`
	Summary        Summary            `json:"extraction_summary"`
	Files          []FileInfo         `json:"files"`
	ExtractionTime time.Time          `json:"extraction_time"`
	Errors         []string           `json:"errors"`
	ScanWarnings   []string           `json:"scan_warnings,omitempty"`
	Config         ConfigSnapshot     `json:"config_used"`
}

// Summary aggregates the run.
type Summary struct {
	TotalFilesProcessed int            `json:"total_files_processed"`
	TotalBytesProcessed int64          `json:"total_bytes_processed"`
	Duration            Duration       `json:"extraction_duration"`
	FilesByExtension    map[string]int `json:"files_by_extension"`
	LargestFile         *FileInfo      `json:"largest_file"`
	AverageFileSize     int64          `json:"average_file_size"`
}

// FileInfo describes one selected document.
type FileInfo struct {
	Filename     string    `json:"filename"`
	RelativePath string    `json:"relative_path"`
	Extension    string    `json:"extension"`
	Language     string    `json:"language,omitempty"`
	Size         int64     `json:"size"`
	Modified     time.Time `json:"modified"`
}

// ConfigSnapshot is the subset of configuration that shaped the run.
type ConfigSnapshot struct {
	Extensions        []string `json:"extensions"`
	MaxFileSize       int64    `json:"max_file_size"`
	ExcludeDirs       []string `json:"exclude_dirs"`
	PreserveStructure bool     `json:"preserve_structure"`
}

// Duration marshals as a Go duration string such as "1.5s".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).Round(time.Millisecond).String()
}

// Build assembles a report from the run's results. progress may be nil when
// nothing was copied.
func Build(info git.RepositoryInfo, docs []scanner.Document, progress *extract.Progress, cfg ConfigSnapshot, scanErrors []string) *Report {
	files := make([]FileInfo, 0, len(docs))
	for _, d := range docs {
		files = append(files, newFileInfo(d))
	}

	stats := scanner.ComputeStatistics(docs)
	summary := Summary{
		FilesByExtension: stats.FilesByExtension,
		AverageFileSize:  stats.AverageSize(),
	}
	for i := range docs {
		if docs[i].DisplayPath() == stats.LargestFilePath && stats.LargestFileSize > 0 {
			largest := files[i]
			summary.LargestFile = &largest
			break
		}
	}

	errs := []string{}
	if progress != nil {
		summary.TotalFilesProcessed = progress.FilesProcessed
		summary.TotalBytesProcessed = progress.BytesProcessed
		summary.Duration = Duration(progress.Elapsed())
		errs = append(errs, progress.Errors...)
	}

	return &Report{
		RunID:          uuid.New().String(),
		Repository:     info,
		Summary:        summary,
		Files:          files,
		ExtractionTime: now().UTC(),
		Errors:         errs,
		ScanWarnings:   append([]string(nil), scanErrors...),
		Config:         cfg.normalized(),
	}
}

// HasErrors reports whether any file failed to copy.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// ByExtension returns the extension buckets by descending count.
func (r *Report) ByExtension() []scanner.ExtensionCount {
	return scanner.Statistics{FilesByExtension: r.Summary.FilesByExtension}.ByCount()
}

func (c ConfigSnapshot) normalized() ConfigSnapshot {
	if c.Extensions == nil {
		c.Extensions = []string{}
	}
	if c.ExcludeDirs == nil {
		c.ExcludeDirs = []string{}
	}
	return c
}

func newFileInfo(d scanner.Document) FileInfo {
	return FileInfo{
		Filename:     d.Filename,
		RelativePath: d.DisplayPath(),
		Extension:    d.Extension,
		Language:     detectLanguage(d),
		Size:         d.Size,
		Modified:     d.Modified.UTC(),
	}
}

func detectLanguage(d scanner.Document) string {
	return enry.GetLanguage(filepath.Base(d.Filename), sample(d.SourcePath))
}

func sample(path string) []byte {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, languageSampleSize)
	n, _ := io.ReadFull(f, buf)
	return buf[:n]
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
