package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-repodocs/internal/extract"
	"github.com/NicabarNimble/go-repodocs/internal/git"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

func fixture(t *testing.T) (git.RepositoryInfo, []scanner.Document, *extract.Progress) {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) scanner.Document {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		ext := strings.TrimPrefix(filepath.Ext(rel), ".")
		return scanner.Document{
			SourcePath:   p,
			RelativePath: filepath.FromSlash(rel),
			Filename:     filepath.Base(p),
			Extension:    ext,
			Size:         int64(len(content)),
			Modified:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		}
	}

	docs := []scanner.Document{
		write("README.md", "# Widgets\n\nHello.\n"),
		write("docs/guide.md", "# Guide\n\nA much longer guide body for the widgets project.\n"),
		write("LICENSE", "MIT"),
	}

	info := git.RepositoryInfo{
		Owner:         "acme",
		Name:          "widgets",
		DefaultBranch: "main",
		TotalCommits:  3,
		URL:           "https://github.com/acme/widgets",
	}

	p := extract.NewProgress(len(docs), 0)
	for _, d := range docs[:2] {
		p.Update(d.Filename, d.Size)
	}
	p.AddError("Failed to copy LICENSE: output exists")
	return info, docs, p
}

func snapshot() ConfigSnapshot {
	return ConfigSnapshot{
		Extensions:        []string{"md", "txt"},
		MaxFileSize:       10 << 20,
		ExcludeDirs:       []string{"node_modules"},
		PreserveStructure: true,
	}
}

func TestBuild(t *testing.T) {
	info, docs, p := fixture(t)
	r := Build(info, docs, p, snapshot(), []string{"Permission denied: vendor"})

	assert.Len(t, r.RunID, 36)
	assert.Equal(t, "acme/widgets", r.Repository.FullName())
	assert.Len(t, r.Files, 3)
	assert.Equal(t, "docs/guide.md", r.Files[1].RelativePath)
	assert.Equal(t, "Markdown", r.Files[0].Language)

	s := r.Summary
	assert.Equal(t, 2, s.TotalFilesProcessed)
	assert.Equal(t, docs[0].Size+docs[1].Size, s.TotalBytesProcessed)
	assert.Equal(t, map[string]int{"md": 2, scanner.NoExtension: 1}, s.FilesByExtension)
	require.NotNil(t, s.LargestFile)
	assert.Equal(t, "guide.md", s.LargestFile.Filename)
	assert.Equal(t, (docs[0].Size+docs[1].Size+docs[2].Size)/3, s.AverageFileSize)

	assert.Equal(t, []string{"Failed to copy LICENSE: output exists"}, r.Errors)
	assert.Equal(t, []string{"Permission denied: vendor"}, r.ScanWarnings)
	assert.True(t, r.HasErrors())
}

func TestBuildEmpty(t *testing.T) {
	r := Build(git.RepositoryInfo{Owner: "a", Name: "b"}, nil, nil, ConfigSnapshot{}, nil)

	assert.Empty(t, r.Files)
	assert.NotNil(t, r.Errors)
	assert.Nil(t, r.Summary.LargestFile)
	assert.Zero(t, r.Summary.AverageFileSize)
	assert.False(t, r.HasErrors())

	_, err := EncodeJSON(r)
	require.NoError(t, err)
}

func TestBuildUniqueRunIDs(t *testing.T) {
	info, docs, p := fixture(t)
	a := Build(info, docs, p, snapshot(), nil)
	b := Build(info, docs, p, snapshot(), nil)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestEncodeDecodeJSON(t *testing.T) {
	info, docs, p := fixture(t)
	r := Build(info, docs, p, snapshot(), nil)

	data, err := EncodeJSON(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"repository_info"`)
	assert.Contains(t, string(data), `"extraction_duration"`)

	back, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, back.RunID)
	assert.Equal(t, r.Summary.FilesByExtension, back.Summary.FilesByExtension)
	assert.Equal(t, r.Summary.Duration.String(), back.Summary.Duration.String())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing fields", `{"run_id": "x"}`},
		{"wrong type", `{
			"run_id": "3f2b8c1e-8a4b-4c5d-9e6f-0a1b2c3d4e5f",
			"repository_info": {"owner": "a", "name": "b", "default_branch": "main", "total_commits": -1, "is_empty": false, "url": ""},
			"extraction_summary": {"total_files_processed": 0, "total_bytes_processed": 0, "extraction_duration": "0s", "files_by_extension": {}, "largest_file": null, "average_file_size": 0},
			"files": [],
			"extraction_time": "2024-01-01T00:00:00Z",
			"errors": [],
			"config_used": {"extensions": [], "max_file_size": 0, "exclude_dirs": [], "preserve_structure": true}
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))
		})
	}

	assert.Error(t, Validate([]byte("not json")))
}

func TestWriteText(t *testing.T) {
	info, docs, p := fixture(t)
	r := Build(info, docs, p, snapshot(), []string{"Scan error: boom"})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()

	for _, want := range []string{
		"RepoDocs Extraction Report",
		"Repository: acme/widgets",
		"Total commits: 3",
		"  Files processed: 2",
		"  md: 2 files",
		"  no_extension: 1 files",
		"  Path: docs/guide.md",
		"  Max file size: 10485760 (10 MiB)",
		"  Excluded directories: node_modules",
		"  - Failed to copy LICENSE: output exists",
		"Scan warnings:",
		"docs/guide.md",
	} {
		assert.Contains(t, out, want)
	}
	// table footers are upper-cased by the renderer
	assert.Contains(t, strings.ToLower(out), "total: 3 files")
}

func TestWriteSummaryMarkdown(t *testing.T) {
	info, docs, p := fixture(t)
	r := Build(info, docs, p, snapshot(), nil)

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryMarkdown(&buf, r))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Documentation Extraction Summary\n"))
	assert.Contains(t, out, "**Repository:** [acme/widgets](https://github.com/acme/widgets)")
	assert.Contains(t, out, "- **Files processed:** 2")
	assert.Contains(t, out, "- **md**: 2 files")
	assert.Contains(t, out, "- **no extension**: 1 files")
	assert.Contains(t, out, "## Issues Encountered")
	assert.True(t, strings.HasSuffix(out, "*Generated by repodocs*\n"))
}

func TestDurationJSON(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)
	assert.Error(t, back.UnmarshalJSON([]byte(`"soon"`)))
}
