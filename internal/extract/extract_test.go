package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

// sourceTree writes files under a fresh directory and returns matching
// documents in the given order.
func sourceTree(t *testing.T, files map[string]string, order ...string) (string, []scanner.Document) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	docs := make([]scanner.Document, 0, len(order))
	for _, rel := range order {
		p := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(p)
		require.NoError(t, err)
		docs = append(docs, scanner.Document{
			SourcePath:   p,
			RelativePath: filepath.FromSlash(rel),
			Filename:     filepath.Base(p),
			Extension:    strings.TrimPrefix(filepath.Ext(p), "."),
			Size:         info.Size(),
			Modified:     info.ModTime(),
		})
	}
	return root, docs
}

func TestExtractFilesPreservesStructure(t *testing.T) {
	_, docs := sourceTree(t, map[string]string{
		"README.md":           "# readme",
		"docs/guide/intro.md": "intro",
		"docs/api.rst":        "api",
	}, "README.md", "docs/api.rst", "docs/guide/intro.md")

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(docs[0].SourcePath, old, old))

	out := filepath.Join(t.TempDir(), "out")
	ops := NewFileOperations()
	p, err := ops.ExtractFiles(docs, out, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, p.FilesProcessed)
	assert.Equal(t, int64(len("# readme")+len("intro")+len("api")), p.BytesProcessed)
	assert.Empty(t, p.Errors)

	for _, d := range docs {
		want, err := os.ReadFile(d.SourcePath)
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(out, d.RelativePath))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), d.RelativePath)
	}

	info, err := os.Stat(filepath.Join(out, "README.md"))
	require.NoError(t, err)
	assert.WithinDuration(t, old, info.ModTime(), time.Second)
}

func TestExtractFilesRecordsExistingDestination(t *testing.T) {
	_, docs := sourceTree(t, map[string]string{
		"a.md": "a",
		"b.md": "b",
		"c.md": "c",
	}, "a.md", "b.md", "c.md")

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "b.md"), []byte("keep"), 0o644))

	p, err := NewFileOperations().ExtractFiles(docs, out, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, p.FilesProcessed)
	require.Len(t, p.Errors, 1)
	assert.True(t, strings.HasPrefix(p.Errors[0], "Failed to copy "+docs[1].SourcePath+": "), p.Errors[0])

	got, err := os.ReadFile(filepath.Join(out, "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestExtractFilesFlattenCollision(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		processed int
		errors    int
		content   string
	}{
		{name: "without force", force: false, processed: 1, errors: 1, content: "api"},
		{name: "with force", force: true, processed: 2, errors: 0, content: "docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, docs := sourceTree(t, map[string]string{
				"api/README.md":  "api",
				"docs/README.md": "docs",
			}, "api/README.md", "docs/README.md")

			out := t.TempDir()
			ops := NewFileOperations(WithPreserveStructure(false), WithForceOverwrite(tt.force))
			p, err := ops.ExtractFiles(docs, out, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.processed, p.FilesProcessed)
			assert.Len(t, p.Errors, tt.errors)

			got, err := os.ReadFile(filepath.Join(out, "README.md"))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(got))
		})
	}
}

func TestExtractFilesRejectsTraversal(t *testing.T) {
	root, docs := sourceTree(t, map[string]string{"x.md": "x"}, "x.md")
	docs[0].RelativePath = filepath.Join("..", "escape.md")

	out := filepath.Join(root, "out")
	p, err := NewFileOperations().ExtractFiles(docs, out, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, p.FilesProcessed)
	require.Len(t, p.Errors, 1)
	assert.NoFileExists(t, filepath.Join(root, "escape.md"))
}

func TestExtractFilesRelativeOutputRoot(t *testing.T) {
	_, docs := sourceTree(t, map[string]string{"README.md": "r", "docs/a.md": "a"}, "README.md", "docs/a.md")

	parent := t.TempDir()
	work := filepath.Join(parent, "work")
	require.NoError(t, os.Mkdir(work, 0o755))
	t.Chdir(work)

	p, err := NewFileOperations().ExtractFiles(docs, filepath.Join("..", "out"), nil)
	require.NoError(t, err)
	assert.Empty(t, p.Errors)
	assert.Equal(t, 2, p.FilesProcessed)
	assert.FileExists(t, filepath.Join(parent, "out", "README.md"))
	assert.FileExists(t, filepath.Join(parent, "out", "docs", "a.md"))
}

func TestExtractFilesSink(t *testing.T) {
	_, docs := sourceTree(t, map[string]string{
		"a.md": "a",
		"b.md": "bb",
	}, "a.md", "b.md")

	var seen []int
	var current []string
	sink := func(p *Progress) {
		seen = append(seen, p.FilesProcessed)
		current = append(current, p.CurrentFile)
	}

	_, err := NewFileOperations().ExtractFiles(docs, t.TempDir(), sink)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, []string{"a.md", "b.md", "b.md"}, current)
}

func TestExtractFilesCancellation(t *testing.T) {
	_, docs := sourceTree(t, map[string]string{
		"a.md": "a",
		"b.md": "b",
		"c.md": "c",
	}, "a.md", "b.md", "c.md")

	t.Run("before start", func(t *testing.T) {
		tok := cancel.New()
		tok.Cancel()

		p, err := NewFileOperations(WithToken(tok)).ExtractFiles(docs, t.TempDir(), nil)
		require.Error(t, err)
		assert.True(t, rderrors.IsCancelled(err))
		assert.Equal(t, 0, p.FilesProcessed)
	})

	t.Run("after first file", func(t *testing.T) {
		tok := cancel.New()
		sink := func(p *Progress) {
			tok.Cancel()
		}

		out := t.TempDir()
		p, err := NewFileOperations(WithToken(tok)).ExtractFiles(docs, out, sink)
		require.Error(t, err)
		assert.True(t, rderrors.IsCancelled(err))
		assert.Equal(t, 1, p.FilesProcessed)
		assert.FileExists(t, filepath.Join(out, "a.md"))
		assert.NoFileExists(t, filepath.Join(out, "b.md"))
	})
}

func TestSecureCopyRejectsNonRegularSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileOperations().SecureCopy(dir, filepath.Join(t.TempDir(), "x.md"))
	require.Error(t, err)
	assert.True(t, rderrors.IsKind(err, rderrors.KindInvalidInput))

	_, err = NewFileOperations().SecureCopy(filepath.Join(dir, "missing.md"), filepath.Join(dir, "y.md"))
	require.Error(t, err)
	assert.True(t, rderrors.IsKind(err, rderrors.KindIO))
}

func TestSecureCopyExistingDestination(t *testing.T) {
	_, docs := sourceTree(t, map[string]string{"a.md": "new"}, "a.md")
	dest := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, os.WriteFile(dest, []byte("old content"), 0o644))

	_, err := NewFileOperations().SecureCopy(docs[0].SourcePath, dest)
	require.Error(t, err)
	assert.True(t, rderrors.IsKind(err, rderrors.KindOutputExists))

	n, err := NewFileOperations(WithForceOverwrite(true)).SecureCopy(docs[0].SourcePath, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestSecureCopyLargeFileSmallBuffer(t *testing.T) {
	content := strings.Repeat("0123456789abcdef", 4096) // 64 KiB
	_, docs := sourceTree(t, map[string]string{"big.md": content}, "big.md")
	dest := filepath.Join(t.TempDir(), "big.md")

	n, err := NewFileOperations(WithBufferSize(1)).SecureCopy(docs[0].SourcePath, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestBufferSizeFloor(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, MinBufferSize},
		{100, MinBufferSize},
		{MinBufferSize, MinBufferSize},
		{1 << 20, 1 << 20},
	}
	for _, tt := range tests {
		ops := NewFileOperations(WithBufferSize(tt.in))
		assert.Equal(t, tt.want, ops.bufferSize, "WithBufferSize(%d)", tt.in)
	}
	assert.Equal(t, DefaultBufferSize, NewFileOperations().bufferSize)
}

func TestDestination(t *testing.T) {
	doc := scanner.Document{RelativePath: filepath.Join("docs", "a.md"), Filename: "a.md"}
	assert.Equal(t, filepath.Join("out", "docs", "a.md"), NewFileOperations().Destination(doc, "out"))
	assert.Equal(t, filepath.Join("out", "a.md"), NewFileOperations(WithPreserveStructure(false)).Destination(doc, "out"))
}
