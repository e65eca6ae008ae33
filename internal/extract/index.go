package extract

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/filelock"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

const (
	// IndexFileName is the markdown index written into the output root.
	IndexFileName = "_index.md"
	// IndexHTMLFileName is the optional rendered index.
	IndexHTMLFileName = "_index.html"

	rootSection = "Root Directory"
)

// BuildIndex renders the documentation index for docs. Documents are grouped
// by source directory in lexical order with the root first, and links point
// at the copied files: the relative path when structure is preserved, the
// bare filename otherwise. The output depends only on docs.
func BuildIndex(docs []scanner.Document, preserve bool) []byte {
	groups := make(map[string][]scanner.Document)
	for _, d := range docs {
		dir := path.Dir(d.DisplayPath())
		if dir == "." {
			dir = ""
		}
		groups[dir] = append(groups[dir], d)
	}

	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var b bytes.Buffer
	b.WriteString("# Documentation Index\n\n")

	var totalSize int64
	for _, dir := range dirs {
		if dir == "" {
			fmt.Fprintf(&b, "## %s\n\n", rootSection)
		} else {
			fmt.Fprintf(&b, "## %s/\n\n", dir)
		}

		files := groups[dir]
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Filename < files[j].Filename
		})
		for _, d := range files {
			link := d.Filename
			if preserve {
				link = d.DisplayPath()
			}
			fmt.Fprintf(&b, "- [%s](%s) (%d bytes)\n", d.Filename, escapeLink(link), d.Size)
			totalSize += d.Size
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n")
	fmt.Fprintf(&b, "Total files: %d\n", len(docs))
	fmt.Fprintf(&b, "Total size: %d bytes\n", totalSize)
	return b.Bytes()
}

// CreateIndexFile writes _index.md into outputDir and returns its path. A
// copied document of the same name is replaced and logged.
func (f *FileOperations) CreateIndexFile(docs []scanner.Document, outputDir string) (string, error) {
	dest := filepath.Join(outputDir, IndexFileName)
	f.warnReplaced(dest)
	if err := filelock.AtomicWrite(dest, BuildIndex(docs, f.preserve)); err != nil {
		return "", rderrors.Wrap("write index", err)
	}
	return dest, nil
}

// RenderIndexHTML converts the markdown index at indexPath into a standalone
// HTML page next to it and returns the page's path.
func (f *FileOperations) RenderIndexHTML(indexPath string) (string, error) {
	src, err := os.ReadFile(indexPath)
	if err != nil {
		return "", rderrors.Wrap("read index", err)
	}

	var body bytes.Buffer
	if err := goldmark.New().Convert(src, &body); err != nil {
		return "", rderrors.New(rderrors.KindIO, "render index", err).WithTarget(indexPath)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Documentation Index</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	dest := filepath.Join(filepath.Dir(indexPath), IndexHTMLFileName)
	f.warnReplaced(dest)
	if err := filelock.AtomicWrite(dest, page.Bytes()); err != nil {
		return "", rderrors.Wrap("write index", err)
	}
	return dest, nil
}

func (f *FileOperations) warnReplaced(dest string) {
	if _, err := os.Lstat(dest); err == nil {
		f.logger.Warn("generated file replaces a copied document", "file", dest)
	}
}

func escapeLink(link string) string {
	r := strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29")
	return r.Replace(link)
}
