// Package scanner walks a checkout and selects documentation files.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/filter"
)

// Document describes one selected file. RelativePath never contains a
// parent-directory segment.
type Document struct {
	SourcePath   string
	RelativePath string
	Filename     string
	Extension    string
	Size         int64
	Modified     time.Time
}

// DisplayPath returns the relative path with forward slashes.
func (d Document) DisplayPath() string {
	return filepath.ToSlash(d.RelativePath)
}

// Result is the outcome of a successful scan.
type Result struct {
	Documents []Document // sorted by RelativePath
	Errors    []string   // non-fatal errors encountered during the walk
	Visited   int        // entries visited below the root
}

// Scanner selects documents under a root directory using a FileFilter.
type Scanner struct {
	filter *filter.FileFilter
	token  *cancel.Token
	logger *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithToken makes the scan observe a cancellation token between directories.
func WithToken(t *cancel.Token) Option {
	return func(s *Scanner) { s.token = t }
}

// WithLogger sets the logger used for per-entry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New creates a Scanner for f.
func New(f *filter.FileFilter, opts ...Option) *Scanner {
	s := &Scanner{filter: f, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type walkState struct {
	docs    []Document
	errs    []string
	healthy int
	failed  int
	visited int
}

// Scan walks root and returns the selected documents. Symbolic links are
// never followed and excluded directories are never entered. It fails when
// root is not a directory, when every entry below root errored, or when no
// documents were selected.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	const op = "scan"

	if err := s.checkpoint(ctx); err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, rderrors.New(rderrors.KindInvalidInput, op, err).WithTarget(root)
	}
	if !info.IsDir() {
		return nil, rderrors.Newf(rderrors.KindInvalidInput, op, "%s is not a directory", root).WithTarget(root)
	}

	st := &walkState{}
	maxDepth := s.filter.MaxDepth()

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		isRoot := path == root

		if err != nil {
			if isRoot && d == nil {
				return err
			}
			if !isRoot && d != nil && d.IsDir() {
				// counted as healthy when first visited
				st.healthy--
			}
			st.failed++
			st.errs = append(st.errs, describeWalkError(path, err))
			s.logger.Debug("scan entry failed", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if isRoot {
			return nil
		}
		st.visited++

		depth := depthOf(root, path)

		if d.IsDir() {
			if err := s.checkpoint(ctx); err != nil {
				return err
			}
			st.healthy++
			if !s.filter.ShouldTraverseDirectory(path) {
				return fs.SkipDir
			}
			if depth >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			st.healthy++
			return nil
		}
		if depth > maxDepth {
			return nil
		}

		doc, ok, ferr := s.processFile(root, path, d)
		if ferr != nil {
			st.failed++
			st.errs = append(st.errs, fmt.Sprintf("Error processing %s: %v", path, ferr))
			return nil
		}
		st.healthy++
		if ok {
			st.docs = append(st.docs, doc)
		}
		return nil
	})

	if walkErr != nil {
		if rderrors.IsCancelled(walkErr) {
			return nil, walkErr
		}
		return nil, rderrors.New(rderrors.KindIO, op, walkErr).WithTarget(root)
	}

	if len(st.docs) == 0 {
		if st.failed > 0 && st.healthy <= 0 {
			return nil, rderrors.Newf(rderrors.KindPermissionDenied, op,
				"every entry failed: %s", strings.Join(st.errs, ", ")).WithTarget(root)
		}
		return nil, rderrors.NoDocuments(op, s.filter.Extensions())
	}

	sort.Slice(st.docs, func(i, j int) bool {
		return st.docs[i].RelativePath < st.docs[j].RelativePath
	})

	s.logger.Debug("scan complete", "root", root, "documents", len(st.docs),
		"errors", len(st.errs), "visited", st.visited)

	return &Result{Documents: st.docs, Errors: st.errs, Visited: st.visited}, nil
}

func (s *Scanner) processFile(root, path string, d fs.DirEntry) (Document, bool, error) {
	if !s.filter.IsDocumentationFile(path) {
		return Document{}, false, nil
	}
	if s.filter.IsExcludedFile(path) {
		return Document{}, false, nil
	}

	info, err := d.Info()
	if err != nil {
		return Document{}, false, err
	}
	if !s.filter.IsSizeAllowed(info.Size()) {
		return Document{}, false, nil
	}

	rel, err := relativePath(root, path)
	if err != nil {
		return Document{}, false, err
	}

	name := d.Name()
	return Document{
		SourcePath:   path,
		RelativePath: rel,
		Filename:     name,
		Extension:    filter.Extension(name),
		Size:         info.Size(),
		Modified:     info.ModTime(),
	}, true, nil
}

func (s *Scanner) checkpoint(ctx context.Context) error {
	if err := s.token.Check("scan"); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return rderrors.New(rderrors.KindCancelled, "scan", ctx.Err())
	}
	return nil
}

func relativePath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("cannot calculate relative path for %s from root %s: %w", path, root, err)
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if segment == ".." {
			return "", fmt.Errorf("path contains parent directory references: %s", rel)
		}
	}
	return rel, nil
}

func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

func describeWalkError(path string, err error) string {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Sprintf("Permission denied: %s: %v", path, err)
	}
	return fmt.Sprintf("Scan error: %s: %v", path, err)
}
