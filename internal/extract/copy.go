// Package extract copies selected documents into an output tree and writes
// the documentation index.
package extract

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/pathguard"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

const (
	// DefaultBufferSize is the copy buffer used when none is configured.
	DefaultBufferSize = 64 * 1024
	// MinBufferSize is the smallest buffer WithBufferSize accepts.
	MinBufferSize = 4 * 1024
)

const opCopy = "copy file"

// FileOperations copies documents with destination validation.
type FileOperations struct {
	preserve   bool
	force      bool
	bufferSize int
	guard      pathguard.Options
	token      *cancel.Token
	logger     *slog.Logger
}

// Option configures FileOperations.
type Option func(*FileOperations)

// WithPreserveStructure keeps each document's relative directory. When
// false, documents are written flat under the output root by filename.
func WithPreserveStructure(preserve bool) Option {
	return func(f *FileOperations) { f.preserve = preserve }
}

// WithForceOverwrite allows existing destination files to be replaced.
func WithForceOverwrite(force bool) Option {
	return func(f *FileOperations) { f.force = force }
}

// WithBufferSize sets the copy buffer size. Values below MinBufferSize are
// raised to it.
func WithBufferSize(size int) Option {
	return func(f *FileOperations) { f.bufferSize = max(size, MinBufferSize) }
}

// WithCrossPlatform enables the reserved-name and illegal-character checks
// for destinations regardless of the host OS.
func WithCrossPlatform(enabled bool) Option {
	return func(f *FileOperations) { f.guard.CrossPlatform = enabled }
}

// WithToken makes ExtractFiles stop before the next file once t is cancelled.
func WithToken(t *cancel.Token) Option {
	return func(f *FileOperations) { f.token = t }
}

// WithLogger sets the logger used for per-file failures.
func WithLogger(l *slog.Logger) Option {
	return func(f *FileOperations) { f.logger = l }
}

// NewFileOperations returns a copier that preserves structure and refuses to
// overwrite by default.
func NewFileOperations(opts ...Option) *FileOperations {
	f := &FileOperations{
		preserve:   true,
		bufferSize: DefaultBufferSize,
		guard:      pathguard.DefaultOptions(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PreserveStructure reports whether relative directories are kept.
func (f *FileOperations) PreserveStructure() bool {
	return f.preserve
}

// ExtractFiles copies docs into outputRoot in order. A failing file is
// recorded in the ledger and the batch continues. sink, if non-nil, is
// called before each file and once after the last. The returned error is
// non-nil only when outputRoot cannot be created or the run was cancelled;
// in the latter case the ledger so far is still returned.
func (f *FileOperations) ExtractFiles(docs []scanner.Document, outputRoot string, sink func(*Progress)) (*Progress, error) {
	var total int64
	for _, d := range docs {
		total += d.Size
	}
	p := NewProgress(len(docs), total)

	outputRoot, err := filepath.Abs(outputRoot)
	if err != nil {
		return p, rderrors.Wrap("resolve output directory", err)
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return p, rderrors.Wrap("create output directory", err)
	}

	for _, doc := range docs {
		if f.token.IsCancelled() {
			f.logger.Info("extraction cancelled", "processed", p.FilesProcessed, "total", p.TotalFiles)
			return p, rderrors.Cancelled(opCopy)
		}
		if sink != nil {
			p.CurrentFile = doc.Filename
			sink(p)
		}

		n, err := f.copyDocument(doc, outputRoot)
		if err != nil {
			msg := fmt.Sprintf("Failed to copy %s: %v", doc.SourcePath, err)
			f.logger.Warn("copy failed", "file", doc.DisplayPath(), "error", err)
			p.AddError(msg)
			continue
		}
		p.Update(doc.Filename, n)
	}

	if sink != nil {
		sink(p)
	}
	return p, nil
}

// Destination returns where doc is written under outputRoot.
func (f *FileOperations) Destination(doc scanner.Document, outputRoot string) string {
	if f.preserve {
		return filepath.Join(outputRoot, doc.RelativePath)
	}
	return filepath.Join(outputRoot, doc.Filename)
}

func (f *FileOperations) copyDocument(doc scanner.Document, outputRoot string) (int64, error) {
	rel := doc.Filename
	if f.preserve {
		rel = doc.RelativePath
	}
	if err := f.guard.ValidateComponents(rel); err != nil {
		return 0, err
	}
	dest := filepath.Join(outputRoot, rel)
	if err := f.guard.ValidateDestination(dest); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, rderrors.Wrap("create directory", err)
	}
	return f.SecureCopy(doc.SourcePath, dest)
}

// SecureCopy copies the regular file src to dest and returns the number of
// bytes written. dest must not exist unless force overwrite is enabled. The
// source modification time is carried over when the platform allows it.
func (f *FileOperations) SecureCopy(src, dest string) (int64, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return 0, rderrors.Wrap(opCopy, err)
	}
	if !info.Mode().IsRegular() {
		return 0, rderrors.Newf(rderrors.KindInvalidInput, opCopy, "source is not a regular file").WithTarget(src)
	}
	if dest, err = filepath.Abs(dest); err != nil {
		return 0, rderrors.Wrap(opCopy, err)
	}
	if err := f.guard.ValidateDestination(dest); err != nil {
		return 0, err
	}

	if _, err := os.Lstat(dest); err == nil {
		if !f.force {
			return 0, rderrors.New(rderrors.KindOutputExists, opCopy, nil).WithTarget(dest)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, rderrors.Wrap(opCopy, err)
	}

	n, err := f.stream(src, dest)
	if err != nil {
		return n, rderrors.Wrap(opCopy, err)
	}

	mtime := info.ModTime()
	if err := os.Chtimes(dest, mtime, mtime); err != nil {
		f.logger.Debug("could not preserve modification time", "file", dest, "error", err)
	}
	return n, nil
}

func (f *FileOperations) stream(src, dest string) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	r := bufio.NewReaderSize(in, f.bufferSize)
	w := bufio.NewWriterSize(out, f.bufferSize)
	// The wrappers hide WriteTo/ReadFrom so the copy goes through buf.
	buf := make([]byte, f.bufferSize)
	n, err = io.CopyBuffer(onlyWriter{w}, onlyReader{r}, buf)
	if err != nil {
		return n, err
	}
	return n, w.Flush()
}

type onlyReader struct{ io.Reader }

type onlyWriter struct{ io.Writer }
