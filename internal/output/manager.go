// Package output owns the lifecycle of an extraction's output directory.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/filelock"
	"github.com/NicabarNimble/go-repodocs/internal/pathguard"
	"github.com/NicabarNimble/go-repodocs/internal/report"
)

const (
	// MetadataDirName holds the machine-readable reports.
	MetadataDirName = ".repodocs"
	// JSONReportName is the JSON report file under MetadataDirName.
	JSONReportName = "extraction_report.json"
	// TextReportName is the text report file under MetadataDirName.
	TextReportName = "extraction_report.txt"
	// SummaryName is the markdown summary in the output root.
	SummaryName = "EXTRACTION_SUMMARY.md"

	dirPrefix     = "docs_"
	writeTestName = ".repodocs_write_test"
)

// Manager prepares and finalises one output directory.
type Manager struct {
	baseDir string
	dir     string
	force   bool
	lock    *filelock.Lock
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithForceOverwrite replaces an existing output directory on Initialize.
func WithForceOverwrite(force bool) Option {
	return func(m *Manager) { m.force = force }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCustomName uses name, sanitised, instead of docs_<repo>.
func WithCustomName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.dir = filepath.Join(m.baseDir, pathguard.SanitizeRepoName(name))
		}
	}
}

// New returns a Manager for baseDir/docs_<repoName>. baseDir may be
// relative to the working directory; it is created if missing and must be
// writable.
func New(baseDir, repoName string, opts ...Option) (*Manager, error) {
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, rderrors.Wrap("resolve output directory", err)
	}
	m := &Manager{
		baseDir: baseDir,
		dir:     filepath.Join(baseDir, dirPrefix+pathguard.SanitizeRepoName(repoName)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := pathguard.ValidateDestination(m.dir); err != nil {
		return nil, err
	}
	if err := checkWritable(baseDir); err != nil {
		return nil, err
	}
	m.lock = filelock.New(filepath.Join(baseDir, "."+filepath.Base(m.dir)+".lock"))
	return m, nil
}

// Dir returns the output directory.
func (m *Manager) Dir() string {
	return m.dir
}

// MetadataDir returns the directory holding the reports.
func (m *Manager) MetadataDir() string {
	return filepath.Join(m.dir, MetadataDirName)
}

// Initialize locks the output directory and creates it along with the
// metadata directory. An existing directory is an error unless force
// overwrite is set, in which case it is removed first. Call Release when
// done.
func (m *Manager) Initialize() error {
	if err := m.lock.TryLock(); err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return rderrors.New(rderrors.KindOutputExists, "lock output", err).WithTarget(m.dir)
		}
		return rderrors.Wrap("lock output", err)
	}

	if err := m.prepare(); err != nil {
		_ = m.lock.Unlock()
		return err
	}
	return nil
}

func (m *Manager) prepare() error {
	if _, err := os.Lstat(m.dir); err == nil {
		if !m.force {
			return rderrors.New(rderrors.KindOutputExists, "prepare output", nil).WithTarget(m.dir)
		}
		if err := os.RemoveAll(m.dir); err != nil {
			return rderrors.Wrap("remove output", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return rderrors.Wrap("prepare output", err)
	}

	if err := os.MkdirAll(m.MetadataDir(), 0o755); err != nil {
		return rderrors.Wrap("create output", err)
	}
	return nil
}

// Release drops the directory lock.
func (m *Manager) Release() error {
	return m.lock.Unlock()
}

// RemoveOutput deletes the output directory. A missing directory is not an
// error.
func (m *Manager) RemoveOutput() error {
	return RemoveOutput(m.dir)
}

// RemoveOutput deletes dir and everything under it.
func RemoveOutput(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return rderrors.Wrap("remove output", err)
	}
	return nil
}

// WriteReport persists r as the JSON and text reports and the markdown
// summary. A copied document named like the summary is replaced and logged.
func (m *Manager) WriteReport(r *report.Report) error {
	data, err := report.EncodeJSON(r)
	if err != nil {
		return rderrors.New(rderrors.KindIO, "write report", err)
	}
	if err := filelock.AtomicWrite(filepath.Join(m.MetadataDir(), JSONReportName), data); err != nil {
		return rderrors.Wrap("write report", err)
	}

	var text bytes.Buffer
	if err := report.WriteText(&text, r); err != nil {
		return rderrors.Wrap("write report", err)
	}
	if err := filelock.AtomicWrite(filepath.Join(m.MetadataDir(), TextReportName), text.Bytes()); err != nil {
		return rderrors.Wrap("write report", err)
	}

	var summary bytes.Buffer
	if err := report.WriteSummaryMarkdown(&summary, r); err != nil {
		return rderrors.Wrap("write summary", err)
	}
	dest := filepath.Join(m.dir, SummaryName)
	if _, err := os.Lstat(dest); err == nil {
		m.logger.Warn("summary replaces a copied document", "file", dest)
	}
	if err := filelock.AtomicWrite(dest, summary.Bytes()); err != nil {
		return rderrors.Wrap("write summary", err)
	}
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rderrors.New(rderrors.KindPermissionDenied, "create base directory", err).WithTarget(dir)
	}
	marker := filepath.Join(dir, writeTestName)
	f, err := os.Create(marker)
	if err != nil {
		return rderrors.New(rderrors.KindPermissionDenied, "check base directory",
			fmt.Errorf("no write permission: %w", err)).WithTarget(dir)
	}
	f.Close()
	_ = os.Remove(marker)
	return nil
}
