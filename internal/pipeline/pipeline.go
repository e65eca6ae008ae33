// Package pipeline runs an extraction end to end: validate, clone, scan,
// prepare output, copy, report and index.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	"github.com/NicabarNimble/go-repodocs/internal/config"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/extract"
	"github.com/NicabarNimble/go-repodocs/internal/filter"
	"github.com/NicabarNimble/go-repodocs/internal/git"
	"github.com/NicabarNimble/go-repodocs/internal/output"
	"github.com/NicabarNimble/go-repodocs/internal/progress"
	"github.com/NicabarNimble/go-repodocs/internal/report"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
	"github.com/NicabarNimble/go-repodocs/internal/token"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

// Workspace is a cloned working tree owned by the pipeline for one run.
type Workspace struct {
	Root string
	Info git.RepositoryInfo

	close func() error
}

// NewWorkspace wraps root. closeFn, if non-nil, runs once on Close.
func NewWorkspace(root string, info git.RepositoryInfo, closeFn func() error) *Workspace {
	return &Workspace{Root: root, Info: info, close: closeFn}
}

// Close releases the workspace.
func (w *Workspace) Close() error {
	if w == nil || w.close == nil {
		return nil
	}
	fn := w.close
	w.close = nil
	return fn()
}

// CloneFunc fetches rawURL into a temporary workspace.
type CloneFunc func(ctx context.Context, rawURL string) (*Workspace, error)

// Result is everything a run produced. On failure after the copy stage has
// started it is returned alongside the error.
type Result struct {
	Source    urlutils.RepositorySource
	Report    *report.Report
	Progress  *extract.Progress
	OutputDir string
	IndexPath string
	HTMLPath  string
	Stages    []progress.StageRecord
}

// Extractor runs extractions with one configuration.
type Extractor struct {
	cfg          *config.Config
	token        *cancel.Token
	logger       *slog.Logger
	cloneTracker progress.Tracker
	copyTracker  progress.Tracker
	clone        CloneFunc
	cloneOpts    []git.Option
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithToken shares the cancellation token checked between stages.
func WithToken(t *cancel.Token) Option {
	return func(e *Extractor) {
		if t != nil {
			e.token = t
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCloneTracker receives clone transfer progress in objects.
func WithCloneTracker(t progress.Tracker) Option {
	return func(e *Extractor) { e.cloneTracker = t }
}

// WithCopyTracker receives copy progress in bytes.
func WithCopyTracker(t progress.Tracker) Option {
	return func(e *Extractor) { e.copyTracker = t }
}

// WithCloneFunc replaces the libgit2 clone stage.
func WithCloneFunc(fn CloneFunc) Option {
	return func(e *Extractor) { e.clone = fn }
}

// WithCloneOptions passes extra options to the SafeCloner.
func WithCloneOptions(opts ...git.Option) Option {
	return func(e *Extractor) { e.cloneOpts = append(e.cloneOpts, opts...) }
}

// New creates an Extractor for cfg.
func New(cfg *config.Config, opts ...Option) *Extractor {
	e := &Extractor{
		cfg:          cfg,
		token:        cancel.New(),
		logger:       slog.New(slog.DiscardHandler),
		cloneTracker: progress.Nop{},
		copyTracker:  progress.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clone == nil {
		e.clone = e.cloneWithLibgit2
	}
	return e
}

// Token returns the cancellation token the extractor observes.
func (e *Extractor) Token() *cancel.Token {
	return e.token
}

// Run extracts documentation from rawURL. The temporary clone is always
// removed before Run returns. When the run is cancelled after the output
// directory was prepared, the partial output is left in place and the
// returned Result describes it.
func (e *Extractor) Run(ctx context.Context, rawURL string) (res *Result, err error) {
	stages := progress.NewStageTracker(e.logger)
	res = &Result{}
	defer func() { res.Stages = stages.Records() }()

	stages.Begin(progress.StageValidate)
	src, err := urlutils.ParseRepositoryURL(rawURL)
	if err != nil {
		err = rderrors.New(rderrors.KindInvalidInput, "validate url", err).WithTarget(urlutils.Redact(rawURL))
		stages.Finish(progress.StageValidate, err)
		return res, err
	}
	if e.cfg.Git.Branch != "" {
		*src = src.WithBranch(e.cfg.Git.Branch)
	}
	res.Source = *src
	stages.Finish(progress.StageValidate, nil)

	spec, err := e.cfg.FilterSpec()
	if err != nil {
		return res, err
	}
	ff, err := filter.New(spec)
	if err != nil {
		return res, err
	}

	if err := e.token.Check("clone"); err != nil {
		return res, err
	}

	stages.Begin(progress.StageClone)
	e.cloneTracker.Start("Cloning " + src.FullName())
	ws, err := e.clone(ctx, rawURL)
	stages.Finish(progress.StageClone, err)
	if err != nil {
		e.cloneTracker.Error(err)
		return res, err
	}
	e.cloneTracker.Complete()
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			e.logger.Warn("failed to remove temporary clone", "error", cerr)
		}
	}()
	e.logger.Info("repository cloned", "repo", ws.Info.FullName(), "branch", ws.Info.DefaultBranch, "commits", ws.Info.TotalCommits)

	if err := e.token.Check("scan"); err != nil {
		return res, err
	}

	stages.Begin(progress.StageScan)
	sc := scanner.New(ff, scanner.WithToken(e.token), scanner.WithLogger(e.logger))
	scanned, err := sc.Scan(ctx, ws.Root)
	stages.Finish(progress.StageScan, err)
	if err != nil {
		return res, err
	}
	docs := scanned.Documents
	for _, msg := range scanned.Errors {
		e.logger.Warn("scan problem", "detail", msg)
	}
	e.logger.Info("documents selected", "count", len(docs), "visited", scanned.Visited)

	if err := e.token.Check("prepare output"); err != nil {
		return res, err
	}

	stages.Begin(progress.StagePrepare)
	mgr, err := e.prepareOutput(ws.Info.Name)
	stages.Finish(progress.StagePrepare, err)
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := mgr.Release(); rerr != nil {
			e.logger.Warn("failed to release output lock", "error", rerr)
		}
	}()
	res.OutputDir = mgr.Dir()

	if err := e.token.Check("copy"); err != nil {
		return res, err
	}

	stages.Begin(progress.StageCopy)
	ops := extract.NewFileOperations(
		extract.WithPreserveStructure(e.cfg.Output.PreserveStructure),
		extract.WithForceOverwrite(e.cfg.Output.ForceOverwrite),
		extract.WithCrossPlatform(e.cfg.Output.CrossPlatform),
		extract.WithToken(e.token),
		extract.WithLogger(e.logger),
	)
	e.copyTracker.Start(fmt.Sprintf("Copying %d files", len(docs)))
	ledger, err := ops.ExtractFiles(docs, mgr.Dir(), func(p *extract.Progress) {
		e.copyTracker.Update(p.BytesProcessed, p.TotalBytes)
	})
	res.Progress = ledger
	stages.Finish(progress.StageCopy, err)
	if err != nil {
		e.copyTracker.Error(err)
		return res, err
	}
	e.copyTracker.Complete()

	if err := e.token.Check("report"); err != nil {
		return res, err
	}

	stages.Begin(progress.StageReport)
	res.Report = report.Build(ws.Info, docs, ledger, e.snapshot(spec), scanned.Errors)
	if e.cfg.Output.GenerateReport {
		err = mgr.WriteReport(res.Report)
		stages.Finish(progress.StageReport, err)
		if err != nil {
			return res, err
		}
	} else {
		stages.Finish(progress.StageReport, nil)
	}

	if !e.cfg.Output.CreateIndex {
		stages.Skip(progress.StageIndex)
		return res, nil
	}
	stages.Begin(progress.StageIndex)
	res.IndexPath, err = ops.CreateIndexFile(docs, mgr.Dir())
	if err == nil && e.cfg.Output.HTMLIndex {
		res.HTMLPath, err = ops.RenderIndexHTML(res.IndexPath)
	}
	stages.Finish(progress.StageIndex, err)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (e *Extractor) prepareOutput(repoName string) (*output.Manager, error) {
	mgr, err := output.New(e.cfg.Output.BaseDirectory, repoName,
		output.WithForceOverwrite(e.cfg.Output.ForceOverwrite),
		output.WithCustomName(e.cfg.Output.Name),
		output.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := mgr.Initialize(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (e *Extractor) snapshot(spec filter.Spec) report.ConfigSnapshot {
	return report.ConfigSnapshot{
		Extensions:        spec.Extensions,
		MaxFileSize:       spec.MaxFileSize,
		ExcludeDirs:       spec.ExcludeDirs,
		PreserveStructure: e.cfg.Output.PreserveStructure,
	}
}

func (e *Extractor) cloneWithLibgit2(ctx context.Context, rawURL string) (*Workspace, error) {
	policy := git.CertStrict
	if e.cfg.Git.InsecureSkipTLSVerify {
		policy = git.CertAcceptAll
	}

	opts := []git.Option{
		git.WithTimeout(e.cfg.Git.Timeout),
		git.WithBranch(e.cfg.Git.Branch),
		git.WithToken(e.token),
		git.WithLogger(e.logger),
		git.WithCertificatePolicy(policy),
		git.WithCredentials(token.NewEnvStorage()),
		git.WithProgress(func(p git.CloneProgress) bool {
			e.cloneTracker.Update(int64(p.ReceivedObjects), int64(p.TotalObjects))
			return e.token.IsRunning()
		}),
	}
	cloner := git.NewSafeCloner(append(opts, e.cloneOpts...)...)

	outcome, err := cloner.CloneToTemp(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return NewWorkspace(outcome.Checkout.Path(), outcome.Info, outcome.Close), nil
}

// RemoveOutput deletes an output tree left by a cancelled or failed run.
func RemoveOutput(dir string) error {
	return output.RemoveOutput(dir)
}
