package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/token"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

const (
	// DefaultTimeout bounds a clone when no timeout is configured.
	DefaultTimeout = 5 * time.Minute

	defaultWatchdogGrace = 2 * time.Second
	checkoutDirName      = "repo"
)

// CertificatePolicy controls TLS and host key verification.
type CertificatePolicy int

const (
	// CertStrict leaves verification to libgit2.
	CertStrict CertificatePolicy = iota
	// CertAcceptAll accepts every certificate and host key.
	CertAcceptAll
)

// CloneProgress reports transfer counters.
type CloneProgress struct {
	TotalObjects    uint
	ReceivedObjects uint
	IndexedObjects  uint
	LocalObjects    uint
	TotalDeltas     uint
	IndexedDeltas   uint
	ReceivedBytes   uint64
	Elapsed         time.Duration
}

// Percentage returns received objects as a share of the total.
func (p CloneProgress) Percentage() float64 {
	if p.TotalObjects == 0 {
		return 0
	}
	return float64(p.ReceivedObjects) / float64(p.TotalObjects) * 100
}

// ProgressFunc receives transfer progress and reports whether the clone
// should continue.
type ProgressFunc func(CloneProgress) bool

// cloneRepository is a variable so it can be mocked in tests
var cloneRepository = func(remote, path string, opts *git2go.CloneOptions) (*git2go.Repository, error) {
	return git2go.Clone(remote, path, opts)
}

var errAborted = errors.New("transfer aborted")

// abort reasons recorded by the progress callback and the coordinator
const (
	abortNone int32 = iota
	abortTimeout
	abortCancelled
	abortByCallback
)

// SafeCloner clones repositories into temporary directories.
type SafeCloner struct {
	timeout  time.Duration
	grace    time.Duration
	branch   string
	progress ProgressFunc
	token    *cancel.Token
	creds    token.Storage
	policy   CertificatePolicy
	logger   *slog.Logger
	sshHome  string
	rewrite  func(urlutils.RepositorySource) string
	tempRoot string
}

// Option configures a SafeCloner.
type Option func(*SafeCloner)

// WithTimeout sets the wall-clock limit for a clone.
func WithTimeout(d time.Duration) Option {
	return func(c *SafeCloner) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBranch checks out branch instead of the remote default.
func WithBranch(branch string) Option {
	return func(c *SafeCloner) { c.branch = branch }
}

// WithProgress registers a transfer progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *SafeCloner) { c.progress = fn }
}

// WithToken shares a cancellation token with the cloner.
func WithToken(t *cancel.Token) Option {
	return func(c *SafeCloner) {
		if t != nil {
			c.token = t
		}
	}
}

// WithCredentials sets where HTTPS tokens are looked up. Without it no
// token is offered.
func WithCredentials(s token.Storage) Option {
	return func(c *SafeCloner) { c.creds = s }
}

// WithCertificatePolicy sets the certificate verification policy.
func WithCertificatePolicy(p CertificatePolicy) Option {
	return func(c *SafeCloner) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *SafeCloner) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSSHHome overrides the directory searched for ~/.ssh keys.
func WithSSHHome(dir string) Option {
	return func(c *SafeCloner) { c.sshHome = dir }
}

// WithRemoteRewrite maps a validated source to the location handed to
// libgit2, in the manner of git's url.<base>.insteadOf. Validation always
// applies to the original URL.
func WithRemoteRewrite(fn func(urlutils.RepositorySource) string) Option {
	return func(c *SafeCloner) { c.rewrite = fn }
}

// WithTempRoot sets the parent directory for temporary checkouts.
func WithTempRoot(dir string) Option {
	return func(c *SafeCloner) { c.tempRoot = dir }
}

// NewSafeCloner creates a SafeCloner.
func NewSafeCloner(opts ...Option) *SafeCloner {
	c := &SafeCloner{
		timeout: DefaultTimeout,
		grace:   defaultWatchdogGrace,
		token:   cancel.New(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the configured clone timeout.
func (c *SafeCloner) Timeout() time.Duration { return c.timeout }

// Cancel requests that any running clone stop at its next checkpoint.
func (c *SafeCloner) Cancel() { c.token.Cancel() }

// IsRunning reports whether the cloner has not been cancelled.
func (c *SafeCloner) IsRunning() bool { return c.token.IsRunning() }

// CloneToTemp validates rawURL and clones it into a fresh temporary
// directory. The caller owns the returned outcome and must Close it.
func (c *SafeCloner) CloneToTemp(ctx context.Context, rawURL string) (*CloneOutcome, error) {
	src, err := urlutils.ParseRepositoryURL(rawURL)
	if err != nil {
		return nil, rderrors.New(rderrors.KindInvalidInput, "validate url", err).WithTarget(urlutils.Redact(rawURL))
	}
	if c.branch != "" {
		*src = src.WithBranch(c.branch)
	}
	return c.clone(ctx, *src)
}

type cloneResult struct {
	repo *git2go.Repository
	err  error
}

func (c *SafeCloner) clone(ctx context.Context, src urlutils.RepositorySource) (*CloneOutcome, error) {
	const op = "clone"
	target := urlutils.Redact(src.URL)

	if err := c.token.Check(op); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, rderrors.New(rderrors.KindCancelled, op, ctx.Err()).WithTarget(target)
	}

	tmp, err := NewTempDir(c.tempRoot)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(tmp.Path(), checkoutDirName)

	remote := src.URL
	if c.rewrite != nil {
		remote = c.rewrite(src)
	}

	var reason atomic.Int32
	start := time.Now()

	// check runs on the libgit2 thread at every progress tick
	check := func() error {
		if reason.Load() != abortNone {
			return errAborted
		}
		switch {
		case time.Since(start) > c.timeout:
			reason.CompareAndSwap(abortNone, abortTimeout)
		case c.token.IsCancelled(), ctx.Err() != nil:
			reason.CompareAndSwap(abortNone, abortCancelled)
		default:
			return nil
		}
		return errAborted
	}

	opts := &git2go.CloneOptions{
		CheckoutBranch: src.Branch,
		FetchOptions: git2go.FetchOptions{
			RemoteCallbacks: git2go.RemoteCallbacks{
				TransferProgressCallback: func(stats git2go.TransferProgress) error {
					if err := check(); err != nil {
						return err
					}
					if c.progress != nil && !c.progress(toProgress(stats, time.Since(start))) {
						reason.CompareAndSwap(abortNone, abortByCallback)
						return errAborted
					}
					return nil
				},
				CredentialsCallback: c.credentialsCallback(ctx, src),
			},
		},
	}
	if c.policy == CertAcceptAll {
		opts.FetchOptions.RemoteCallbacks.CertificateCheckCallback = func(*git2go.Certificate, bool, string) error {
			return nil
		}
	}

	c.logger.Info("cloning repository", "url", target, "branch", src.Branch, "timeout", c.timeout)

	results := make(chan cloneResult, 1)
	go func() {
		repo, err := cloneRepository(remote, dest, opts)
		results <- cloneResult{repo: repo, err: err}
	}()

	drain := func(r cloneResult) {
		if r.repo != nil {
			r.repo.Free()
		}
		_ = tmp.Remove()
	}
	// release waits up to the grace period for an aborted worker to stop
	// and removes the temp dir before returning. A worker still stuck in
	// libgit2 after that hands the dir to a drain goroutine.
	release := func() {
		wait := time.NewTimer(c.grace)
		defer wait.Stop()
		select {
		case r := <-results:
			drain(r)
		case <-wait.C:
			c.logger.Warn("clone worker did not stop; temporary checkout is removed when it exits", "path", tmp.Path())
			go func() { drain(<-results) }()
		}
	}

	watchdog := time.NewTimer(c.timeout + c.grace)
	defer watchdog.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			_ = tmp.Remove()
			return nil, c.failure(ctx, op, target, reason.Load(), r.err)
		}
		if r.repo == nil {
			_ = tmp.Remove()
			return nil, rderrors.Newf(rderrors.KindTransport, op, "clone returned no repository").WithTarget(target)
		}
		info := describe(r.repo, src)
		c.logger.Info("clone complete", "url", target, "branch", info.DefaultBranch,
			"commits", info.TotalCommits, "elapsed", time.Since(start).Round(time.Millisecond))
		return &CloneOutcome{
			Checkout: &Checkout{repo: r.repo, path: dest},
			TempDir:  tmp,
			Info:     info,
		}, nil

	case <-watchdog.C:
		reason.CompareAndSwap(abortNone, abortTimeout)
		release()
		c.logger.Warn("clone stalled past timeout", "url", target, "timeout", c.timeout)
		return nil, rderrors.Timeout(op, target, c.timeout)

	case <-c.token.Done():
		reason.CompareAndSwap(abortNone, abortCancelled)
		release()
		return nil, rderrors.Cancelled(op).WithTarget(target)

	case <-ctx.Done():
		reason.CompareAndSwap(abortNone, abortCancelled)
		release()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, rderrors.Timeout(op, target, c.timeout)
		}
		return nil, rderrors.New(rderrors.KindCancelled, op, ctx.Err()).WithTarget(target)
	}
}

func (c *SafeCloner) failure(ctx context.Context, op, target string, reason int32, err error) error {
	switch reason {
	case abortTimeout:
		return rderrors.Timeout(op, target, c.timeout)
	case abortCancelled:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return rderrors.Timeout(op, target, c.timeout)
		}
		return rderrors.Cancelled(op).WithTarget(target)
	case abortByCallback:
		return rderrors.New(rderrors.KindCancelled, op, errors.New("stopped by progress callback")).WithTarget(target)
	}
	return classifyError(op, target, err)
}

func toProgress(stats git2go.TransferProgress, elapsed time.Duration) CloneProgress {
	return CloneProgress{
		TotalObjects:    stats.TotalObjects,
		ReceivedObjects: stats.ReceivedObjects,
		IndexedObjects:  stats.IndexedObjects,
		LocalObjects:    stats.LocalObjects,
		TotalDeltas:     stats.TotalDeltas,
		IndexedDeltas:   stats.IndexedDeltas,
		ReceivedBytes:   uint64(stats.ReceivedBytes),
		Elapsed:         elapsed,
	}
}

// TempDir is a temporary directory removed exactly once.
type TempDir struct {
	path    string
	removed atomic.Bool
}

// NewTempDir creates a directory named repodocs-* under root, or under the
// system temp directory when root is empty.
func NewTempDir(root string) (*TempDir, error) {
	path, err := os.MkdirTemp(root, "repodocs-*")
	if err != nil {
		return nil, rderrors.New(rderrors.KindIO, "create temp dir", err)
	}
	return &TempDir{path: path}, nil
}

// Path returns the directory path.
func (t *TempDir) Path() string { return t.path }

// Remove deletes the directory tree. Later calls do nothing.
func (t *TempDir) Remove() error {
	if t == nil || !t.removed.CompareAndSwap(false, true) {
		return nil
	}
	if err := os.RemoveAll(t.path); err != nil {
		return rderrors.New(rderrors.KindIO, "remove temp dir", err).WithTarget(t.path)
	}
	return nil
}

// Checkout is the working copy produced by a clone.
type Checkout struct {
	repo *git2go.Repository
	path string
}

// Path returns the working directory of the checkout.
func (c *Checkout) Path() string { return c.path }

// Free releases the libgit2 handle.
func (c *Checkout) Free() {
	if c != nil && c.repo != nil {
		c.repo.Free()
		c.repo = nil
	}
}

// CloneOutcome is a successful clone. Documents found under Checkout.Path
// are only valid until Close.
type CloneOutcome struct {
	Checkout *Checkout
	TempDir  *TempDir
	Info     RepositoryInfo
}

// Close frees the checkout and deletes the temporary directory.
func (o *CloneOutcome) Close() error {
	if o == nil {
		return nil
	}
	o.Checkout.Free()
	return o.TempDir.Remove()
}

func (o *CloneOutcome) String() string {
	return fmt.Sprintf("%s/%s@%s", o.Info.Owner, o.Info.Name, o.Info.DefaultBranch)
}
