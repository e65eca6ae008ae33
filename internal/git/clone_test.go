package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/git/gittest"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

const testURL = "https://github.com/acme/widgets.git"

// mockClone swaps the libgit2 entry point for the duration of a test.
func mockClone(t *testing.T, fn func(remote, path string, opts *git2go.CloneOptions) (*git2go.Repository, error)) {
	t.Helper()
	original := cloneRepository
	cloneRepository = fn
	t.Cleanup(func() { cloneRepository = original })
}

// tickingClone reports progress every interval until a callback aborts.
func tickingClone(interval time.Duration, onTick func(n int)) func(string, string, *git2go.CloneOptions) (*git2go.Repository, error) {
	return func(_ string, _ string, opts *git2go.CloneOptions) (*git2go.Repository, error) {
		cb := opts.FetchOptions.RemoteCallbacks.TransferProgressCallback
		for n := 1; ; n++ {
			if onTick != nil {
				onTick(n)
			}
			if err := cb(git2go.TransferProgress{TotalObjects: 1000, ReceivedObjects: uint(n)}); err != nil {
				return nil, err
			}
			time.Sleep(interval)
		}
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary checkout left behind")
}

func TestCloneToTemp_InvalidURL(t *testing.T) {
	mockClone(t, func(string, string, *git2go.CloneOptions) (*git2go.Repository, error) {
		t.Fatal("clone attempted for an invalid URL")
		return nil, nil
	})

	for _, raw := range []string{
		"",
		"http://github.com/a/b",
		"https://gitlab.com/a/b",
		"https://github.com/a",
		"file:///etc",
	} {
		_, err := NewSafeCloner().CloneToTemp(context.Background(), raw)
		assert.True(t, rderrors.IsKind(err, rderrors.KindInvalidInput), "%q: got %v", raw, err)
	}
}

func TestCloneToTemp_TimeoutDuringTransfer(t *testing.T) {
	tmpRoot := t.TempDir()
	mockClone(t, tickingClone(5*time.Millisecond, nil))

	cloner := NewSafeCloner(WithTimeout(50*time.Millisecond), WithTempRoot(tmpRoot))

	start := time.Now()
	_, err := cloner.CloneToTemp(context.Background(), testURL)
	require.Error(t, err)
	assert.True(t, rderrors.IsKind(err, rderrors.KindTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var e *rderrors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 50*time.Millisecond, e.Timeout)

	assertEmptyDir(t, tmpRoot)
}

func TestCloneToTemp_WatchdogWhenTransferStalls(t *testing.T) {
	tmpRoot := t.TempDir()
	release := make(chan struct{})
	mockClone(t, func(string, string, *git2go.CloneOptions) (*git2go.Repository, error) {
		<-release
		return nil, errors.New("connection reset")
	})

	cloner := NewSafeCloner(WithTimeout(20*time.Millisecond), WithTempRoot(tmpRoot))
	cloner.grace = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := cloner.CloneToTemp(context.Background(), testURL)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, rderrors.IsKind(err, rderrors.KindTimeout), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("clone blocked past its timeout")
	}

	close(release)
	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(tmpRoot)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond, "abandoned temp dir not removed")
}

func TestCloneToTemp_TimeoutRemovesDirOnceWorkerStops(t *testing.T) {
	tmpRoot := t.TempDir()
	release := make(chan struct{})
	mockClone(t, func(string, string, *git2go.CloneOptions) (*git2go.Repository, error) {
		<-release
		return nil, errors.New("connection reset")
	})

	cloner := NewSafeCloner(WithTimeout(20*time.Millisecond), WithTempRoot(tmpRoot))
	cloner.grace = 200 * time.Millisecond

	// The watchdog fires at 220ms; the worker returns at 300ms, inside the
	// grace period that follows.
	time.AfterFunc(300*time.Millisecond, func() { close(release) })

	_, err := cloner.CloneToTemp(context.Background(), testURL)
	assert.True(t, rderrors.IsKind(err, rderrors.KindTimeout), "got %v", err)
	assertEmptyDir(t, tmpRoot)
}

func TestCloneToTemp_Cancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		var calls atomic.Int32
		mockClone(t, func(string, string, *git2go.CloneOptions) (*git2go.Repository, error) {
			calls.Add(1)
			return nil, errors.New("unreachable")
		})

		tok := cancel.New()
		tok.Cancel()
		_, err := NewSafeCloner(WithToken(tok)).CloneToTemp(context.Background(), testURL)
		assert.True(t, rderrors.IsCancelled(err), "got %v", err)
		assert.Zero(t, calls.Load())
	})

	t.Run("during transfer", func(t *testing.T) {
		tmpRoot := t.TempDir()
		tok := cancel.New()
		mockClone(t, tickingClone(time.Millisecond, func(n int) {
			if n == 3 {
				tok.Cancel()
			}
		}))

		cloner := NewSafeCloner(WithToken(tok), WithTempRoot(tmpRoot))
		_, err := cloner.CloneToTemp(context.Background(), testURL)
		assert.True(t, rderrors.IsCancelled(err), "got %v", err)
		assert.False(t, cloner.IsRunning())
		assertEmptyDir(t, tmpRoot)
	})

	t.Run("context cancelled during transfer", func(t *testing.T) {
		tmpRoot := t.TempDir()
		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		mockClone(t, tickingClone(time.Millisecond, func(n int) {
			if n == 3 {
				stop()
			}
		}))

		_, err := NewSafeCloner(WithTempRoot(tmpRoot)).CloneToTemp(ctx, testURL)
		assert.True(t, rderrors.IsCancelled(err), "got %v", err)
		assertEmptyDir(t, tmpRoot)
	})

	t.Run("via Cancel", func(t *testing.T) {
		cloner := NewSafeCloner(WithTempRoot(t.TempDir()))
		mockClone(t, tickingClone(time.Millisecond, func(n int) {
			if n == 2 {
				cloner.Cancel()
			}
		}))

		_, err := cloner.CloneToTemp(context.Background(), testURL)
		assert.True(t, rderrors.IsCancelled(err), "got %v", err)
	})

	t.Run("progress callback stops", func(t *testing.T) {
		mockClone(t, tickingClone(time.Millisecond, nil))

		var seen []CloneProgress
		cloner := NewSafeCloner(WithTempRoot(t.TempDir()), WithProgress(func(p CloneProgress) bool {
			seen = append(seen, p)
			return len(seen) < 4
		}))

		_, err := cloner.CloneToTemp(context.Background(), testURL)
		assert.True(t, rderrors.IsCancelled(err), "got %v", err)
		require.Len(t, seen, 4)
		assert.EqualValues(t, 4, seen[3].ReceivedObjects)
		assert.InDelta(t, 0.4, seen[3].Percentage(), 0.001)
	})
}

func TestCloneToTemp_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want rderrors.Kind
	}{
		{"network class", &git2go.GitError{Message: "failed to resolve address", Class: git2go.ErrorClassNet, Code: git2go.ErrorCodeGeneric}, rderrors.KindNetwork},
		{"auth code", &git2go.GitError{Message: "too many redirects or authentication replays", Code: git2go.ErrorCodeAuth}, rderrors.KindAuthentication},
		{"http 401", errors.New("unexpected http status code: 401"), rderrors.KindAuthentication},
		{"http 404", errors.New("unexpected http status code: 404"), rderrors.KindNotFound},
		{"not found code", &git2go.GitError{Message: "remote missing", Code: git2go.ErrorCodeNotFound}, rderrors.KindNotFound},
		{"other", &git2go.GitError{Message: "object is corrupted", Class: git2go.ErrorClassOdb}, rderrors.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpRoot := t.TempDir()
			mockClone(t, func(string, string, *git2go.CloneOptions) (*git2go.Repository, error) {
				return nil, tt.err
			})

			_, err := NewSafeCloner(WithTempRoot(tmpRoot)).CloneToTemp(context.Background(), testURL)
			assert.Equal(t, tt.want, rderrors.KindOf(err), "got %v", err)
			assertEmptyDir(t, tmpRoot)
		})
	}
}

func TestCloneToTemp_LocalFixture(t *testing.T) {
	fixture := gittest.WithFiles(t, map[string]string{
		"README.md":     "# widgets",
		"docs/guide.md": "guide",
	})
	fixture.Write(map[string]string{"CHANGELOG": "v1"})
	fixture.Commit("second commit")

	tmpRoot := t.TempDir()
	var rewritten urlutils.RepositorySource
	cloner := NewSafeCloner(
		WithTempRoot(tmpRoot),
		WithCertificatePolicy(CertAcceptAll),
		WithRemoteRewrite(func(src urlutils.RepositorySource) string {
			rewritten = src
			return fixture.Path
		}),
	)

	outcome, err := cloner.CloneToTemp(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, "widgets", rewritten.Name)
	assert.Equal(t, RepositoryInfo{
		Owner:         "acme",
		Name:          "widgets",
		DefaultBranch: fixture.Branch(),
		TotalCommits:  2,
		IsEmpty:       false,
		URL:           testURL,
	}, outcome.Info)
	assert.Equal(t, "acme/widgets", outcome.Info.FullName())

	for _, name := range []string{"README.md", "docs/guide.md", "CHANGELOG"} {
		assert.FileExists(t, filepath.Join(outcome.Checkout.Path(), filepath.FromSlash(name)))
	}

	tempPath := outcome.TempDir.Path()
	require.NoError(t, outcome.Close())
	assert.NoDirExists(t, tempPath)
	require.NoError(t, outcome.Close(), "Close is idempotent")
}

func TestDescribe_EmptyRepository(t *testing.T) {
	empty := gittest.New(t)
	src, err := urlutils.ParseRepositoryURL("git@github.com:acme/empty.git")
	require.NoError(t, err)

	info := describe(empty.Native, *src)
	assert.True(t, info.IsEmpty)
	assert.Zero(t, info.TotalCommits)
	assert.Equal(t, "main", info.DefaultBranch)
	assert.Equal(t, "empty", info.Name)
}

func TestTempDir_RemoveOnce(t *testing.T) {
	tmp, err := NewTempDir(t.TempDir())
	require.NoError(t, err)
	assert.DirExists(t, tmp.Path())
	assert.Contains(t, filepath.Base(tmp.Path()), "repodocs-")

	require.NoError(t, tmp.Remove())
	assert.NoDirExists(t, tmp.Path())
	require.NoError(t, tmp.Remove())
}
