package tests

import (
	"os"
	"sync"
	"testing"

	"github.com/NicabarNimble/go-repodocs/internal/config"
	"github.com/NicabarNimble/go-repodocs/internal/git"
	"github.com/NicabarNimble/go-repodocs/internal/git/gittest"
	"github.com/NicabarNimble/go-repodocs/internal/pipeline"
	"github.com/NicabarNimble/go-repodocs/internal/progress"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

const fixtureURL = "https://github.com/acme/widgets"

// TestTracker records the operations and updates it receives.
type TestTracker struct {
	progress.DefaultTracker

	mu         sync.Mutex
	operations []string
	updates    int
	completed  bool
	err        error
}

func (t *TestTracker) Start(operation string) *progress.Operation {
	t.mu.Lock()
	t.operations = append(t.operations, operation)
	t.mu.Unlock()
	return t.DefaultTracker.Start(operation)
}

func (t *TestTracker) Update(current, total int64) {
	t.mu.Lock()
	t.updates++
	t.mu.Unlock()
	t.DefaultTracker.Update(current, total)
}

func (t *TestTracker) Complete() {
	t.mu.Lock()
	t.completed = true
	t.mu.Unlock()
	t.DefaultTracker.Complete()
}

func (t *TestTracker) Error(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.DefaultTracker.Error(err)
}

// Operations returns the started operation names.
func (t *TestTracker) Operations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.operations...)
}

// SetupFixtureRepo creates a repository laid out like a small project with
// documentation, sources and vendored dependencies.
func SetupFixtureRepo(t *testing.T) *gittest.Repo {
	t.Helper()
	repo := gittest.WithFiles(t, map[string]string{
		"README.md":               "# Widgets\n\nA widget library.\n",
		"docs/guide.md":           "# Guide\n\nStart here.\n",
		"docs/api/reference.rst":  "Reference\n=========\n",
		"docs/My Notes (old).txt": "notes\n",
		"src/main.go":             "package main\n",
		"node_modules/pkg/doc.md": "vendored\n",
		".github/CONTRIBUTING.md": "hidden\n",
		"dist/bundle.min.md":      "built\n",
	})
	repo.Write(map[string]string{"CHANGELOG": "v1.0.0\n"})
	repo.Commit("add changelog")
	return repo
}

// TestConfig returns the default configuration writing below a temp dir.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.BaseDirectory = t.TempDir()
	return cfg
}

// LocalCloneOptions points clones of any accepted URL at fixture and keeps
// temporary checkouts under tmpRoot.
func LocalCloneOptions(fixture *gittest.Repo, tmpRoot string) pipeline.Option {
	return pipeline.WithCloneOptions(
		git.WithTempRoot(tmpRoot),
		git.WithSSHHome(tmpRoot),
		git.WithRemoteRewrite(func(urlutils.RepositorySource) string {
			return fixture.Path
		}),
	)
}

// AssertEmptyDir fails when dir has any entries left.
func AssertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("temporary checkout left behind in %s: %d entries", dir, len(entries))
	}
}
