// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"
)

// Repo is a non-bare repository in a test temp dir.
type Repo struct {
	t      testing.TB
	Path   string
	Native *git2go.Repository
}

// New initializes an empty repository. It is freed when the test ends.
func New(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	return &Repo{t: t, Path: dir, Native: repo}
}

// WithFiles initializes a repository and commits files in one commit.
func WithFiles(t testing.TB, files map[string]string) *Repo {
	t.Helper()
	r := New(t)
	r.Write(files)
	r.Commit("initial commit")
	return r
}

// Write creates or overwrites files relative to the working directory.
func (r *Repo) Write(files map[string]string) {
	r.t.Helper()
	for name, content := range files {
		path := filepath.Join(r.Path, filepath.FromSlash(name))
		require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// Commit stages all files and creates a commit on HEAD.
func (r *Repo) Commit(message string) {
	r.t.Helper()

	index, err := r.Native.Index()
	require.NoError(r.t, err)
	defer index.Free()

	require.NoError(r.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(r.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	tree, err := r.Native.LookupTree(treeID)
	require.NoError(r.t, err)
	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Now(),
	}

	var parents []*git2go.Commit
	if head, err := r.Native.Head(); err == nil {
		parent, lookupErr := r.Native.LookupCommit(head.Target())
		require.NoError(r.t, lookupErr)
		parents = append(parents, parent)
		head.Free()
	}

	_, err = r.Native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(r.t, err)

	for _, p := range parents {
		p.Free()
	}
}

// Branch returns the short name of HEAD.
func (r *Repo) Branch() string {
	r.t.Helper()
	head, err := r.Native.Head()
	require.NoError(r.t, err)
	defer head.Free()
	return head.Shorthand()
}
