package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlockKeepsLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".docs_repo.lock")
	l := New(path)

	require.NoError(t, l.TryLock())
	assert.True(t, l.flock.Locked())
	assert.FileExists(t, path)

	require.NoError(t, l.Unlock())
	assert.False(t, l.flock.Locked())
	assert.FileExists(t, path, "the lock file outlives the lock")

	// second unlock is a no-op
	require.NoError(t, l.Unlock())

	// a later holder reuses the same file
	next := New(path)
	require.NoError(t, next.TryLock())
	require.NoError(t, next.Unlock())
}

func TestTryLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "held.lock")
	first := New(path)
	require.NoError(t, first.TryLock())

	second := New(path)
	err := second.TryLock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))
	assert.False(t, second.flock.Locked())

	// the holder's unlock frees the same file for the waiter
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.json")

	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestAtomicWriteConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, AtomicWrite(path, []byte{byte('a' + n)}))
		}(i)
	}
	wg.Wait()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
