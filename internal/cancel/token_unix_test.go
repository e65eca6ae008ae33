//go:build unix

package cancel

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyOnSignal(t *testing.T) {
	tok := New()
	got := make(chan string, 2)

	stop := NotifyOnSignal(tok,
		func(os.Signal) { got <- "first" },
		func(os.Signal) { got <- "repeat" },
		syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case v := <-got:
		assert.Equal(t, "first", v)
	case <-time.After(2 * time.Second):
		t.Fatal("signal not relayed")
	}
	assert.True(t, tok.IsCancelled())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case v := <-got:
		assert.Equal(t, "repeat", v)
	case <-time.After(2 * time.Second):
		t.Fatal("second signal not relayed")
	}
}
