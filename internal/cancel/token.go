// Package cancel provides the run-wide cancellation flag shared by the
// clone, scan and copy stages.
package cancel

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
)

// Token is a cancellation flag that flips from running to stopped once per
// run. Stages read it at their checkpoints and must not cache the value.
// A nil *Token is never cancelled.
type Token struct {
	stopped atomic.Bool

	mu   sync.Mutex
	done chan struct{}
}

// New returns a running token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel stops the token. It reports whether this call performed the
// transition; later calls are no-ops.
func (t *Token) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	if t.done == nil {
		t.done = make(chan struct{})
	}
	close(t.done)
	return true
}

// IsCancelled reports whether Cancel has been called since the last Reset.
func (t *Token) IsCancelled() bool {
	return t != nil && t.stopped.Load()
}

// IsRunning is the inverse of IsCancelled.
func (t *Token) IsRunning() bool {
	return !t.IsCancelled()
}

// Done returns a channel closed when the token is cancelled. The channel is
// replaced by Reset, so callers fetch it per wait.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		t.done = make(chan struct{})
	}
	return t.done
}

// Reset re-arms a cancelled token for the next run.
func (t *Token) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped.Load() {
		t.done = make(chan struct{})
		t.stopped.Store(false)
	}
}

// Check returns a cancellation error for op when the token is stopped.
func (t *Token) Check(op string) error {
	if t.IsCancelled() {
		return rderrors.Cancelled(op)
	}
	return nil
}

// NotifyOnSignal cancels t when one of sigs arrives. onFirst runs after the
// first signal and onRepeat after every later one, which lets a CLI force an
// exit on a second interrupt. The returned function stops the relay.
func NotifyOnSignal(t *Token, onFirst, onRepeat func(os.Signal), sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case sig := <-ch:
				if t.Cancel() {
					if onFirst != nil {
						onFirst(sig)
					}
				} else if onRepeat != nil {
					onRepeat(sig)
				}
			case <-quit:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
