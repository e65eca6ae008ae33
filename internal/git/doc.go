// Package git clones remote repositories into temporary directories with
// libgit2.
//
// SafeCloner validates the URL before any network I/O, runs the clone on a
// worker goroutine and aborts it when the configured timeout elapses or the
// shared cancellation token is tripped. Both conditions are checked inside
// the transfer progress callback; a watchdog covers transfers that stop
// reporting progress altogether.
//
// Example Usage:
//
//	cloner := git.NewSafeCloner(
//	    git.WithTimeout(2*time.Minute),
//	    git.WithToken(tok),
//	)
//	outcome, err := cloner.CloneToTemp(ctx, "https://github.com/org/repo")
//	if err != nil {
//	    return err
//	}
//	defer outcome.Close()
//
// Error Handling:
//
// Every failure is an *errors.Error whose Kind distinguishes timeouts,
// cancellation, network and authentication failures, missing repositories
// and other libgit2 errors.
//
// Thread Safety:
//
// A SafeCloner may be cancelled from any goroutine. Running several clones
// on one SafeCloner concurrently is supported but they share the token.
package git
