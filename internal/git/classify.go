package git

import (
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
)

// classifyError maps a libgit2 failure onto the error taxonomy.
func classifyError(op, target string, err error) error {
	kind := rderrors.KindTransport
	msg := strings.ToLower(err.Error())

	switch {
	case git2go.IsErrorCode(err, git2go.ErrorCodeAuth),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "no usable credentials"):
		kind = rderrors.KindAuthentication
	case git2go.IsErrorCode(err, git2go.ErrorCodeNotFound),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "not found"):
		kind = rderrors.KindNotFound
	case git2go.IsErrorClass(err, git2go.ErrorClassNet),
		git2go.IsErrorClass(err, git2go.ErrorClassSSL),
		strings.Contains(msg, "could not resolve"),
		strings.Contains(msg, "failed to connect"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "timed out"):
		kind = rderrors.KindNetwork
	}

	return rderrors.New(kind, op, err).WithTarget(target)
}
