// Package errors defines the tagged error taxonomy shared by every stage of
// the extraction pipeline. Each failure carries a Kind so callers can map it
// to an exit status and to an actionable suggestion without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Kind classifies an error by what went wrong rather than where.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNetwork
	KindAuthentication
	KindNotFound
	KindTimeout
	KindCancelled
	KindPermissionDenied
	KindPathValidation
	KindOutputExists
	KindNoDocuments
	KindTransport
	KindConfig
	KindIO
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown error",
	KindInvalidInput:     "invalid input",
	KindNetwork:          "network failure",
	KindAuthentication:   "authentication failed",
	KindNotFound:         "repository not found",
	KindTimeout:          "operation timed out",
	KindCancelled:        "operation cancelled",
	KindPermissionDenied: "permission denied",
	KindPathValidation:   "path validation failed",
	KindOutputExists:     "already exists",
	KindNoDocuments:      "no documentation found",
	KindTransport:        "git operation failed",
	KindConfig:           "configuration error",
	KindIO:               "I/O error",
}

// String returns a short lowercase description of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is an error that occurred during a pipeline operation
type Error struct {
	Kind   Kind   // What class of failure this is
	Op     string // The operation being performed
	Target string // URL or path the operation acted on
	Err    error  // The underlying error

	// Extensions lists what was searched for when Kind is KindNoDocuments.
	Extensions []string
	// Timeout is the configured limit when Kind is KindTimeout.
	Timeout time.Duration
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Target != "" {
		fmt.Fprintf(&b, " (%s)", e.Target)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. An empty Op on
// the target matches any operation, which lets the package sentinels be used
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// New creates a new Error
func New(kind Kind, op string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// Newf creates a new Error whose underlying error is built from a format string.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// WithTarget records the URL or path the failing operation acted on.
func (e *Error) WithTarget(target string) *Error {
	e.Target = target
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors do not need a second import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is the standard library errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Wrap tags err with op, preserving any kind err already carries. Permission
// failures become KindPermissionDenied and everything else KindIO. It returns
// nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindIO
		if stderrors.Is(err, fs.ErrPermission) {
			kind = KindPermissionDenied
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
