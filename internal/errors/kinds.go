package errors

import (
	"fmt"
	"strings"
	"time"
)

// Environment variables a user can set to authenticate private clones.
const (
	TokenEnvVar      = "GITHUB_TOKEN"
	StructuredEnvVar = "GIT_TOKEN_GITHUB"
)

// Common pipeline error types
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrAuthentication   = &Error{Kind: KindAuthentication}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrCancelled        = &Error{Kind: KindCancelled}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrPathValidation   = &Error{Kind: KindPathValidation}
	ErrOutputExists     = &Error{Kind: KindOutputExists}
	ErrNoDocuments      = &Error{Kind: KindNoDocuments}
	ErrTransport        = &Error{Kind: KindTransport}
	ErrConfig           = &Error{Kind: KindConfig}
)

// Cancelled returns a cancellation error for the given operation.
func Cancelled(op string) *Error {
	return &Error{Kind: KindCancelled, Op: op}
}

// Timeout returns a timeout error recording the configured limit.
func Timeout(op, target string, limit time.Duration) *Error {
	return &Error{Kind: KindTimeout, Op: op, Target: target, Timeout: limit}
}

// NoDocuments returns the error reported when a scan selected nothing.
func NoDocuments(op string, extensions []string) *Error {
	exts := make([]string, len(extensions))
	copy(exts, extensions)
	return &Error{Kind: KindNoDocuments, Op: op, Extensions: exts}
}

// UserMessage returns a plain one-line description suitable for end users.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidInput:
		return withDetail("Invalid input", e.Target, e.Err)
	case KindNetwork:
		return withDetail("Network error while cloning", e.Target, nil)
	case KindAuthentication:
		return withDetail("Authentication failed", e.Target, nil)
	case KindNotFound:
		return withDetail("Repository not found", e.Target, nil)
	case KindTimeout:
		if e.Timeout > 0 {
			return fmt.Sprintf("Operation timed out after %d seconds", int(e.Timeout.Seconds()))
		}
		return "Operation timed out"
	case KindCancelled:
		return "Operation was cancelled by user"
	case KindPermissionDenied:
		return withDetail("Permission denied accessing", e.Target, e.Err)
	case KindPathValidation:
		return withDetail("Invalid file path", e.Target, e.Err)
	case KindOutputExists:
		return withDetail("Output already exists", e.Target, nil)
	case KindNoDocuments:
		if len(e.Extensions) == 0 {
			return "No documentation files found"
		}
		return "No documentation files found with extensions: " + strings.Join(e.Extensions, ", ")
	case KindTransport:
		return withDetail("Git operation failed", "", e.Err)
	case KindConfig:
		return withDetail("Configuration error", "", e.Err)
	}
	return e.Error()
}

// Suggestion returns an actionable hint for the user, or "" when there is
// nothing useful to suggest.
func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindInvalidInput:
		return "Check that the URL is a valid GitHub repository URL (e.g., https://github.com/owner/repo)."
	case KindNotFound:
		return "Verify the repository exists and you have access to it. For private repositories, set the " +
			TokenEnvVar + " environment variable."
	case KindAuthentication:
		return "Set the " + TokenEnvVar + " (or " + StructuredEnvVar +
			") environment variable with a valid personal access token for private repositories."
	case KindNetwork:
		return "Check your internet connection and try again. If the problem persists, the repository server might be temporarily unavailable."
	case KindNoDocuments:
		return "Try different file extensions with --formats (e.g., --formats md,rst,txt,adoc) or check that the repository contains documentation files."
	case KindConfig:
		return "Check your configuration file syntax and ensure all required fields are present."
	case KindPermissionDenied:
		return "Ensure you have the necessary read/write permissions for the target directory."
	case KindTimeout:
		return "The clone took longer than expected. Try again or increase the timeout with --timeout."
	case KindOutputExists:
		return "Remove the existing directory, choose a different output location with --output, or use --force to overwrite."
	case KindPathValidation:
		return "The repository contains a path that cannot be written safely on this system; it was skipped."
	}
	return ""
}

// IsRetryable checks if the error is potentially retryable by the caller
// without changing the input, or by re-running with --force.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindOutputExists:
		return true
	}
	return false
}

// IsNotFound checks if the error indicates the repository was not found
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsCancelled checks if the error indicates a user-requested stop
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

func withDetail(prefix, target string, err error) string {
	msg := prefix
	if target != "" {
		msg += ": " + target
	}
	if err != nil {
		msg += " (" + err.Error() + ")"
	}
	return msg
}
