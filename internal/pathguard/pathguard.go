// Package pathguard validates destination paths before anything is written
// to disk and derives safe names for output directories and index links.
package pathguard

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
)

const (
	// DefaultMaxPath is the conservative path length ceiling.
	DefaultMaxPath = 4096
	// LegacyMaxPath is the ceiling for legacy Windows filesystems.
	LegacyMaxPath = 260

	maxRepoNameLength = 100
	unnamedFile       = "unnamed_file"
	unnamedRepo       = "unnamed_repo"
	illegalChars      = `<>:"|?*`
)

var (
	// ErrTraversal indicates a parent-directory segment in the path
	ErrTraversal = errors.New("path traversal detected")

	// ErrPathTooLong indicates the path exceeds the configured length
	ErrPathTooLong = errors.New("path too long")

	// ErrIllegalCharacters indicates control or reserved characters in a name
	ErrIllegalCharacters = errors.New("invalid characters in filename")

	// ErrReservedName indicates a Windows reserved device name
	ErrReservedName = errors.New("reserved filename")

	// ErrTrailingDotOrSpace indicates a name ending in a space or dot
	ErrTrailingDotOrSpace = errors.New("filename cannot end with space or dot")

	reservedNames = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}
)

// Options tunes destination validation.
type Options struct {
	// MaxLength is the maximum accepted path length in bytes.
	MaxLength int
	// CrossPlatform rejects names that are illegal on Windows-class
	// filesystems even when running elsewhere.
	CrossPlatform bool
}

// DefaultOptions returns the options used by ValidateDestination.
func DefaultOptions() Options {
	return Options{
		MaxLength:     DefaultMaxPath,
		CrossPlatform: runtime.GOOS == "windows",
	}
}

// ValidateDestination validates path with DefaultOptions.
func ValidateDestination(path string) error {
	return DefaultOptions().ValidateDestination(path)
}

// ValidateDestination rejects paths that contain a parent-directory segment,
// exceed the length ceiling, or whose final name is not a legal filename.
func (o Options) ValidateDestination(path string) error {
	if hasTraversal(path) {
		return fail(path, ErrTraversal)
	}

	limit := o.MaxLength
	if limit <= 0 {
		limit = DefaultMaxPath
	}
	if len(path) > limit {
		return fail(path, fmt.Errorf("%w: %d > %d", ErrPathTooLong, len(path), limit))
	}

	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return nil
	}
	if err := o.checkName(name); err != nil {
		return fail(path, err)
	}
	return nil
}

// ValidateComponents applies the file name rules to every segment of a
// relative path.
func (o Options) ValidateComponents(rel string) error {
	if hasTraversal(rel) {
		return fail(rel, ErrTraversal)
	}
	for _, segment := range splitSegments(rel) {
		if segment == "" || segment == "." {
			continue
		}
		if err := o.checkName(segment); err != nil {
			return fail(rel, err)
		}
	}
	return nil
}

// ValidateComponents validates rel with DefaultOptions.
func ValidateComponents(rel string) error {
	return DefaultOptions().ValidateComponents(rel)
}

func (o Options) checkName(name string) error {
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegalChars, r) {
			return fmt.Errorf("%w: %q", ErrIllegalCharacters, name)
		}
	}

	if strings.HasSuffix(name, " ") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: %q", ErrTrailingDotOrSpace, name)
	}

	if o.CrossPlatform && IsReservedName(name) {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// IsReservedName reports whether name, without its extension, is a Windows
// reserved device name. The comparison ignores case.
func IsReservedName(name string) bool {
	stem := name
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	return reservedNames[strings.ToUpper(stem)]
}

// SanitizeName makes name safe to use as a single path component. Separators,
// reserved and control characters become '_' and trailing dots and spaces are
// trimmed. An empty result is replaced by a placeholder.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(illegalChars, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimRight(b.String(), ". ")
	if out == "" {
		return unnamedFile
	}
	if IsReservedName(out) {
		out = "_" + out
	}
	return out
}

// SanitizeRepoName derives the directory-name part of docs_<name>. Only
// ASCII letters, digits, '-', '_' and '.' survive, the result is trimmed of
// leading and trailing dots and underscores, and capped at 100 characters.
func SanitizeRepoName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x80 && (r == '-' || r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), "._ ")
	if len(out) > maxRepoNameLength {
		out = strings.TrimRight(out[:maxRepoNameLength], "._ ")
	}
	if out == "" {
		return unnamedRepo
	}
	return out
}

func hasTraversal(path string) bool {
	for _, segment := range splitSegments(path) {
		if segment == ".." {
			return true
		}
	}
	return false
}

func splitSegments(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

func fail(path string, err error) error {
	return rderrors.New(rderrors.KindPathValidation, "validate path", err).WithTarget(path)
}
