// Package filter decides which files are documentation, which directories a
// scan may descend into and which files are small enough to extract.
//
// Directory exclusion is the OR of four independent rules evaluated in a
// fixed order: configured names, configured patterns, hidden directories
// and well-known build or cache directories.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
)

// Spec is the externally supplied filter configuration.
type Spec struct {
	Extensions      []string
	MaxFileSize     int64
	ExcludeDirs     []string
	ExcludePatterns []string
	MaxDepth        int
}

// DefaultSpec returns the stock documentation filter.
func DefaultSpec() Spec {
	return Spec{
		Extensions: []string{
			"md", "markdown", "mdown", "rst", "rest", "adoc", "asciidoc", "asc",
			"txt", "text", "org", "wiki", "tex", "latex",
		},
		MaxFileSize: 10 * 1024 * 1024,
		ExcludeDirs: []string{
			"node_modules", ".git", "target", "build", "dist", "vendor", ".vscode", ".idea",
		},
		ExcludePatterns: []string{`.*\.min\..*`, `.*\.lock`, `package-lock\.json`, `yarn\.lock`},
		MaxDepth:        10,
	}
}

// Conventional documentation names without an extension, normalized to
// lowercase letters and digits only.
var extensionlessDocs = map[string]bool{
	"readme":           true,
	"license":          true,
	"licence":          true,
	"changelog":        true,
	"contributing":     true,
	"authors":          true,
	"notice":           true,
	"install":          true,
	"usage":            true,
	"todo":             true,
	"copying":          true,
	"news":             true,
	"history":          true,
	"credits":          true,
	"maintainers":      true,
	"thanks":           true,
	"acknowledgments":  true,
	"acknowledgements": true,
	"codeofconduct":    true,
	"security":         true,
	"support":          true,
}

var allowedHiddenDirs = map[string]bool{
	".github":       true,
	".vscode":       true,
	".devcontainer": true,
	".circleci":     true,
	".gitlab":       true,
}

var buildDirs = map[string]bool{
	"target":        true,
	"build":         true,
	"dist":          true,
	"out":           true,
	"output":        true,
	"bin":           true,
	"obj":           true,
	"node_modules":  true,
	"vendor":        true,
	".cache":        true,
	"tmp":           true,
	"temp":          true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	"coverage":      true,
	".coverage":     true,
	"htmlcov":       true,
}

// FileFilter applies a Spec. It is not safe for concurrent mutation; the
// scanner only reads it.
type FileFilter struct {
	extensions  []string
	maxFileSize int64
	excludeDirs []string
	patterns    []*regexp.Regexp
	maxDepth    int
}

// New compiles spec into a FileFilter. An invalid exclusion pattern is a
// configuration error.
func New(spec Spec) (*FileFilter, error) {
	f := &FileFilter{
		maxFileSize: spec.MaxFileSize,
		maxDepth:    spec.MaxDepth,
	}
	for _, ext := range spec.Extensions {
		f.AddExtension(ext)
	}
	for _, dir := range spec.ExcludeDirs {
		f.AddExcludeDirectory(dir)
	}
	for _, pattern := range spec.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, rderrors.New(rderrors.KindConfig, "compile exclude pattern",
				fmt.Errorf("%q: %w", pattern, err))
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// IsDocumentationFile reports whether path names a documentation file, either
// by extension or by a conventional extensionless name such as README.
func (f *FileFilter) IsDocumentationFile(path string) bool {
	name := filepath.Base(path)
	ext := Extension(name)
	if ext != "" {
		return slices.Contains(f.extensions, ext)
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return extensionlessDocs[normalizeName(name)]
}

// IsExcludedFile reports whether a file path matches an exclusion pattern.
func (f *FileFilter) IsExcludedFile(path string) bool {
	return f.MatchesAnyPattern(filepath.ToSlash(path))
}

// ShouldTraverseDirectory reports whether a scan may descend into path. The
// scan root is not subject to this check.
func (f *FileFilter) ShouldTraverseDirectory(path string) bool {
	name := filepath.Base(path)
	lower := strings.ToLower(name)

	switch {
	case f.excludedByName(lower):
		return false
	case f.excludedByPattern(path):
		return false
	case excludedHidden(name, lower):
		return false
	case excludedBuildDir(lower):
		return false
	}
	return true
}

func (f *FileFilter) excludedByName(lower string) bool {
	for _, dir := range f.excludeDirs {
		if strings.ToLower(dir) == lower {
			return true
		}
	}
	return false
}

func (f *FileFilter) excludedByPattern(path string) bool {
	return f.MatchesAnyPattern(filepath.ToSlash(path))
}

func excludedHidden(name, lower string) bool {
	if !strings.HasPrefix(name, ".") || name == "." || name == ".." {
		return false
	}
	return !allowedHiddenDirs[lower]
}

func excludedBuildDir(lower string) bool {
	return buildDirs[lower]
}

// IsSizeAllowed reports whether a file of size bytes is within the ceiling.
func (f *FileFilter) IsSizeAllowed(size int64) bool {
	return size <= f.maxFileSize
}

// MatchesAnyPattern reports whether text matches any exclusion pattern.
func (f *FileFilter) MatchesAnyPattern(text string) bool {
	for _, re := range f.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// AddExtension accepts files with ext. A leading dot is ignored.
func (f *FileFilter) AddExtension(ext string) {
	ext = normalizeExtension(ext)
	if ext == "" || slices.Contains(f.extensions, ext) {
		return
	}
	f.extensions = append(f.extensions, ext)
}

// RemoveExtension stops accepting files with ext.
func (f *FileFilter) RemoveExtension(ext string) {
	ext = normalizeExtension(ext)
	f.extensions = slices.DeleteFunc(f.extensions, func(e string) bool { return e == ext })
}

// AddExcludeDirectory excludes directories named dir.
func (f *FileFilter) AddExcludeDirectory(dir string) {
	if dir == "" || slices.Contains(f.excludeDirs, dir) {
		return
	}
	f.excludeDirs = append(f.excludeDirs, dir)
}

// RemoveExcludeDirectory removes a configured exclusion. Built-in build and
// hidden directory rules still apply.
func (f *FileFilter) RemoveExcludeDirectory(dir string) {
	f.excludeDirs = slices.DeleteFunc(f.excludeDirs, func(d string) bool {
		return strings.EqualFold(d, dir)
	})
}

// SetMaxFileSize changes the size ceiling.
func (f *FileFilter) SetMaxFileSize(size int64) { f.maxFileSize = size }

// Extensions returns a copy of the accepted extensions.
func (f *FileFilter) Extensions() []string { return slices.Clone(f.extensions) }

// ExcludeDirs returns a copy of the configured directory exclusions.
func (f *FileFilter) ExcludeDirs() []string { return slices.Clone(f.excludeDirs) }

// MaxFileSize returns the size ceiling in bytes.
func (f *FileFilter) MaxFileSize() int64 { return f.maxFileSize }

// MaxDepth returns the traversal depth bound.
func (f *FileFilter) MaxDepth() int { return f.maxDepth }

// Extension returns the lowercase extension of name without the dot, or ""
// when there is none. Dotfiles such as .gitignore have no extension.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
