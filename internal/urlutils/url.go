// Package urlutils parses and validates remote repository URLs before any
// network I/O is attempted. Only the trusted host and its subdomains are
// accepted, over HTTPS, SSH, or the unauthenticated git protocol when it
// targets the trusted host itself.
package urlutils

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// TrustedHost is the only host (together with its subdomains) repositories
// may be cloned from.
const TrustedHost = "github.com"

const maxSegmentLength = 100

var (
	// ErrInvalidURL indicates that the provided URL is not valid
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrUnsupportedProtocol indicates a scheme other than https, ssh or git
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrInvalidHost indicates that the host is not the trusted host or one of its subdomains
	ErrInvalidHost = errors.New("invalid GitHub host")

	// ErrInvalidPath indicates that the URL path is not a valid repository path
	ErrInvalidPath = errors.New("invalid repository path")

	segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	scpRegex     = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)@([^:/]+):(.+)$`)
)

// Protocol is the transport class of a repository URL.
type Protocol int

const (
	ProtocolHTTPS Protocol = iota + 1 // secure transport
	ProtocolSSH
	ProtocolGit // scoped unauthenticated
)

// String returns the scheme name of the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolHTTPS:
		return "https"
	case ProtocolSSH:
		return "ssh"
	case ProtocolGit:
		return "git"
	}
	return "unknown"
}

// RepositorySource is a validated repository location. Values are only
// produced by ParseRepositoryURL and are not modified afterwards.
type RepositorySource struct {
	URL      string
	Branch   string
	Protocol Protocol
	Host     string
	Owner    string
	Name     string
}

// FullName returns "owner/name".
func (s RepositorySource) FullName() string {
	return s.Owner + "/" + s.Name
}

// WithBranch returns a copy of s that checks out branch instead of the
// remote default.
func (s RepositorySource) WithBranch(branch string) RepositorySource {
	s.Branch = branch
	return s
}

// ParseRepositoryURL parses and validates a repository URL.
// It accepts URLs in the following formats:
//   - https://github.com/owner/repo
//   - https://github.com/owner/repo.git
//   - ssh://git@github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - git://github.com/owner/repo
//
// A trailing .git is stripped from the repository name before validation.
func ParseRepositoryURL(rawURL string) (*RepositorySource, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	protocol, host, path, err := splitURL(rawURL)
	if err != nil {
		return nil, err
	}

	host = strings.ToLower(host)
	if !isValidGitHubHost(host) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHost, host)
	}
	if protocol == ProtocolGit && host != TrustedHost {
		return nil, fmt.Errorf("%w: git protocol is only allowed for %s", ErrUnsupportedProtocol, TrustedHost)
	}

	owner, name, err := splitOwnerName(path)
	if err != nil {
		return nil, err
	}

	return &RepositorySource{
		URL:      rawURL,
		Protocol: protocol,
		Host:     host,
		Owner:    owner,
		Name:     name,
	}, nil
}

// ValidateRepositoryURL checks if the provided URL is an acceptable
// repository URL. It performs comprehensive validation including:
//   - URL format and protocol
//   - GitHub host validation
//   - Owner and repository name format
//   - Path structure
func ValidateRepositoryURL(rawURL string) error {
	_, err := ParseRepositoryURL(rawURL)
	return err
}

// ParseOwnerName extracts the owner and repository name from a URL. The
// result for a URL and its .git-suffixed variant is identical.
func ParseOwnerName(rawURL string) (owner, name string, err error) {
	src, err := ParseRepositoryURL(rawURL)
	if err != nil {
		return "", "", err
	}
	return src.Owner, src.Name, nil
}

// Redact removes any credentials embedded in rawURL so it can be logged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}

func splitURL(rawURL string) (Protocol, string, string, error) {
	if !strings.Contains(rawURL, "://") {
		m := scpRegex.FindStringSubmatch(rawURL)
		if m == nil {
			return 0, "", "", fmt.Errorf("%w: %s", ErrInvalidURL, Redact(rawURL))
		}
		return ProtocolSSH, m[2], m[3], nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return 0, "", "", fmt.Errorf("%w: query and fragment are not allowed", ErrInvalidURL)
	}

	var protocol Protocol
	switch strings.ToLower(u.Scheme) {
	case "https":
		if u.User != nil {
			return 0, "", "", fmt.Errorf("%w: credentials must not be embedded in the URL", ErrInvalidURL)
		}
		protocol = ProtocolHTTPS
	case "ssh":
		protocol = ProtocolSSH
	case "git":
		protocol = ProtocolGit
	default:
		return 0, "", "", fmt.Errorf("%w: %s", ErrUnsupportedProtocol, u.Scheme)
	}

	return protocol, u.Hostname(), u.Path, nil
}

func splitOwnerName(path string) (string, string, error) {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")

	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: URL must include owner and repository", ErrInvalidPath)
	}

	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")

	if err := validateSegment("owner", owner); err != nil {
		return "", "", err
	}
	if err := validateSegment("repository", name); err != nil {
		return "", "", err
	}
	return owner, name, nil
}

func validateSegment(kind, segment string) error {
	switch {
	case segment == "":
		return fmt.Errorf("%w: empty %s name", ErrInvalidPath, kind)
	case len(segment) > maxSegmentLength:
		return fmt.Errorf("%w: %s name exceeds %d characters", ErrInvalidPath, kind, maxSegmentLength)
	case !segmentRegex.MatchString(segment):
		return fmt.Errorf("%w: invalid %s name format", ErrInvalidPath, kind)
	case strings.HasPrefix(segment, "."):
		return fmt.Errorf("%w: %s name cannot start with '.'", ErrInvalidPath, kind)
	}
	return nil
}

// isValidGitHubHost checks if the host is github.com or one of its subdomains.
// It supports the following formats:
//   - github.com (Public GitHub)
//   - *.github.com (GitHub Enterprise Cloud)
func isValidGitHubHost(host string) bool {
	if host == TrustedHost {
		return true
	}
	return strings.HasSuffix(host, "."+TrustedHost) && len(host) > len(TrustedHost)+1
}
