package token

import (
	"strings"
)

// Provider represents a Git provider type
type Provider string

const (
	ProviderGitHub Provider = "GITHUB"
	ProviderGitLab Provider = "GITLAB"
)

// DetectProvider attempts to determine the token provider from the token format
func DetectProvider(tokenValue string) Provider {
	switch {
	case strings.HasPrefix(tokenValue, "ghp_"),
		strings.HasPrefix(tokenValue, "gho_"),
		strings.HasPrefix(tokenValue, "ghs_"),
		strings.HasPrefix(tokenValue, "github_pat_"):
		return ProviderGitHub
	case strings.HasPrefix(tokenValue, "glpat-"):
		return ProviderGitLab
	default:
		return ""
	}
}

// ProviderForHost maps a repository host to the provider whose token
// should be offered to it.
func ProviderForHost(host string) Provider {
	host = strings.ToLower(host)
	switch {
	case host == "github.com", strings.HasSuffix(host, ".github.com"):
		return ProviderGitHub
	case host == "gitlab.com", strings.HasSuffix(host, ".gitlab.com"):
		return ProviderGitLab
	default:
		return ""
	}
}
