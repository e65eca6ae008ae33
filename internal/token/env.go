package token

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvPrefix is the prefix used for structured token environment variables
	EnvPrefix = "GIT_TOKEN_"
)

// fallbackVars lists conventional variables consulted, in order, when no
// GIT_TOKEN_<PROVIDER> variable is set.
var fallbackVars = map[Provider][]string{
	ProviderGitHub: {"GITHUB_TOKEN", "GH_TOKEN"},
	ProviderGitLab: {"GITLAB_TOKEN"},
}

// EnvStorage implements Storage using environment variables.
//
// GIT_TOKEN_<KEY> holds either a JSON-encoded Token or a bare token value.
// For known providers the conventional variables (GITHUB_TOKEN, GH_TOKEN)
// are consulted when the prefixed variable is absent.
type EnvStorage struct {
	getenv func(string) string
}

// NewEnvStorage creates a new environment variable-based token storage
func NewEnvStorage() *EnvStorage {
	return &EnvStorage{getenv: os.Getenv}
}

// Retrieve gets a token by its key from environment variables
func (e *EnvStorage) Retrieve(_ context.Context, key string) (Token, error) {
	envKey := e.FormatEnvKey(key)
	if data := strings.TrimSpace(e.lookup(envKey)); data != "" {
		return parseEnvToken(envKey, data)
	}

	for _, name := range fallbackVars[Provider(strings.ToUpper(key))] {
		if value := strings.TrimSpace(e.lookup(name)); value != "" {
			return Token{Value: value, Source: name}, nil
		}
	}
	return Token{}, ErrTokenNotFound
}

// FormatEnvKey converts a token key into an environment variable name
// This is exported to allow users to predict and verify environment variable names
func (e *EnvStorage) FormatEnvKey(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToUpper(key))

	return EnvPrefix + sanitized
}

func (e *EnvStorage) lookup(name string) string {
	if e.getenv == nil {
		return os.Getenv(name)
	}
	return e.getenv(name)
}

func parseEnvToken(envKey, data string) (Token, error) {
	if !strings.HasPrefix(data, "{") {
		return Token{Value: data, Source: envKey}, nil
	}

	var token Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return Token{}, fmt.Errorf("%w: %s: %v", ErrTokenInvalid, envKey, err)
	}
	if !IsValid(token) {
		return Token{}, fmt.Errorf("%w: %s has no value", ErrTokenInvalid, envKey)
	}
	if IsExpired(token) {
		return Token{}, fmt.Errorf("%w: %s expired at %s", ErrTokenExpired, envKey,
			token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	token.Source = envKey
	return token, nil
}
