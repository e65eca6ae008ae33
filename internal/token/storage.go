// Package token resolves the credentials used to clone private repositories.
//
// Credentials come from the environment so the tool runs unattended in CI
// and containers:
//
//	export GIT_TOKEN_GITHUB='{"Value":"ghp_...","Scope":"repo"}'  // structured, may carry an expiry
//	export GIT_TOKEN_GITHUB=ghp_...                                // bare token
//	export GITHUB_TOKEN=ghp_...                                    // conventional fallback
//
// SSH clones use the first key found under ~/.ssh (see FindSSHKey).
package token

import (
	"context"
	"errors"
	"time"
)

// Common errors that may be returned by token operations
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token has expired")
)

// Token represents an authentication token with metadata
type Token struct {
	// Value is the actual token string
	Value string `json:"Value"`

	// ExpiresAt indicates when the token will expire
	// Zero value means the token does not expire
	ExpiresAt time.Time `json:"ExpiresAt"`

	// Scope defines the permissions granted to this token
	Scope string `json:"Scope"`

	// CreatedAt indicates when the token was created/stored
	CreatedAt time.Time `json:"CreatedAt"`

	// Source names where the token was found, e.g. an environment variable.
	// It is never serialized.
	Source string `json:"-"`
}

// Storage is a keyed source of tokens. Keys are provider names such as
// "github".
type Storage interface {
	// Retrieve gets a token by its key.
	// Returns ErrTokenNotFound if no token is available.
	Retrieve(ctx context.Context, key string) (Token, error)
}

// Lookup retrieves the token for provider from s. A missing token yields
// ok == false with a nil error; expired or malformed tokens are errors.
func Lookup(ctx context.Context, s Storage, provider Provider) (tok Token, ok bool, err error) {
	if s == nil || provider == "" {
		return Token{}, false, nil
	}
	tok, err = s.Retrieve(ctx, string(provider))
	if errors.Is(err, ErrTokenNotFound) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}
	return tok, true, nil
}

// IsExpired checks if a token has expired
func IsExpired(token Token) bool {
	if token.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(token.ExpiresAt)
}

// IsValid performs basic validation of a token
func IsValid(token Token) bool {
	return token.Value != ""
}

// Mask returns a loggable form of value that keeps only a short prefix.
func Mask(value string) string {
	const keep = 4
	if len(value) <= keep {
		return "****"
	}
	return value[:keep] + "****"
}
