package token

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name     string
		token    Token
		expected bool
	}{
		{
			name:     "non-expiring token",
			token:    Token{Value: "test-token"},
			expected: false,
		},
		{
			name:     "expired token",
			token:    Token{Value: "test-token", ExpiresAt: time.Now().Add(-1 * time.Hour)},
			expected: true,
		},
		{
			name:     "valid token",
			token:    Token{Value: "test-token", ExpiresAt: time.Now().Add(1 * time.Hour)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(tt.token); got != tt.expected {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	expired, _ := json.Marshal(Token{Value: "old", ExpiresAt: time.Now().Add(-time.Minute)})

	if _, ok, err := Lookup(ctx, fakeEnv(nil), ProviderGitHub); ok || err != nil {
		t.Errorf("Lookup() on empty storage = %v, %v; want not found without error", ok, err)
	}
	if _, ok, err := Lookup(ctx, nil, ProviderGitHub); ok || err != nil {
		t.Errorf("Lookup() on nil storage = %v, %v", ok, err)
	}

	env := fakeEnv(map[string]string{
		"GIT_TOKEN_GITHUB": "ghp_abc",
		"GIT_TOKEN_GITLAB": string(expired),
	})
	tok, ok, err := Lookup(ctx, env, ProviderGitHub)
	if err != nil || !ok || tok.Value != "ghp_abc" {
		t.Errorf("Lookup() = %+v, %v, %v", tok, ok, err)
	}
	if _, ok, _ := Lookup(ctx, env, ""); ok {
		t.Error("Lookup() with empty provider should not match")
	}
	if _, _, err := Lookup(ctx, env, ProviderGitLab); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Lookup() expired error = %v, want %v", err, ErrTokenExpired)
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":                 "****",
		"abcd":             "****",
		"ghp_1234567890ab": "ghp_****",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}
