package git

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-repodocs/internal/token"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

// stubStorage serves fixed tokens keyed by provider.
type stubStorage struct {
	tokens map[string]token.Token
	err    error
}

func (s stubStorage) Retrieve(_ context.Context, key string) (token.Token, error) {
	if s.err != nil {
		return token.Token{}, s.err
	}
	tok, ok := s.tokens[key]
	if !ok {
		return token.Token{}, token.ErrTokenNotFound
	}
	return tok, nil
}

// sshHomeWithKey returns a directory holding .ssh/id_ed25519.
func sshHomeWithKey(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), []byte("key"), 0o600))
	return home
}

func TestCredentialsCallback_Order(t *testing.T) {
	const (
		userpass = git2go.CredentialTypeUserpassPlaintext
		sshKey   = git2go.CredentialTypeSSHKey
		def      = git2go.CredentialTypeDefault
		all      = userpass | sshKey | def
	)
	githubToken := stubStorage{tokens: map[string]token.Token{
		"GITHUB": {Value: "ghp_secret", Source: "GITHUB_TOKEN"},
	}}

	tests := []struct {
		name    string
		host    string
		storage token.Storage
		withKey bool
		allowed git2go.CredentialType
		want    []git2go.CredentialType // 0 marks errNoCredentials
	}{
		{
			name:    "token then ssh key then default",
			host:    "github.com",
			storage: githubToken,
			withKey: true,
			allowed: all,
			want:    []git2go.CredentialType{userpass, sshKey, def, 0, 0},
		},
		{
			name:    "no token falls through to ssh key",
			host:    "github.com",
			storage: stubStorage{},
			withKey: true,
			allowed: all,
			want:    []git2go.CredentialType{sshKey, def, 0},
		},
		{
			name:    "no token and no key",
			host:    "github.com",
			storage: stubStorage{},
			allowed: all,
			want:    []git2go.CredentialType{def, 0},
		},
		{
			name:    "nil storage offers no token",
			host:    "github.com",
			allowed: all,
			want:    []git2go.CredentialType{def, 0},
		},
		{
			name:    "unusable token is skipped",
			host:    "github.com",
			storage: stubStorage{err: token.ErrTokenExpired},
			allowed: all,
			want:    []git2go.CredentialType{def, 0},
		},
		{
			name:    "unknown host gets no token",
			host:    "git.example.com",
			storage: githubToken,
			allowed: all,
			want:    []git2go.CredentialType{def, 0},
		},
		{
			name:    "only allowed types are offered",
			host:    "github.com",
			storage: githubToken,
			withKey: true,
			allowed: userpass | def,
			want:    []git2go.CredentialType{userpass, def, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sshHome := t.TempDir()
			if tt.withKey {
				sshHome = sshHomeWithKey(t)
			}
			c := NewSafeCloner(WithCredentials(tt.storage), WithSSHHome(sshHome))
			cb := c.credentialsCallback(context.Background(), urlutils.RepositorySource{Host: tt.host})

			for i, want := range tt.want {
				cred, err := cb(testURL, "", tt.allowed)
				if want == 0 {
					require.ErrorIs(t, err, errNoCredentials, "call %d", i)
					assert.Nil(t, cred)
					continue
				}
				if want == sshKey && err != nil {
					t.Skipf("libgit2 without ssh support: %v", err)
				}
				require.NoError(t, err, "call %d", i)
				assert.Equal(t, want, cred.Type(), "call %d", i)

				switch want {
				case userpass:
					user, pass, err := cred.GetUserpassPlaintext()
					require.NoError(t, err)
					assert.Equal(t, "x-access-token", user)
					assert.Equal(t, "ghp_secret", pass)
				case sshKey:
					user, _, private, _, err := cred.GetSSHKey()
					require.NoError(t, err)
					assert.Equal(t, "git", user)
					assert.Equal(t, filepath.Join(sshHome, ".ssh", "id_ed25519"), private)
				}
				cred.Free()
			}
		})
	}
}

func TestCredentialsCallback_MismatchedTokenWarns(t *testing.T) {
	var logs bytes.Buffer
	storage := stubStorage{tokens: map[string]token.Token{
		"GITHUB": {Value: "glpat-secret", Source: "GITHUB_TOKEN"},
	}}
	c := NewSafeCloner(
		WithCredentials(storage),
		WithSSHHome(t.TempDir()),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	cb := c.credentialsCallback(context.Background(), urlutils.RepositorySource{Host: "github.com"})

	cred, err := cb(testURL, "", git2go.CredentialTypeUserpassPlaintext)
	require.NoError(t, err)
	defer cred.Free()

	assert.Contains(t, logs.String(), "token format does not match")
	assert.Contains(t, logs.String(), "token_provider=GITLAB")
	assert.NotContains(t, logs.String(), "glpat-secret")
}
