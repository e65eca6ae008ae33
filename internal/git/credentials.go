package git

import (
	"context"
	"errors"
	"sync"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/NicabarNimble/go-repodocs/internal/token"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

// errNoCredentials stops libgit2 from retrying a credential type it has
// already been offered.
var errNoCredentials = errors.New("no usable credentials")

// credentialsCallback offers, at most once each: an HTTPS token from the
// credential storage, an SSH key from ~/.ssh, and the libgit2 default
// credential.
func (c *SafeCloner) credentialsCallback(ctx context.Context, src urlutils.RepositorySource) git2go.CredentialsCallback {
	var mu sync.Mutex
	tried := make(map[git2go.CredentialType]bool)

	once := func(kind git2go.CredentialType) bool {
		mu.Lock()
		defer mu.Unlock()
		if tried[kind] {
			return false
		}
		tried[kind] = true
		return true
	}

	return func(_ string, usernameFromURL string, allowed git2go.CredentialType) (*git2go.Credential, error) {
		if allowed&git2go.CredentialTypeUserpassPlaintext != 0 && once(git2go.CredentialTypeUserpassPlaintext) {
			provider := token.ProviderForHost(src.Host)
			tok, ok, err := token.Lookup(ctx, c.creds, provider)
			if err != nil {
				c.logger.Warn("ignoring unusable token", "error", err)
			}
			if ok {
				if got := token.DetectProvider(tok.Value); got != "" && got != provider {
					c.logger.Warn("token format does not match the repository host",
						"host", src.Host, "token_provider", got, "source", tok.Source)
				}
				c.logger.Debug("using token credentials", "source", tok.Source, "token", token.Mask(tok.Value))
				return git2go.NewCredentialUserpassPlaintext("x-access-token", tok.Value)
			}
		}

		if allowed&git2go.CredentialTypeSSHKey != 0 && once(git2go.CredentialTypeSSHKey) {
			if key, ok := token.FindSSHKey(c.sshHome); ok {
				user := usernameFromURL
				if user == "" {
					user = "git"
				}
				c.logger.Debug("using ssh key", "key", key.PrivateKey)
				return git2go.NewCredentialSSHKey(user, key.PublicKey, key.PrivateKey, "")
			}
		}

		if allowed&git2go.CredentialTypeDefault != 0 && once(git2go.CredentialTypeDefault) {
			return git2go.NewCredentialDefault()
		}

		return nil, errNoCredentials
	}
}
