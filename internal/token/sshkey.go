package token

import (
	"os"
	"path/filepath"
)

// DefaultSSHKeyNames are the private keys tried, in order, for SSH clones.
var DefaultSSHKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// SSHKey locates a private key and its optional public half on disk.
type SSHKey struct {
	PrivateKey string
	PublicKey  string // empty when no .pub file sits next to the key
}

// FindSSHKey returns the first existing key under dir/.ssh, using the user's
// home directory when dir is empty.
func FindSSHKey(dir string) (SSHKey, bool) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return SSHKey{}, false
		}
		dir = home
	}

	for _, name := range DefaultSSHKeyNames {
		private := filepath.Join(dir, ".ssh", name)
		info, err := os.Stat(private)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		key := SSHKey{PrivateKey: private}
		if _, err := os.Stat(private + ".pub"); err == nil {
			key.PublicKey = private + ".pub"
		}
		return key, true
	}
	return SSHKey{}, false
}
