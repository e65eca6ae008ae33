package token

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindSSHKey(t *testing.T) {
	home := t.TempDir()
	sshDir := filepath.Join(home, ".ssh")

	if _, ok := FindSSHKey(home); ok {
		t.Fatal("FindSSHKey() found a key in an empty home")
	}

	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		t.Fatal(err)
	}
	rsa := filepath.Join(sshDir, "id_rsa")
	if err := os.WriteFile(rsa, []byte("rsa"), 0o600); err != nil {
		t.Fatal(err)
	}

	key, ok := FindSSHKey(home)
	if !ok || key.PrivateKey != rsa || key.PublicKey != "" {
		t.Errorf("FindSSHKey() = %+v, %v; want %s without public key", key, ok, rsa)
	}

	ed := filepath.Join(sshDir, "id_ed25519")
	for _, p := range []string{ed, ed + ".pub"} {
		if err := os.WriteFile(p, []byte("ed"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	key, ok = FindSSHKey(home)
	if !ok || key.PrivateKey != ed || key.PublicKey != ed+".pub" {
		t.Errorf("FindSSHKey() = %+v, want ed25519 key preferred", key)
	}
}
