package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/filelock"
)

// DefaultFileName is where `repodocs config init` writes by default.
const DefaultFileName = "repodocs.yaml"

// Marshal renders c as YAML.
func Marshal(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, rderrors.New(rderrors.KindConfig, "marshal config", err)
	}
	return data, nil
}

// Save writes c to path as YAML, replacing any existing file atomically.
func Save(c *Config, path string) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	header := []byte("# repodocs configuration\n")
	if err := filelock.AtomicWrite(path, append(header, data...)); err != nil {
		return rderrors.New(rderrors.KindConfig, "save config", fmt.Errorf("write %s: %w", path, err)).WithTarget(path)
	}
	return nil
}

// Sample returns the default configuration as YAML.
func Sample() []byte {
	data, err := Marshal(Default())
	if err != nil {
		return nil
	}
	return data
}
