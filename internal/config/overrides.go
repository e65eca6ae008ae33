package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
)

// maxSizeMB is the largest megabyte count whose byte value fits in an int64.
const maxSizeMB = math.MaxInt64 >> 20

// Overrides carries command-line values. Nil fields leave the loaded
// configuration untouched.
type Overrides struct {
	Formats               *string
	Exclude               []string
	MaxSizeMB             *uint64
	OutputDir             *string
	OutputName            *string
	PreserveStructure     *bool
	TimeoutSeconds        *int
	Branch                *string
	Force                 *bool
	NoIndex               *bool
	HTMLIndex             *bool
	InsecureSkipTLSVerify *bool
}

// Apply writes the set overrides into c. Formats replace the extension list;
// exclusions are appended to the excluded directories. A size override whose
// byte count overflows is rejected and c is left untouched.
func (o Overrides) Apply(c *Config) error {
	if o.MaxSizeMB != nil && *o.MaxSizeMB > maxSizeMB {
		return rderrors.New(rderrors.KindConfig, "apply overrides",
			fmt.Errorf("%w: %d MiB exceeds %d MiB", ErrMaxSizeTooLarge, *o.MaxSizeMB, uint64(maxSizeMB)))
	}
	if o.Formats != nil {
		c.Filters.Extensions = normalizeExtensions(strings.Split(*o.Formats, ","))
	}
	for _, dir := range o.Exclude {
		dir = strings.TrimSpace(dir)
		if dir != "" && !contains(c.Filters.ExcludeDirs, dir) {
			c.Filters.ExcludeDirs = append(c.Filters.ExcludeDirs, dir)
		}
	}
	if o.MaxSizeMB != nil {
		c.Filters.MaxFileSize = strconv.FormatUint(*o.MaxSizeMB*1024*1024, 10)
	}
	if o.OutputDir != nil {
		c.Output.BaseDirectory = *o.OutputDir
	}
	if o.OutputName != nil {
		c.Output.Name = *o.OutputName
	}
	if o.PreserveStructure != nil {
		c.Output.PreserveStructure = *o.PreserveStructure
	}
	if o.TimeoutSeconds != nil {
		c.Git.Timeout = time.Duration(*o.TimeoutSeconds) * time.Second
	}
	if o.Branch != nil {
		c.Git.Branch = *o.Branch
	}
	if o.Force != nil {
		c.Output.ForceOverwrite = *o.Force
	}
	if o.NoIndex != nil {
		c.Output.CreateIndex = !*o.NoIndex
	}
	if o.HTMLIndex != nil {
		c.Output.HTMLIndex = *o.HTMLIndex
	}
	if o.InsecureSkipTLSVerify != nil {
		c.Git.InsecureSkipTLSVerify = *o.InsecureSkipTLSVerify
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
