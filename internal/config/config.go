// Package config loads repodocs settings from defaults, an optional config
// file, REPODOCS_* environment variables and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/filter"
	"github.com/NicabarNimble/go-repodocs/internal/git"
)

// Sentinel validation errors.
var (
	ErrNoExtensions    = errors.New("at least one file extension must be specified")
	ErrInvalidMaxSize  = errors.New("maximum file size must be greater than 0")
	ErrMaxSizeTooLarge = errors.New("maximum file size is too large")
	ErrInvalidTimeout  = errors.New("git timeout must be greater than 0")
	ErrInvalidDepth    = errors.New("maximum directory depth must be greater than 0")
	ErrInvalidLogLevel = errors.New("invalid log level")
	ErrInvalidFormat   = errors.New("invalid log format")
)

const (
	envPrefix = "REPODOCS"
	opLoad    = "load config"
)

// configNames are tried in order when no explicit file is given.
var configNames = []string{"repodocs", ".repodocs"}

// Config is the full repodocs configuration.
type Config struct {
	Filters FilterConfig  `mapstructure:"filters" yaml:"filters"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Git     GitConfig     `mapstructure:"git" yaml:"git"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// FilterConfig selects which files count as documentation.
type FilterConfig struct {
	Extensions      []string `mapstructure:"extensions" yaml:"extensions"`
	MaxFileSize     string   `mapstructure:"max_file_size" yaml:"max_file_size"`
	ExcludeDirs     []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	MaxDepth        int      `mapstructure:"max_depth" yaml:"max_depth"`
}

// OutputConfig controls the output tree.
type OutputConfig struct {
	BaseDirectory     string `mapstructure:"base_directory" yaml:"base_directory"`
	Name              string `mapstructure:"name" yaml:"name,omitempty"`
	PreserveStructure bool   `mapstructure:"preserve_structure" yaml:"preserve_structure"`
	CreateIndex       bool   `mapstructure:"create_index" yaml:"create_index"`
	HTMLIndex         bool   `mapstructure:"html_index" yaml:"html_index"`
	GenerateReport    bool   `mapstructure:"generate_report" yaml:"generate_report"`
	ForceOverwrite    bool   `mapstructure:"force_overwrite" yaml:"force_overwrite"`
	CrossPlatform     bool   `mapstructure:"cross_platform" yaml:"cross_platform"`
}

// GitConfig controls cloning.
type GitConfig struct {
	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Branch                string        `mapstructure:"branch" yaml:"branch,omitempty"`
	InsecureSkipTLSVerify bool          `mapstructure:"insecure_skip_tls_verify" yaml:"insecure_skip_tls_verify"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	spec := filter.DefaultSpec()
	return &Config{
		Filters: FilterConfig{
			Extensions:      spec.Extensions,
			MaxFileSize:     formatSize(spec.MaxFileSize),
			ExcludeDirs:     spec.ExcludeDirs,
			ExcludePatterns: spec.ExcludePatterns,
			MaxDepth:        spec.MaxDepth,
		},
		Output: OutputConfig{
			BaseDirectory:     ".",
			PreserveStructure: true,
			CreateIndex:       true,
			GenerateReport:    true,
		},
		Git: GitConfig{
			Timeout: git.DefaultTimeout,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads configuration from path, or from repodocs.* / .repodocs.* in
// the working directory when path is empty. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfig(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, rderrors.New(rderrors.KindConfig, opLoad, fmt.Errorf("unmarshal config: %w", err))
	}

	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UsedFile reports which file Load would read for path, or "" when only
// defaults and environment apply.
func UsedFile(path string) string {
	v := viper.New()
	if err := readConfig(v, path); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return rderrors.New(rderrors.KindConfig, opLoad, fmt.Errorf("read config file: %w", err)).WithTarget(path)
		}
		return nil
	}

	v.AddConfigPath(".")
	for _, name := range configNames {
		v.SetConfigName(name)
		err := v.ReadInConfig()
		if err == nil {
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return rderrors.New(rderrors.KindConfig, opLoad, fmt.Errorf("read config file: %w", err))
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("filters.extensions", d.Filters.Extensions)
	v.SetDefault("filters.max_file_size", d.Filters.MaxFileSize)
	v.SetDefault("filters.exclude_dirs", d.Filters.ExcludeDirs)
	v.SetDefault("filters.exclude_patterns", d.Filters.ExcludePatterns)
	v.SetDefault("filters.max_depth", d.Filters.MaxDepth)

	v.SetDefault("output.base_directory", d.Output.BaseDirectory)
	v.SetDefault("output.name", d.Output.Name)
	v.SetDefault("output.preserve_structure", d.Output.PreserveStructure)
	v.SetDefault("output.create_index", d.Output.CreateIndex)
	v.SetDefault("output.html_index", d.Output.HTMLIndex)
	v.SetDefault("output.generate_report", d.Output.GenerateReport)
	v.SetDefault("output.force_overwrite", d.Output.ForceOverwrite)
	v.SetDefault("output.cross_platform", d.Output.CrossPlatform)

	v.SetDefault("git.timeout", d.Git.Timeout)
	v.SetDefault("git.branch", d.Git.Branch)
	v.SetDefault("git.insecure_skip_tls_verify", d.Git.InsecureSkipTLSVerify)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// MergeDefaults fills unset fields from Default.
func (c *Config) MergeDefaults() {
	d := Default()
	if c.Filters.Extensions == nil {
		c.Filters.Extensions = d.Filters.Extensions
	}
	if c.Filters.MaxFileSize == "" {
		c.Filters.MaxFileSize = d.Filters.MaxFileSize
	}
	if c.Filters.ExcludeDirs == nil {
		c.Filters.ExcludeDirs = d.Filters.ExcludeDirs
	}
	if c.Filters.ExcludePatterns == nil {
		c.Filters.ExcludePatterns = d.Filters.ExcludePatterns
	}
	if c.Output.BaseDirectory == "" {
		c.Output.BaseDirectory = d.Output.BaseDirectory
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	c.Filters.Extensions = normalizeExtensions(c.Filters.Extensions)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if len(c.Filters.Extensions) == 0 {
		return invalid(ErrNoExtensions)
	}
	size, err := ParseSize(c.Filters.MaxFileSize)
	if err != nil {
		return invalid(err)
	}
	if size <= 0 {
		return invalid(ErrInvalidMaxSize)
	}
	if c.Git.Timeout <= 0 {
		return invalid(ErrInvalidTimeout)
	}
	if c.Filters.MaxDepth <= 0 {
		return invalid(ErrInvalidDepth)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return invalid(fmt.Errorf("%w: %q", ErrInvalidFormat, c.Logging.Format))
	}
	return nil
}

// MaxFileSizeBytes returns the parsed size limit.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	return ParseSize(c.Filters.MaxFileSize)
}

// FilterSpec converts the filter section for filter.New.
func (c *Config) FilterSpec() (filter.Spec, error) {
	size, err := c.MaxFileSizeBytes()
	if err != nil {
		return filter.Spec{}, invalid(err)
	}
	return filter.Spec{
		Extensions:      append([]string(nil), c.Filters.Extensions...),
		MaxFileSize:     size,
		ExcludeDirs:     append([]string(nil), c.Filters.ExcludeDirs...),
		ExcludePatterns: append([]string(nil), c.Filters.ExcludePatterns...),
		MaxDepth:        c.Filters.MaxDepth,
	}, nil
}

// ParseSize parses a byte size such as "10MiB", "512 KB" or "1048576".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > uint64(1<<63-1) {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int64(n), nil
}

func formatSize(n int64) string {
	return humanize.IBytes(uint64(n))
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

func invalid(err error) error {
	return rderrors.New(rderrors.KindConfig, "validate config", err)
}
