package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/filter"
	"github.com/NicabarNimble/go-repodocs/internal/pathguard"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

// Plan is what a run would do, computed without network or disk access.
type Plan struct {
	Source            urlutils.RepositorySource
	OutputDir         string
	Filter            filter.Spec
	PreserveStructure bool
	CreateIndex       bool
	HTMLIndex         bool
	ForceOverwrite    bool
	Timeout           time.Duration
}

// DryRun validates rawURL and resolves the effective configuration.
func (e *Extractor) DryRun(rawURL string) (*Plan, error) {
	src, err := urlutils.ParseRepositoryURL(rawURL)
	if err != nil {
		return nil, rderrors.New(rderrors.KindInvalidInput, "validate url", err).WithTarget(urlutils.Redact(rawURL))
	}
	if e.cfg.Git.Branch != "" {
		*src = src.WithBranch(e.cfg.Git.Branch)
	}

	spec, err := e.cfg.FilterSpec()
	if err != nil {
		return nil, err
	}
	if _, err := filter.New(spec); err != nil {
		return nil, err
	}

	name := "docs_" + pathguard.SanitizeRepoName(src.Name)
	if e.cfg.Output.Name != "" {
		name = pathguard.SanitizeRepoName(e.cfg.Output.Name)
	}

	return &Plan{
		Source:            *src,
		OutputDir:         filepath.Join(e.cfg.Output.BaseDirectory, name),
		Filter:            spec,
		PreserveStructure: e.cfg.Output.PreserveStructure,
		CreateIndex:       e.cfg.Output.CreateIndex,
		HTMLIndex:         e.cfg.Output.HTMLIndex,
		ForceOverwrite:    e.cfg.Output.ForceOverwrite,
		Timeout:           e.cfg.Git.Timeout,
	}, nil
}

// Rows renders the plan as label/value pairs for display.
func (p *Plan) Rows() [][2]string {
	branch := p.Source.Branch
	if branch == "" {
		branch = "(default)"
	}
	return [][2]string{
		{"Repository", p.Source.FullName()},
		{"URL", p.Source.URL},
		{"Branch", branch},
		{"Output directory", p.OutputDir},
		{"Extensions", strings.Join(p.Filter.Extensions, ", ")},
		{"Max file size", humanize.IBytes(uint64(max(p.Filter.MaxFileSize, 0)))},
		{"Excluded directories", strings.Join(p.Filter.ExcludeDirs, ", ")},
		{"Max depth", strconv.Itoa(p.Filter.MaxDepth)},
		{"Preserve structure", strconv.FormatBool(p.PreserveStructure)},
		{"Create index", strconv.FormatBool(p.CreateIndex)},
		{"Overwrite existing", strconv.FormatBool(p.ForceOverwrite)},
		{"Clone timeout", p.Timeout.String()},
	}
}
