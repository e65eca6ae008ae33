// Package main provides the repodocs CLI, which extracts the documentation
// files of a GitHub repository into a local directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NicabarNimble/go-repodocs/internal/cancel"
	"github.com/NicabarNimble/go-repodocs/internal/config"
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/logging"
	"github.com/NicabarNimble/go-repodocs/internal/pipeline"
	"github.com/NicabarNimble/go-repodocs/internal/progress"
	"github.com/NicabarNimble/go-repodocs/internal/ui"
	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

var (
	// cloneFunc allows for mocking in tests; nil clones with libgit2.
	cloneFunc pipeline.CloneFunc
	// forceExit runs on a second interrupt.
	forceExit = func() { os.Exit(pipeline.ExitCancelled) }
)

// exitError carries a process exit code for a failure that was already
// reported to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type options struct {
	configPath   string
	outputFormat string
	verbose      int
	quiet        bool
	dryRun       bool

	output    string
	name      string
	formats   string
	exclude   []string
	maxSizeMB uint64
	preserve  bool
	timeout   int
	branch    string
	force     bool
	noIndex   bool
	htmlIndex bool
	insecure  bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return pipeline.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Usage errors reported by cobra itself.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return pipeline.ExitInvalidInput
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "repodocs <repository-url>",
		Short: "Extract documentation files from a GitHub repository",
		Long: `Clone a GitHub repository into a temporary directory, collect its documentation
files (Markdown, reStructuredText, AsciiDoc, plain text and the like) and copy
them into a local directory together with an index and an extraction report.

Example usage:
  repodocs https://github.com/owner/repo
  repodocs https://github.com/owner/repo.git -o ./docs --formats md,rst
  repodocs git@github.com:owner/repo.git --branch develop --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.extract(cmd, args[0], stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", ".", "Base directory for the extracted documentation")
	f.StringVar(&o.name, "name", "", "Custom name for the output directory")
	f.StringVarP(&o.formats, "formats", "f", "", "Comma-separated file extensions to extract (e.g. md,rst,txt)")
	f.StringSliceVarP(&o.exclude, "exclude", "e", nil, "Additional directories to exclude (repeatable)")
	f.Uint64Var(&o.maxSizeMB, "max-size", 10, "Maximum file size in MB")
	f.BoolVar(&o.preserve, "preserve-structure", true, "Preserve the repository directory structure")
	f.IntVar(&o.timeout, "timeout", 300, "Clone timeout in seconds")
	f.StringVarP(&o.branch, "branch", "b", "", "Branch to clone instead of the default branch")
	f.BoolVar(&o.force, "force", false, "Overwrite an existing output directory")
	f.BoolVar(&o.dryRun, "dry-run", false, "Show what would be extracted without cloning")
	f.BoolVar(&o.noIndex, "no-index", false, "Do not write the documentation index")
	f.BoolVar(&o.htmlIndex, "html-index", false, "Also render the index as HTML")
	f.BoolVar(&o.insecure, "insecure-skip-tls-verify", false, "Accept any TLS certificate presented by the remote")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "Configuration file (default: ./repodocs.* or ./.repodocs.*)")
	pf.StringVar(&o.outputFormat, "output-format", "human", "Output format: human, json or plain")
	pf.CountVarP(&o.verbose, "verbose", "v", "Increase verbosity (-v, -vv)")
	pf.BoolVarP(&o.quiet, "quiet", "q", false, "Only print errors")

	cmd.AddCommand(newConfigCmd(o, stdout, stderr), newValidateCmd(o, stdout, stderr))
	return cmd
}

func newConfigCmd(o *options, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the repodocs configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			out := o.formatter(stdout, stderr)
			if _, err := os.Stat(path); err == nil && !force {
				exists := rderrors.Newf(rderrors.KindOutputExists, "config init", "%s already exists", path).WithTarget(path)
				return fail(out, exists)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return fail(out, err)
			}
			out.Success("Wrote " + path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newValidateCmd(o *options, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <repository-url>",
		Short: "Check a repository URL without cloning it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := o.formatter(stdout, stderr)
			src, err := urlutils.ParseRepositoryURL(args[0])
			if err != nil {
				return fail(out, rderrors.New(rderrors.KindInvalidInput, "validate url", err).WithTarget(urlutils.Redact(args[0])))
			}
			out.PrintTable("Repository", [][2]string{
				{"Owner", src.Owner},
				{"Name", src.Name},
				{"Host", src.Host},
				{"Protocol", src.Protocol.String()},
			})
			out.Success("URL is valid")
			return nil
		},
	}
}

func (o *options) extract(cmd *cobra.Command, rawURL string, stdout, stderr io.Writer) error {
	out := o.formatter(stdout, stderr)

	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return fail(out, err)
	}
	logger := o.logger(cfg, stderr)
	if used := config.UsedFile(o.configPath); used != "" {
		logger.Debug("configuration loaded", "file", used)
	}

	tok := cancel.New()
	opts := []pipeline.Option{pipeline.WithToken(tok), pipeline.WithLogger(logger)}
	if cloneFunc != nil {
		opts = append(opts, pipeline.WithCloneFunc(cloneFunc))
	}
	if out.Mode() == ui.ModeHuman && !out.Quiet() {
		opts = append(opts,
			pipeline.WithCloneTracker(progress.NewConsoleTracker(stderr, progress.WithUnit(progress.UnitItems))),
			pipeline.WithCopyTracker(progress.NewConsoleTracker(stderr, progress.WithUnit(progress.UnitBytes))),
		)
	}
	ext := pipeline.New(cfg, opts...)

	if o.dryRun {
		plan, err := ext.DryRun(rawURL)
		if err != nil {
			return fail(out, err)
		}
		out.PrintTable("Dry run", plan.Rows())
		return nil
	}

	stop := cancel.NotifyOnSignal(tok,
		func(os.Signal) { out.Warning("Cancelling... press Ctrl+C again to exit immediately") },
		func(os.Signal) { forceExit() },
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	out.StartOperation("Extracting documentation from " + urlutils.Redact(rawURL))
	res, err := ext.Run(cmd.Context(), rawURL)
	if err != nil {
		out.PrintError(err)
		if rderrors.IsCancelled(err) && res != nil && res.OutputDir != "" {
			out.Warning(fmt.Sprintf("Partial output left in %s; remove it or re-run with --force", res.OutputDir))
		}
		return &exitError{code: pipeline.ExitCode(err, nil)}
	}

	if out.Mode() != ui.ModeJSON {
		out.PrintSummary(res.Progress)
	}
	if err := out.PrintReport(res.Report); err != nil {
		return fail(out, err)
	}
	if res.IndexPath != "" {
		out.Info("Index written to " + res.IndexPath)
	}
	out.Success("Documentation extracted to " + res.OutputDir)

	if code := pipeline.ExitCode(nil, res.Report); code != pipeline.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// loadConfig reads the configuration file and applies the flags the user set.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := o.overrides(cmd).Apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) overrides(cmd *cobra.Command) config.Overrides {
	changed := cmd.Flags().Changed
	var ov config.Overrides
	if changed("formats") {
		ov.Formats = &o.formats
	}
	if changed("exclude") {
		ov.Exclude = o.exclude
	}
	if changed("max-size") {
		ov.MaxSizeMB = &o.maxSizeMB
	}
	if changed("output") {
		ov.OutputDir = &o.output
	}
	if changed("name") {
		ov.OutputName = &o.name
	}
	if changed("preserve-structure") {
		ov.PreserveStructure = &o.preserve
	}
	if changed("timeout") {
		ov.TimeoutSeconds = &o.timeout
	}
	if changed("branch") {
		ov.Branch = &o.branch
	}
	if changed("force") {
		ov.Force = &o.force
	}
	if changed("no-index") {
		ov.NoIndex = &o.noIndex
	}
	if changed("html-index") {
		ov.HTMLIndex = &o.htmlIndex
	}
	if changed("insecure-skip-tls-verify") {
		ov.InsecureSkipTLSVerify = &o.insecure
	}
	return ov
}

func (o *options) formatter(stdout, stderr io.Writer) *ui.Formatter {
	return ui.New(stdout, stderr, ui.ParseMode(o.outputFormat), o.verbose, o.quiet)
}

func (o *options) logger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = slog.LevelWarn
	}
	return logging.New(stderr, logging.LevelFor(level, o.verbose, o.quiet), cfg.Logging.Format)
}

// fail reports err and converts it to an exit code.
func fail(out *ui.Formatter, err error) error {
	out.PrintError(err)
	return &exitError{code: pipeline.ExitCode(err, nil)}
}
