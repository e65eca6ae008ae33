// Package ui renders user-facing console output in human, JSON or plain
// form.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/extract"
	"github.com/NicabarNimble/go-repodocs/internal/progress"
	"github.com/NicabarNimble/go-repodocs/internal/report"
	"github.com/NicabarNimble/go-repodocs/internal/scanner"
)

// Mode selects the output style.
type Mode int

const (
	ModeHuman Mode = iota
	ModeJSON
	ModePlain
)

// ParseMode maps "human", "json" and "plain" to a Mode. Anything else is
// human.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return ModeJSON
	case "plain":
		return ModePlain
	default:
		return ModeHuman
	}
}

func (m Mode) String() string {
	switch m {
	case ModeJSON:
		return "json"
	case ModePlain:
		return "plain"
	default:
		return "human"
	}
}

type level string

const (
	levelSuccess level = "success"
	levelError   level = "error"
	levelWarning level = "warning"
	levelInfo    level = "info"
	levelDebug   level = "debug"
)

// Formatter writes messages, summaries and reports.
type Formatter struct {
	out     io.Writer
	errOut  io.Writer
	mode    Mode
	verbose int
	quiet   bool
	colors  bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	faint  *color.Color

	now func() time.Time
}

// New creates a Formatter. Colors are used only in human mode, when not
// quiet, and when out is a terminal.
func New(out, errOut io.Writer, mode Mode, verbose int, quiet bool) *Formatter {
	if quiet {
		verbose = 0
	}
	f := &Formatter{
		out:     out,
		errOut:  errOut,
		mode:    mode,
		verbose: verbose,
		quiet:   quiet,
		green:   color.New(color.FgGreen, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		yellow:  color.New(color.FgYellow, color.Bold),
		cyan:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
		faint:   color.New(color.Faint),
		now:     time.Now,
	}
	f.SetColors(mode == ModeHuman && !quiet && progress.IsTerminal(out))
	return f
}

// SetColors forces colored output on or off.
func (f *Formatter) SetColors(enabled bool) {
	f.colors = enabled
	for _, c := range []*color.Color{f.green, f.red, f.yellow, f.cyan, f.bold, f.faint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Mode returns the output mode.
func (f *Formatter) Mode() Mode {
	return f.mode
}

// Quiet reports whether informational output is suppressed.
func (f *Formatter) Quiet() bool {
	return f.quiet
}

// Success reports a completed step.
func (f *Formatter) Success(msg string) {
	if f.quiet {
		return
	}
	f.message(levelSuccess, msg)
}

// Error reports a failure on the error stream. It is shown even when quiet.
func (f *Formatter) Error(msg string) {
	f.message(levelError, msg)
}

// Warning reports a non-fatal problem.
func (f *Formatter) Warning(msg string) {
	if f.quiet {
		return
	}
	f.message(levelWarning, msg)
}

// Info reports progress at verbosity 1 and above.
func (f *Formatter) Info(msg string) {
	if !f.show(1) {
		return
	}
	f.message(levelInfo, msg)
}

// Debug reports detail at verbosity 2 and above.
func (f *Formatter) Debug(msg string) {
	if !f.show(2) {
		return
	}
	f.message(levelDebug, msg)
}

// StartOperation announces a stage.
func (f *Formatter) StartOperation(op string) {
	if f.quiet {
		return
	}
	switch f.mode {
	case ModeJSON:
		f.json(f.out, map[string]any{"type": "operation", "operation": op, "timestamp": f.timestamp()})
	case ModePlain:
		fmt.Fprintf(f.out, "STARTING: %s\n", op)
	default:
		fmt.Fprintf(f.out, "> %s\n", f.bold.Sprint(op))
	}
}

// Header prints a section title.
func (f *Formatter) Header(title string) {
	if f.quiet || f.mode == ModeJSON {
		return
	}
	if f.mode == ModePlain {
		fmt.Fprintf(f.out, "=== %s ===\n", title)
		return
	}
	fmt.Fprintln(f.out)
	fmt.Fprintf(f.out, "* %s\n", f.cyan.Sprint(title))
	fmt.Fprintln(f.out)
}

// Separator prints a horizontal rule.
func (f *Formatter) Separator() {
	if f.quiet || f.mode == ModeJSON {
		return
	}
	fmt.Fprintln(f.out, f.faint.Sprint(strings.Repeat("-", 60)))
}

// PrintError prints err with its user message and, when there is one, a
// suggestion for fixing it.
func (f *Formatter) PrintError(err error) {
	if err == nil {
		return
	}
	msg, hint := err.Error(), ""
	var rerr *rderrors.Error
	if rderrors.As(err, &rerr) {
		msg, hint = rerr.UserMessage(), rerr.Suggestion()
	}

	switch f.mode {
	case ModeJSON:
		obj := map[string]any{
			"type":      "error",
			"message":   msg,
			"kind":      rderrors.KindOf(err).String(),
			"retryable": rderrors.IsRetryable(err),
			"timestamp": f.timestamp(),
		}
		if hint != "" {
			obj["suggestion"] = hint
		}
		f.json(f.errOut, obj)
	case ModePlain:
		fmt.Fprintf(f.errOut, "ERROR: %s\n", msg)
		if hint != "" {
			fmt.Fprintf(f.errOut, "SUGGESTION: %s\n", hint)
		}
	default:
		fmt.Fprintf(f.errOut, "x %s\n", f.red.Sprint(msg))
		if hint != "" {
			fmt.Fprintln(f.errOut)
			fmt.Fprintf(f.errOut, "%s\n", f.cyan.Sprint("Suggestion: "+hint))
		}
	}
}

// PrintSummary prints the copy ledger once extraction is finished.
func (f *Formatter) PrintSummary(p *extract.Progress) {
	if p == nil || f.quiet {
		return
	}
	elapsed := p.Elapsed()
	switch f.mode {
	case ModeJSON:
		f.json(f.out, map[string]any{
			"type":            "summary",
			"files_processed": p.FilesProcessed,
			"bytes_processed": p.BytesProcessed,
			"duration_ms":     elapsed.Milliseconds(),
			"errors":          len(p.Errors),
			"timestamp":       f.timestamp(),
		})
	case ModePlain:
		fmt.Fprintln(f.out, "COMPLETED: Documentation extraction")
		fmt.Fprintf(f.out, "Files processed: %d\n", p.FilesProcessed)
		fmt.Fprintf(f.out, "Bytes processed: %d\n", p.BytesProcessed)
		fmt.Fprintf(f.out, "Duration: %s\n", FormatDuration(elapsed))
		if p.HasErrors() {
			fmt.Fprintf(f.out, "Errors: %d\n", len(p.Errors))
		}
	default:
		fmt.Fprintln(f.out)
		f.Separator()
		fmt.Fprintf(f.out, "%s\n\n", f.green.Sprint("Documentation extraction completed!"))
		fmt.Fprintf(f.out, "  Files processed: %s\n", f.bold.Sprint(p.FilesProcessed))
		fmt.Fprintf(f.out, "  Total size:      %s\n", f.bold.Sprint(humanize.IBytes(uint64(max(p.BytesProcessed, 0)))))
		fmt.Fprintf(f.out, "  Duration:        %s\n", f.bold.Sprint(FormatDuration(elapsed)))
		if p.HasErrors() {
			fmt.Fprintf(f.out, "  Errors:          %s\n", f.yellow.Sprint(len(p.Errors)))
		}
		f.Separator()
	}
}

// PrintReport prints the report overview. In JSON mode the full report is
// written.
func (f *Formatter) PrintReport(r *report.Report) error {
	if r == nil {
		return nil
	}
	switch f.mode {
	case ModeJSON:
		data, err := report.EncodeJSON(r)
		if err != nil {
			return err
		}
		_, err = f.out.Write(data)
		return err
	case ModePlain:
		if f.quiet {
			return nil
		}
		fmt.Fprintln(f.out, "REPORT: Extraction completed")
		fmt.Fprintf(f.out, "Repository: %s\n", r.Repository.FullName())
		fmt.Fprintf(f.out, "Files: %d\n", r.Summary.TotalFilesProcessed)
		fmt.Fprintf(f.out, "Size: %d bytes\n", r.Summary.TotalBytesProcessed)
		fmt.Fprintf(f.out, "Duration: %s\n", r.Summary.Duration)
		if r.HasErrors() {
			fmt.Fprintf(f.out, "Errors: %d\n", len(r.Errors))
		}
		return nil
	}

	if f.quiet {
		return nil
	}
	f.Header("Extraction Report")
	fmt.Fprintf(f.out, "Repository: %s\n", r.Repository.FullName())
	fmt.Fprintf(f.out, "URL: %s\n", r.Repository.URL)
	fmt.Fprintf(f.out, "Extracted at: %s\n\n", r.ExtractionTime.Format("2006-01-02 15:04 UTC"))

	if len(r.Summary.FilesByExtension) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Type", "Files"})
		for _, row := range r.ByExtension() {
			name := row.Extension
			if name == scanner.NoExtension {
				name = "no extension"
			}
			tbl.AppendRow(table.Row{name, row.Count})
		}
		fmt.Fprintln(f.out, tbl.Render())
		fmt.Fprintln(f.out)
	}

	if r.HasErrors() {
		fmt.Fprintln(f.out, f.yellow.Sprint("Issues encountered:"))
		for _, e := range r.Errors {
			fmt.Fprintf(f.out, "  - %s\n", e)
		}
	}
	return nil
}

// PrintTable prints key/value rows under a title.
func (f *Formatter) PrintTable(title string, rows [][2]string) {
	switch f.mode {
	case ModeJSON:
		obj := make(map[string]string, len(rows))
		for _, r := range rows {
			obj[r[0]] = r[1]
		}
		f.json(f.out, map[string]any{"type": "table", "title": title, "rows": obj})
	case ModePlain:
		fmt.Fprintf(f.out, "=== %s ===\n", title)
		for _, r := range rows {
			fmt.Fprintf(f.out, "%s: %s\n", r[0], r[1])
		}
	default:
		f.Header(title)
		tbl := newTable()
		for _, r := range rows {
			tbl.AppendRow(table.Row{r[0], r[1]})
		}
		fmt.Fprintln(f.out, tbl.Render())
	}
}

// FormatDuration renders d as "1m 5s", "42s" or "350ms".
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		secs := int64(d / time.Second)
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateHeader = false
	tbl.Style().Options.SeparateRows = false
	return tbl
}

func (f *Formatter) show(minVerbose int) bool {
	return !f.quiet && f.verbose >= minVerbose
}

func (f *Formatter) message(lvl level, msg string) {
	w := f.out
	if lvl == levelError {
		w = f.errOut
	}

	switch f.mode {
	case ModeJSON:
		f.json(w, map[string]any{"type": "message", "level": string(lvl), "message": msg, "timestamp": f.timestamp()})
	case ModePlain:
		fmt.Fprintf(w, "%s: %s\n", strings.ToUpper(string(lvl)), msg)
	default:
		var prefix string
		var c *color.Color
		switch lvl {
		case levelSuccess:
			prefix, c = "✓", f.green
		case levelError:
			prefix, c = "x", f.red
		case levelWarning:
			prefix, c = "!", f.yellow
		case levelInfo:
			prefix, c = "i", f.cyan
		default:
			prefix, c = " ", f.faint
		}
		fmt.Fprintf(w, "%s %s\n", prefix, c.Sprint(msg))
	}
}

func (f *Formatter) json(w io.Writer, obj map[string]any) {
	data, err := json.Marshal(obj)
	if err != nil {
		data = []byte("{}")
	}
	fmt.Fprintf(w, "%s\n", data)
}

func (f *Formatter) timestamp() string {
	return f.now().UTC().Format(time.RFC3339)
}
