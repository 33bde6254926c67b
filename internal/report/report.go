// Package report renders operator-facing console output for za and zx.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"

	"github.com/za7z/za7z/internal/credential"
	"github.com/za7z/za7z/internal/model"
)

// Printer writes styled messages to a single writer.
type Printer struct {
	out   io.Writer
	color bool
	now   func() time.Time
}

// New creates a printer. With noColor set all output is plain text.
func New(out io.Writer, noColor bool) *Printer {
	return &Printer{out: out, color: !noColor, now: time.Now}
}

func (p *Printer) paint(c color.Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

func (p *Printer) line(c color.Color, format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(c, fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.line(color.FgYellow, "Warning: "+format, args...)
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	p.line(color.FgGreen, "✓ "+format, args...)
}

// Failure prints a per-item failure line.
func (p *Printer) Failure(format string, args ...any) {
	p.line(color.FgRed, "✗ "+format, args...)
}

// Info prints a neutral informational line.
func (p *Printer) Info(format string, args ...any) {
	p.line(color.FgCyan, format, args...)
}

// Detail prints low-priority output such as tool diagnostics.
func (p *Printer) Detail(format string, args ...any) {
	p.line(color.FgDarkGray, format, args...)
}

// Plain prints an unstyled line.
func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Listing prints the resolved file set before confirmation. When deleting is
// set the sources are listed again as files that will be removed.
func (p *Printer) Listing(mode model.Mode, files []string, deleting bool) {
	verb := "compress"
	if mode == model.ModeExtract {
		verb = "extract"
	}
	p.line(color.FgGreen, "Found %d file(s) to %s:", len(files), verb)
	for i, f := range files {
		fmt.Fprintf(p.out, "  %d. %s (%s)\n", i+1, f, describe(f))
	}
	if !deleting {
		return
	}
	fmt.Fprintln(p.out)
	p.line(color.FgYellow, "WARNING: Source files will be deleted after a successful %s!", verb)
	p.line(color.FgRed, "Files that will be deleted:")
	for i, f := range files {
		p.line(color.FgRed, "  %d. %s", i+1, f)
	}
	fmt.Fprintln(p.out)
}

// ConfirmQuestion returns the batch confirmation prompt.
func ConfirmQuestion(mode model.Mode, n int, deleting bool) string {
	verb := "compress"
	if mode == model.ModeExtract {
		verb = "extract"
	}
	if deleting {
		return fmt.Sprintf("Do you want to %s these %d file(s) and DELETE the source files? (y/n): ", verb, n)
	}
	return fmt.Sprintf("Do you want to %s these %d file(s)? (y/n): ", verb, n)
}

// Skipped reports archive files removed from a compress run.
func (p *Printer) Skipped(files []string) {
	if len(files) == 0 {
		return
	}
	p.line(color.FgYellow, "Skipped %d archive file(s):", len(files))
	for _, f := range files {
		fmt.Fprintf(p.out, "  - %s (%s)\n", f, describe(f))
	}
}

// Unchanged reports sources whose archive already exists with a similar size.
func (p *Printer) Unchanged(files []string, ext string) {
	if len(files) == 0 {
		return
	}
	p.line(color.FgYellow, "Skipped %d unchanged file(s) with an existing archive:", len(files))
	for _, f := range files {
		fmt.Fprintf(p.out, "  - %s (%s, archive %s)\n", f, describe(f), describe(f+ext))
	}
}

// Invalid reports patterns that could not be parsed.
func (p *Printer) Invalid(patterns []string) {
	for _, pat := range patterns {
		p.Warn("invalid pattern ignored: %s", pat)
	}
}

// Progress announces item i (zero-based) of total.
func (p *Printer) Progress(i, total int, mode model.Mode, input string) {
	p.line(color.FgBlue, "[%d/%d] %s: %s", i+1, total, mode.Verb(), input)
}

// Deleted reports a removed source.
func (p *Printer) Deleted(path string) {
	p.line(color.FgYellow, "  Deleted source: %s", path)
}

// Summary prints the end-of-batch counters.
func (p *Printer) Summary(s *model.BatchSummary) {
	c := color.FgGreen
	if s.Failed() > 0 || s.DeleteWarnings() > 0 {
		c = color.FgYellow
	}
	parts := []string{
		fmt.Sprintf("%d succeeded", s.Succeeded()),
		fmt.Sprintf("%d failed", s.Failed()),
	}
	if s.Deleted() > 0 || s.DeleteWarnings() > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", s.Deleted()))
	}
	if w := s.DeleteWarnings(); w > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", w))
	}
	title := "Compression completed"
	if s.Mode == model.ModeExtract {
		title = "Extraction completed"
	}
	p.line(c, "%s: %s", title, strings.Join(parts, ", "))
}

// PasswordInfo describes the saved credential without revealing it.
func (p *Printer) PasswordInfo(info credential.Info) {
	p.Info("Password storage:")
	fmt.Fprintf(p.out, "  Location:  %s\n", info.Path)
	fmt.Fprintf(p.out, "  Machine:   %s\n", info.KeyID)
	switch {
	case !info.Exists:
		fmt.Fprintf(p.out, "  Status:    %s\n", p.paint(color.FgYellow, "no saved password"))
	case !info.Decryptable:
		fmt.Fprintf(p.out, "  Status:    %s\n", p.paint(color.FgRed, "saved, but cannot be decrypted on this machine"))
		fmt.Fprintf(p.out, "  Saved:     %s\n", humanize.RelTime(info.ModifiedAt, p.now(), "ago", "from now"))
	default:
		fmt.Fprintf(p.out, "  Status:    %s\n", p.paint(color.FgGreen, "saved"))
		fmt.Fprintf(p.out, "  Saved:     %s\n", humanize.RelTime(info.ModifiedAt, p.now(), "ago", "from now"))
	}
}

// History prints recent runs as a table.
func (p *Printer) History(runs []*model.RunEntry) {
	if len(runs) == 0 {
		p.Info("No runs recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODE\tSTATE\tITEMS\tOK\tFAILED\tDELETED\tTARGETS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			humanize.RelTime(r.StartedAt, p.now(), "ago", "from now"),
			r.Mode, r.State, r.Total, r.Succeeded, r.Failed, r.Deleted, r.Targets)
	}
	tw.Flush()
}

// describe returns a short size description of path.
func describe(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	if fi.IsDir() {
		return "directory"
	}
	return humanize.Bytes(uint64(fi.Size()))
}
