package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Printer writes user-facing progress output. Color is enabled only when the
// destination is a terminal, so piped output stays clean.
type Printer struct {
	out     io.Writer
	quiet   bool
	step    *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	heading *color.Color
}

// New returns a printer writing to stdout.
func New(quiet bool) *Printer {
	p := &Printer{
		out:     os.Stdout,
		quiet:   quiet,
		step:    color.New(color.FgCyan),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		heading: color.New(color.Bold),
	}
	if f, ok := p.out.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		color.NoColor = true
	}
	return p
}

// NewWriter returns a printer writing to w with color disabled. Used by tests.
func NewWriter(w io.Writer) *Printer {
	color.NoColor = true
	return &Printer{
		out:     w,
		step:    color.New(color.FgCyan),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		heading: color.New(color.Bold),
	}
}

// Step prints a progress step.
func (p *Printer) Step(format string, v ...interface{}) {
	if p.quiet {
		return
	}
	p.step.Fprintf(p.out, format+"\n", v...)
}

// Success prints a positive outcome.
func (p *Printer) Success(format string, v ...interface{}) {
	if p.quiet {
		return
	}
	p.good.Fprintf(p.out, format+"\n", v...)
}

// Warn prints a recoverable problem.
func (p *Printer) Warn(format string, v ...interface{}) {
	p.warn.Fprintf(p.out, format+"\n", v...)
}

// Fail prints a failure.
func (p *Printer) Fail(format string, v ...interface{}) {
	p.bad.Fprintf(p.out, format+"\n", v...)
}

// Heading prints a bold section heading.
func (p *Printer) Heading(format string, v ...interface{}) {
	if p.quiet {
		return
	}
	p.heading.Fprintf(p.out, format+"\n", v...)
}

// Plain prints without any styling.
func (p *Printer) Plain(format string, v ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", v...)
}

// Diff prints a unified-style diff body, coloring removals red and
// additions green.
func (p *Printer) Diff(diff string) {
	if p.quiet {
		return
	}
	lines := splitLines(diff)
	for _, line := range lines {
		switch {
		case len(line) > 0 && line[0] == '-':
			p.bad.Fprintln(p.out, line)
		case len(line) > 0 && line[0] == '+':
			p.good.Fprintln(p.out, line)
		default:
			fmt.Fprintln(p.out, line)
		}
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
