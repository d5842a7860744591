// Package ui provides terminal output helpers for the textscan CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

var (
	out         io.Writer = os.Stdout
	errOut      io.Writer = os.Stderr
	verboseFlag bool
)

// InitUI applies the color and verbosity flags.
func InitUI(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Success prints a green check line.
func Success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error prints a red cross line to stderr.
func Error(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(errOut, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Hint prints a dimmed follow-up line to stderr.
func Hint(format string, args ...interface{}) {
	color.New(color.Faint).Fprintf(errOut, "  %s\n", fmt.Sprintf(format, args...))
}

// KeyValue prints an aligned key/value pair.
func KeyValue(key, value string) {
	fmt.Fprintf(out, "%s %s\n", color.New(color.FgCyan).Sprintf("%-10s", key+":"), value)
}

// Verbose prints only when --verbose is set.
func Verbose(format string, args ...interface{}) {
	if verboseFlag {
		color.New(color.Faint).Fprintf(errOut, "%s\n", fmt.Sprintf(format, args...))
	}
}

// Text prints raw result text, followed by a newline.
func Text(s string) {
	fmt.Fprintln(out, s)
}

// Spinner wraps a spinner for indeterminate progress.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a stderr spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = errOut
	return &Spinner{spinner: s}
}

func (s *Spinner) Start() { s.spinner.Start() }

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() { s.spinner.Stop() }
