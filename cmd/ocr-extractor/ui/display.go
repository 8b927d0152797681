package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Success prints a green success line to stderr.
func Success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stderr, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error prints a red error line to stderr.
func Error(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning line to stderr.
func Warning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info prints a cyan informational line to stderr.
func Info(format string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(os.Stderr, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Section prints an underlined header to stderr.
func Section(title string) {
	color.New(color.Bold).Fprintf(os.Stderr, "\n%s\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("=", len(title)))
}

// Text writes extracted text to stdout, ending with a newline.
func Text(s string) {
	fmt.Fprint(os.Stdout, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(os.Stdout)
	}
}
