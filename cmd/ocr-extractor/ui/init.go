// Package ui provides terminal output helpers for the ocr-extractor CLI.
package ui

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var verboseFlag bool

// Init applies the color and verbosity flags.
func Init(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verboseFlag
}

// IsTerminal reports whether stderr is attached to a terminal. Progress
// widgets are only drawn when it is.
func IsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
