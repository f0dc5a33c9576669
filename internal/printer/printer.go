// Package printer formats operator-facing CLI output. Colors can be
// disabled with the NO_COLOR environment variable.
package printer

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to a TTY.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a success message in green with a checkmark prefix.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an informational message in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow.
func Warning(format string, a ...any) {
	yellow.Printf("⚠ %s", fmt.Sprintf(format, a...))
}

// Step prints a step message with emphasis, used in multi-step operations.
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with optional suggestions to stderr and
// returns a plain error for Cobra, which is silenced so the message is not
// printed twice.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  - %s\n", suggestion)
		}
	}
	return fmt.Errorf("%s", title)
}
