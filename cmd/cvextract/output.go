package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/verify"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr is where human-facing status lines go; CV JSON goes to stdout.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorCyan, "→ "+msg))
}

// printWarnings reports extraction warnings, prefixed with the input name
// when there is one.
func printWarnings(input string, warnings []extract.Warning) {
	for _, w := range warnings {
		if input == "" {
			printWarning("%s", w)
		} else {
			printWarning("%s: %s", input, w)
		}
	}
}

// printIssues reports verification issues for path and returns how many were
// errors.
func printIssues(path string, issues []verify.Issue) int {
	errs := 0
	for _, is := range issues {
		if is.Severity == verify.SeverityError {
			errs++
			printError("%s: %s", path, is)
		} else {
			printWarning("%s: %s", path, is)
		}
	}
	return errs
}
