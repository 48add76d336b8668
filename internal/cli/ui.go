package cli

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/cratepack/cratepack/pkg/packager"
)

// Color palette.
var (
	colorCyan   = lipgloss.Color("36")  // primary actions
	colorGreen  = lipgloss.Color("35")  // success
	colorYellow = lipgloss.Color("220") // warnings
	colorRed    = lipgloss.Color("167") // errors
	colorWhite  = lipgloss.Color("255") // values
	colorGray   = lipgloss.Color("245") // secondary text
	colorDim    = lipgloss.Color("240") // muted text
)

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints an indented detail line.
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// printReport prints the outcome of a packaging walk.
func printReport(r *packager.Report) {
	fmt.Println(StyleTitle.Render("Packaging run ") + StyleDim.Render(r.ID))

	for _, b := range r.Built {
		printSuccess("%s %s", b.Crate, StyleHighlight.Render(b.Version))
		printFile(b.Path)
	}
	for _, f := range r.Failed {
		if f.Version != "" {
			printError("%s %s", f.Crate, f.Version)
		} else {
			printError("%s", f.Crate)
		}
		for _, e := range f.Errors {
			printDetail("%s", e)
		}
	}
	for _, s := range r.Skipped {
		printDetail("skipped %s", s)
	}
	if len(r.Aliases) > 0 {
		names := make([]string, 0, len(r.Aliases))
		for n := range r.Aliases {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			printDetail("%s resolved as %s", n, r.Aliases[n])
		}
	}

	fmt.Println()
	line := fmt.Sprintf("%d built", len(r.Built))
	if n := len(r.Failed); n > 0 {
		line += StyleWarning.Render(fmt.Sprintf(" · %d failed", n))
	}
	if n := len(r.Skipped); n > 0 {
		line += StyleDim.Render(fmt.Sprintf(" · %d skipped", n))
	}
	fmt.Println("  " + line)
}
