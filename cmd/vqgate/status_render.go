package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// statusColors maps verdict and pass/fail labels to terminal colors.
var statusColors = map[string]text.Colors{
	"PASS":     {text.FgGreen, text.Bold},
	"IMPROVED": {text.FgGreen},
	"DEGRADED": {text.FgYellow, text.Bold},
	"UNSTABLE": {text.FgYellow},
	"FAIL":     {text.FgRed, text.Bold},
	"ERROR":    {text.FgRed},
	"passed":   {text.FgGreen},
	"failed":   {text.FgRed},
	"n/a":      {text.FgHiBlack},
}

func colorStatus(label string, colorize bool) string {
	if !colorize {
		return label
	}
	if colors, ok := statusColors[label]; ok {
		return colors.Sprint(label)
	}
	return label
}

func passLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = text.FgBlue.Sprint(line)
		rule = text.FgBlue.Sprint(rule)
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func formatSigned(v float64) string {
	return fmt.Sprintf("%+.3f", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}
