package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"synthfilter/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const statusLabelWidth = 18

var statusColors = map[statusKind]text.Colors{
	statusInfo:  {text.FgBlue},
	statusOK:    {text.FgGreen},
	statusWarn:  {text.FgYellow},
	statusError: {text.FgRed},
}

func (k statusKind) String() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// renderStatusLine prints one "label: [KIND] message" line of the session
// status view.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", kind)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return statusColors[kind].Sprint(line)
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		c := statusColors[statusInfo]
		return []string{c.Sprint(line), c.Sprint(rule)}
	}
	return []string{line, rule}
}

// statusKindForResult maps a preflight result to its severity. A failed
// optional check only warns: the filter runs without it.
func statusKindForResult(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Optional:
		return statusWarn
	default:
		return statusError
	}
}

// renderPreflight lays results out as a table with a pass/warn/fail summary.
func renderPreflight(results []preflight.Result, colorize bool) string {
	view := tableView{headers: []string{"Check", "Result", "Required", "Detail"}}
	counts := map[statusKind]int{}
	for _, r := range results {
		kind := statusKindForResult(r)
		counts[kind]++
		view.rows = append(view.rows, []string{r.Name, kind.String(), yesNo(!r.Optional), r.Detail})
		var colors text.Colors
		if colorize && kind != statusOK {
			colors = statusColors[kind]
		}
		view.rowColors = append(view.rowColors, colors)
	}
	view.footer = fmt.Sprintf("%d passed, %d warnings, %d failed", counts[statusOK], counts[statusWarn], counts[statusError])
	return view.render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
