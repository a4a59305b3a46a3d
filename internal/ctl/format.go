// Package ctl implements the client-side commands for potholectl.
// It talks to a running potholed over HTTP and WebSocket and renders the results to the terminal.
package ctl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

// colorEnabled reports whether output goes to a terminal. When output is
// piped or redirected, ANSI escape codes are suppressed.
func colorEnabled() bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// stateColor returns the ANSI color code appropriate for a daemon or
// detector state.
func stateColor(state string) string {
	switch state {
	case "IDLE", "idle":
		return green
	case "SCANNING", "awaiting_baseline":
		return blue
	case "in_pothole":
		return red
	case "resolved":
		return cyan
	case "PAUSED":
		return yellow
	case "BOOTING":
		return dim
	default:
		return white
	}
}

// tierColor maps a safety tier to a color.
func tierColor(tier string) string {
	switch tier {
	case "dangerous":
		return red
	case "caution":
		return yellow
	case "safe":
		return green
	default:
		return dim
	}
}

// colorize wraps text with an ANSI color sequence.
// Returns the text unchanged when color output is disabled.
func colorize(color, text string) string {
	if !colorEnabled() {
		return text
	}
	return color + text + reset
}

// header returns a bold section header, or plain text when color is off.
func header(title string) string {
	return colorize(bold, title)
}

// rule prints a dim horizontal line.
func rule(width int) {
	fmt.Fprintln(out, colorize(dim, "  "+strings.Repeat("─", width)))
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders a time.Duration as a compact human string like
// "2h 14m 8s" or "45s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatBytes renders a byte count as a human-readable string.
func formatBytes(b uint64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatTime renders an RFC 3339 timestamp in local time.
func formatTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// textTable is a borderless column layout for terminal listings.
type textTable struct {
	indent string
	w      table.Writer
	cols   []table.ColumnConfig
}

func newTable(indent string, headers ...string) *textTable {
	w := table.NewWriter()
	style := table.StyleLight
	style.Options.DrawBorder = false
	style.Options.SeparateColumns = false
	style.Options.SeparateRows = false
	style.Format.Header = text.FormatDefault
	w.SetStyle(style)

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = colorize(dim, h)
	}
	w.AppendHeader(row)
	return &textTable{indent: indent, w: w}
}

// alignRight right-aligns the given zero-based columns.
func (t *textTable) alignRight(cols ...int) {
	for _, c := range cols {
		t.cols = append(t.cols, table.ColumnConfig{
			Number:      c + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignRight,
		})
	}
	t.w.SetColumnConfigs(t.cols)
}

func (t *textTable) row(cells ...string) {
	r := make(table.Row, len(cells))
	for i, c := range cells {
		r[i] = c
	}
	t.w.AppendRow(r)
}

// flush renders the table with every line indented.
func (t *textTable) flush() {
	for _, line := range strings.Split(t.w.Render(), "\n") {
		fmt.Fprintln(out, t.indent+line)
	}
}
