package ui

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/playpresence/internal/logtail"
)

// zerolog field names that formatLogLine places explicitly.
var reservedLogFields = map[string]struct{}{
	"time":      {},
	"level":     {},
	"message":   {},
	"component": {},
	"error":     {},
}

type logLinesMsg struct {
	lines []string
}

type logErrorMsg struct {
	err error
}

func readLogCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Tail(path, LogTailLines)
		if err != nil {
			return logErrorMsg{err: err}
		}
		return logLinesMsg{lines: formatLogLines(lines)}
	}
}

// handleLogLines replaces the log buffer and refreshes the viewport.
func (m *Model) handleLogLines(msg logLinesMsg) {
	m.errorMsg = ""
	if slices.Equal(m.logLines, msg.lines) {
		return
	}
	m.logLines = msg.lines
	m.updateLogViewport()
}

func (m *Model) updateLogViewport() {
	m.logViewport.SetContent(m.renderLogContent())
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

// renderLogs renders the application log box and its status line.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)

	box := m.renderBox("Application Log", m.logViewport.View(), m.width, m.logViewport.Height+2)

	autoTail := "off"
	if m.follow {
		autoTail = "on"
	}
	status := fmt.Sprintf("%d lines auto-tail %s", len(m.logLines), autoTail)
	parts := []string{bg.Render(status, styles.FaintText)}
	if m.logPath != "" {
		parts = append(parts, bg.Render(truncateMiddle(m.logPath, 60), styles.AccentText))
	}
	sep := bg.Space() + bg.Render("•", styles.FaintText) + bg.Space()
	return box + "\n" + bg.FillLine(strings.Join(parts, sep), m.width)
}

// renderBox draws a rounded border with title around content.
func (m Model) renderBox(title, content string, width, height int) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Accent)).
		Bold(true)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		Width(max(width-2, 0)).
		Height(max(height-2, 0))
	rendered := box.Render(content)

	// Splice the title into the top border.
	lines := strings.SplitN(rendered, "\n", 2)
	if len(lines) == 2 && width > len(title)+6 {
		top := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Border))
		label := " " + title + " "
		fill := width - lipgloss.Width(label) - 3
		lines[0] = top.Render("╭─") + titleStyle.Render(label) + top.Render(strings.Repeat("─", fill)+"╮")
		return lines[0] + "\n" + lines[1]
	}
	return rendered
}

// renderLogContent renders the colorized log lines.
func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)
	width := m.logViewport.Width

	if len(m.logLines) == 0 {
		return bg.FillLine(bg.Render("No log entries", styles.MutedText), width)
	}

	var b strings.Builder
	for i, line := range m.logLines {
		b.WriteString(bg.FillLine(m.colorizeLine(line, styles, bg), width))
		if i < len(m.logLines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// colorizeLine styles a line produced by formatLogLine.
func (m Model) colorizeLine(line string, styles Styles, bg BgStyle) string {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 || !isLevelToken(fields[1]) {
		return bg.Render(line, styles.Text)
	}
	return bg.Render(fields[0], styles.FaintText) + bg.Space() +
		bg.Render(fields[1], levelStyle(fields[1], styles).Bold(true)) + bg.Space() +
		bg.Render(fields[2], styles.Text)
}

func levelStyle(level string, styles Styles) lipgloss.Style {
	switch level {
	case "INF":
		return styles.SuccessText
	case "WRN":
		return styles.WarningText
	case "ERR", "FTL", "PNC":
		return styles.DangerText
	case "DBG", "TRC":
		return styles.InfoText
	default:
		return styles.Text
	}
}

func isLevelToken(s string) bool {
	switch s {
	case "TRC", "DBG", "INF", "WRN", "ERR", "FTL", "PNC", "???":
		return true
	}
	return false
}

func formatLogLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, formatLogLine(line))
	}
	return out
}

// formatLogLine renders one JSON log line as
// "15:04:05 INF [component] message key=value error=...". Lines that are not
// JSON objects are returned unchanged.
func formatLogLine(line string) string {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return line
	}

	ts := "--:--:--"
	if raw, ok := fields["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = parsed.In(time.Local).Format(time.TimeOnly)
		}
	}

	var b strings.Builder
	b.WriteString(ts)
	b.WriteString(" ")
	b.WriteString(levelAbbrev(stringField(fields, "level")))
	if component := stringField(fields, "component"); component != "" {
		b.WriteString(" [")
		b.WriteString(component)
		b.WriteString("]")
	}
	if msg := stringField(fields, "message"); msg != "" {
		b.WriteString(" ")
		b.WriteString(msg)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, reserved := reservedLogFields[k]; !reserved {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	if errText := stringField(fields, "error"); errText != "" {
		fmt.Fprintf(&b, " error=%q", errText)
	}
	return b.String()
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

// levelAbbrev matches the console writer's three-letter level names.
func levelAbbrev(level string) string {
	switch strings.ToLower(level) {
	case "trace":
		return "TRC"
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "fatal":
		return "FTL"
	case "panic":
		return "PNC"
	default:
		return "???"
	}
}
