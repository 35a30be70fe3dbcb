package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/playpresence/internal/logtail"
)

// renderSessionPanel renders the current session, the published presence and
// one row per log reader.
func (m Model) renderSessionPanel() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)
	snap := m.snapshot

	label := func(s string) string {
		return bg.Render(fmt.Sprintf("%-10s", s), styles.MutedText)
	}

	var lines []string

	if !snap.HasSession {
		lines = append(lines,
			label("Session")+bg.Render("No app session seen yet", styles.FaintText),
			label("Package")+bg.Render("-", styles.FaintText),
		)
	} else {
		rec := snap.Session
		state := rec.State.String()
		line := label("Session") + bg.Render(rec.Title, styles.Text.Bold(true)) + bg.Space() +
			styles.StatusStyle(state).Render(state)
		if !rec.StartTime.IsZero() {
			line += bg.Spaces(2) + bg.Render(fmt.Sprintf("since %s (%s)",
				rec.StartTime.In(time.Local).Format("15:04:05"),
				humanizeDuration(time.Since(rec.StartTime))), styles.MutedText)
		}
		lines = append(lines, line)

		pkg := label("Package") + bg.Render(rec.PackageName, styles.AccentText)
		if snap.SessionSource != "" {
			pkg += bg.Spaces(2) + bg.Render("from "+snap.SessionSource+" log", styles.FaintText)
		}
		lines = append(lines, pkg)
	}

	lines = append(lines, label("Presence")+m.renderPresence(styles, bg))
	lines = append(lines, "")
	lines = append(lines, label("Readers")+bg.Render(
		fmt.Sprintf("%-12s %-10s %8s %-10s", "phase", "offset", "events", "last"), styles.FaintText))
	for _, rs := range snap.Readers {
		lines = append(lines, m.renderReaderRow(rs, styles, bg))
	}
	if len(snap.Readers) == 0 {
		lines = append(lines, bg.Spaces(10)+bg.Render("No readers", styles.FaintText))
	}
	lines = append(lines, "")

	for i, line := range lines {
		lines[i] = bg.FillLine(" "+line, m.width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPresence(styles Styles, bg BgStyle) string {
	p := m.snapshot.Presence
	switch {
	case !m.presenceEnabled():
		return bg.Render("Disabled", styles.WarningText) + bg.Space() +
			bg.Render("(press p to enable)", styles.FaintText)
	case !p.Active:
		return bg.Render("Idle", styles.FaintText)
	}
	out := bg.Render(p.Title, styles.SuccessText)
	if p.Official {
		out += bg.Spaces(2) + bg.Render("official app "+p.ApplicationID, styles.InfoText)
	}
	if !p.Since.IsZero() {
		out += bg.Spaces(2) + bg.Render("updated "+humanizeDuration(time.Since(p.Since))+" ago", styles.FaintText)
	}
	return out
}

func (m Model) renderReaderRow(rs logtail.Status, styles Styles, bg BgStyle) string {
	phase := rs.Phase.String()
	badge := styles.StatusStyle(phase).Render(fmt.Sprintf("%-10s", phase))

	last := "-"
	if !rs.LastEvent.IsZero() {
		last = rs.LastEvent.In(time.Local).Format("15:04:05")
	}

	row := bg.Render(fmt.Sprintf("%-10s", truncate(rs.Name, 10)), styles.Text) +
		badge + bg.Space() +
		bg.Render(fmt.Sprintf("%-10d %8d %-10s", rs.Offset, rs.Events, last), styles.Text)

	switch {
	case rs.LastError != nil:
		row += bg.Space() + bg.Render(truncate(rs.LastError.Error(), 60), styles.DangerText)
	case m.width >= LayoutPathWidth && rs.Path != "":
		row += bg.Space() + bg.Render(truncateMiddle(rs.Path, 60), styles.FaintText)
	}
	return row
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
