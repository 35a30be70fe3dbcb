// Package sessiontest renders service log blocks for tests.
package sessiontest

import (
	"fmt"
	"strings"
	"time"
)

// AppSessionBlock renders an app-session block, trigger line included.
func AppSessionBlock(pkg, title, state string, started time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 14 INFO AppSessionModule: sessions updated:\n", started.Format("2006-01-02 15:04:05.000"))
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  session_id=%d\n", started.Unix())
	fmt.Fprintf(&b, "  package_name=%s\n", pkg)
	fmt.Fprintf(&b, "  title=%s\n", title)
	fmt.Fprintf(&b, "  started_timestamp=%s\n", started.Format("1/2/2006 3:04:05 PM -07:00"))
	fmt.Fprintf(&b, "  state=%s={ }\n", state)
	b.WriteString("}\n")
	return b.String()
}

// EmulatorBlock renders an emulator-state block. The stamp is written in
// the emulator's own "yyMMdd HH:mm:ss.fff+H" layout using a +1 offset.
func EmulatorBlock(tasks []string, foreground, status string, at time.Time) string {
	local := at.In(time.FixedZone("", 3600))
	var b strings.Builder
	fmt.Fprintf(&b, "%s+1 39 INFO  EmulatorStateLogger: Emulator state updated:\n", local.Format("060102 15:04:05.000"))
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  status=%s - lastKnownHealthStatus=No ERROR; emulator is healthy\n", status)
	b.WriteString("  displays=[\n")
	for i, task := range tasks {
		fmt.Fprintf(&b, "    { display_id=%d, task=%s, foreground=%t },\n", i, task, i == 0)
	}
	b.WriteString("  ]\n")
	fmt.Fprintf(&b, "  { foreground_task=%s }\n", foreground)
	b.WriteString("}\n")
	return b.String()
}

// Noise returns n unrelated log lines.
func Noise(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "2024-09-24 13:00:%02d.000 7 INFO ServiceHost: heartbeat seq=%d\n", i%60, i)
	}
	return b.String()
}

// Game is a title/package pair used when generating logs.
type Game struct {
	Title   string
	Package string
}

var Games = []Game{
	{"Defense Derby", "com.krafton.defensederby"},
	{"Arknights", "com.YoStarEN.Arknights"},
	{"Cookie Run: Kingdom", "com.devsisters.ck"},
	{"Summoners War", "com.com2us.smon.normal.freefull.google.kr.android.google.global.normal"},
	{"Genshin Impact", "com.miHoYo.GenshinImpact"},
}

var cycle = []string{"Starting", "Running", "Stopping", "Stopped"}

// ReleaseLog renders a release-dialect log with exactly count valid blocks.
// Valid blocks cycle Starting, Running, Stopping, Stopped through Games,
// beginning with Defense Derby. The final block is always Arknights Stopped.
// System package blocks and noise lines are interleaved.
func ReleaseLog(count int) string {
	base := time.Date(2024, 9, 24, 13, 5, 2, 0, time.UTC)
	var b strings.Builder
	b.WriteString(Noise(3))
	for i := 0; i < count; i++ {
		game := Games[(i/len(cycle))%len(Games)]
		state := cycle[i%len(cycle)]
		if i == count-1 {
			game, state = Games[1], "Stopped"
		}
		started := base.Add(time.Duration(i) * time.Minute)
		b.WriteString(AppSessionBlock(game.Package, game.Title, state, started))
		if i%7 == 3 {
			b.WriteString(AppSessionBlock("com.android.settings", "Settings", "Running", started))
		}
		if i%5 == 0 {
			b.WriteString(Noise(2))
		}
	}
	return b.String()
}

// DeveloperLog renders an emulator-dialect log with exactly count valid
// blocks, the last of which is Arknights Stopped.
func DeveloperLog(count int) string {
	base := time.Date(2025, 2, 7, 17, 0, 4, 30*int(time.Millisecond), time.UTC)
	var b strings.Builder
	b.WriteString(Noise(2))
	for i := 0; i < count; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		game := Games[(i/2)%len(Games)]
		if i == count-1 {
			game = Games[1]
		}
		tasks := []string{game.Package, "com.android.launcher3"}
		if i%2 == 0 && i != count-1 {
			b.WriteString(EmulatorBlock(tasks, game.Package, "Running", at))
		} else {
			b.WriteString(EmulatorBlock(tasks, "com.android.launcher3", "Running", at))
		}
		if i%4 == 1 {
			b.WriteString(EmulatorBlock([]string{"com.android.launcher3"}, "com.android.launcher3", "Running", at))
		}
		if i%6 == 0 {
			b.WriteString(Noise(1))
		}
	}
	return b.String()
}
