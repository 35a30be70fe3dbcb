package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/five82/playpresence/internal/session/sessiontest"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
		ok   bool
	}{
		{"Running", StateRunning, true},
		{"running", StateRunning, true},
		{" Stopped\r", StateStopped, true},
		{"STARTING", StateStarting, true},
		{"None", StateNone, true},
		{"Paused", StateNone, false},
		{"", StateNone, false},
	}
	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseState(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if got != tt.want {
			t.Fatalf("ParseState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAppSession(t *testing.T) {
	started := time.Date(2024, 9, 24, 13, 5, 2, 0, time.UTC)
	blob := sessiontest.AppSessionBlock("com.YoStarEN.Arknights", "Arknights", "Running", started)

	rec, err := Parse(DialectAppSession, blob)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if rec.PackageName != "com.YoStarEN.Arknights" || rec.Title != "Arknights" {
		t.Fatalf("record = %+v, want Arknights", rec)
	}
	if rec.State != StateRunning {
		t.Fatalf("State = %v, want Running", rec.State)
	}
	if !rec.StartTime.Equal(started) {
		t.Fatalf("StartTime = %v, want %v", rec.StartTime, started)
	}
	if rec.RawText != blob {
		t.Fatalf("RawText not retained")
	}
}

func TestParseAppSession_CRLF(t *testing.T) {
	started := time.Date(2024, 9, 24, 13, 5, 2, 0, time.UTC)
	blob := strings.ReplaceAll(sessiontest.AppSessionBlock("com.krafton.defensederby", "Defense Derby", "Stopping", started), "\n", "\r\n")

	rec, err := Parse(DialectAppSession, blob)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if rec.Title != "Defense Derby" || rec.State != StateStopping {
		t.Fatalf("record = %+v, want Defense Derby Stopping", rec)
	}
}

func TestParseAppSession_Rejections(t *testing.T) {
	started := time.Date(2024, 9, 24, 13, 5, 2, 0, time.UTC)
	valid := sessiontest.AppSessionBlock("com.YoStarEN.Arknights", "Arknights", "Running", started)

	tests := []struct {
		name string
		blob string
		want error
	}{
		{"system package", sessiontest.AppSessionBlock("com.android.settings", "Settings", "Running", started), ErrSystemPackage},
		{"google package", sessiontest.AppSessionBlock("com.google.android.gms", "Services", "Running", started), ErrSystemPackage},
		{"missing title", strings.Replace(valid, "  title=Arknights\n", "", 1), ErrMalformed},
		{"missing package", strings.Replace(valid, "package_name=", "pkg=", 1), ErrMalformed},
		{"missing state", strings.Replace(valid, "state=Running={ }", "phase", 1), ErrMalformed},
		{"bad state", strings.Replace(valid, "state=Running=", "state=Sleeping=", 1), ErrUnparsable},
		{"bad timestamp", strings.Replace(valid, "started_timestamp=9/24/2024", "started_timestamp=24.9.2024", 1), ErrUnparsable},
		{"unterminated", "AppSessionModule: sessions updated:\n{\n  package_name=com.YoStarEN.Arknights\n", ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(DialectAppSession, tt.blob)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseAppSession_StartingSkipsTimestamp(t *testing.T) {
	started := time.Date(2024, 9, 24, 13, 5, 2, 0, time.UTC)
	blob := sessiontest.AppSessionBlock("com.krafton.defensederby", "Defense Derby", "Starting", started)
	blob = strings.Replace(blob, "started_timestamp=9/24/2024 1:05:02 PM +00:00", "started_timestamp=", 1)

	rec, err := Parse(DialectAppSession, blob)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if rec.State != StateStarting || !rec.StartTime.IsZero() {
		t.Fatalf("record = %+v, want Starting with zero start time", rec)
	}
}

func TestParseEmulator(t *testing.T) {
	at := time.Date(2025, 2, 7, 17, 0, 4, 30*int(time.Millisecond), time.UTC)
	arknights := "com.YoStarEN.Arknights"
	launcher := "com.android.launcher3"

	tests := []struct {
		name       string
		tasks      []string
		foreground string
		status     string
		wantPkg    string
		wantState  State
	}{
		{"foreground app", []string{arknights}, arknights, "Running", arknights, StateRunning},
		{"prefers non-system task", []string{"com.android.settings", arknights}, "com.google.android.gms", "Running", arknights, StateRunning},
		{"launcher foreground stops", []string{launcher, arknights}, launcher, "Running", arknights, StateStopped},
		{"launcher task starts", []string{launcher}, arknights, "Running", arknights, StateStarting},
		{"status stopping", []string{arknights}, arknights, "Stopping", arknights, StateStopping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(DialectEmulator, sessiontest.EmulatorBlock(tt.tasks, tt.foreground, tt.status, at))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if rec.PackageName != tt.wantPkg || rec.State != tt.wantState {
				t.Fatalf("record = %s/%v, want %s/%v", rec.PackageName, rec.State, tt.wantPkg, tt.wantState)
			}
			if rec.Title != "Arknights" {
				t.Fatalf("Title = %q, want Arknights", rec.Title)
			}
			if tt.wantState == StateStarting {
				if !rec.StartTime.IsZero() {
					t.Fatalf("StartTime = %v, want zero for Starting", rec.StartTime)
				}
			} else if !rec.StartTime.Equal(at) {
				t.Fatalf("StartTime = %v, want %v", rec.StartTime, at)
			}
		})
	}
}

func TestParseEmulator_Rejections(t *testing.T) {
	at := time.Date(2025, 2, 7, 17, 0, 4, 0, time.UTC)
	valid := sessiontest.EmulatorBlock([]string{"com.YoStarEN.Arknights"}, "com.YoStarEN.Arknights", "Running", at)

	tests := []struct {
		name string
		blob string
		want error
	}{
		{"only launcher", sessiontest.EmulatorBlock([]string{"com.android.launcher3"}, "com.android.launcher3", "Running", at), ErrSystemPackage},
		{"system everywhere", sessiontest.EmulatorBlock([]string{"com.android.settings"}, "com.google.android.gms", "Running", at), ErrSystemPackage},
		{"no tasks", strings.Replace(valid, "task=com.YoStarEN.Arknights, ", "", 1), ErrMalformed},
		{"no foreground", strings.Replace(valid, "foreground_task=", "background=", 1), ErrMalformed},
		{"no status", strings.Replace(valid, "status=Running", "health=Running", 1), ErrMalformed},
		{"bad status", strings.Replace(valid, "status=Running", "status=Exploded", 1), ErrUnparsable},
		{"no timestamp", valid[strings.Index(valid, "\n")+1:], ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(DialectEmulator, tt.blob)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseEmulatorTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"250207 18:00:04.030+1", time.Date(2025, 2, 7, 17, 0, 4, 30*int(time.Millisecond), time.UTC)},
		{"250207 08:00:00.000-5", time.Date(2025, 2, 7, 13, 0, 0, 0, time.UTC)},
		{"241231 23:30:00.500+10", time.Date(2024, 12, 31, 13, 30, 0, 500*int(time.Millisecond), time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseEmulatorTime(tt.in)
		if err != nil {
			t.Fatalf("parseEmulatorTime(%q) error: %v", tt.in, err)
		}
		if !got.Equal(tt.want) || got.Location() != time.UTC {
			t.Fatalf("parseEmulatorTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parseEmulatorTime("250207 18:00:04.030"); err == nil {
		t.Fatalf("parseEmulatorTime without offset returned nil error")
	}
}

// Every record built from a system package block is rejected, for both dialects.
func TestParse_SystemPackagesNeverBuilt(t *testing.T) {
	at := time.Date(2025, 2, 7, 17, 0, 4, 0, time.UTC)
	for _, pkg := range []string{"com.android.settings", "com.android.launcher3", "com.google.android.play.games", "com.googlex"} {
		if _, err := Parse(DialectAppSession, sessiontest.AppSessionBlock(pkg, "x", "Running", at)); err == nil {
			t.Fatalf("app-session %s built a record", pkg)
		}
		if _, err := Parse(DialectEmulator, sessiontest.EmulatorBlock([]string{pkg}, pkg, "Running", at)); err == nil {
			t.Fatalf("emulator %s built a record", pkg)
		}
	}
}

func TestParse_StartingHasZeroStartTime(t *testing.T) {
	at := time.Date(2024, 9, 24, 13, 5, 2, 0, time.UTC)
	blobs := map[Dialect]string{
		DialectAppSession: sessiontest.AppSessionBlock("com.krafton.defensederby", "Defense Derby", "Starting", at),
		DialectEmulator:   sessiontest.EmulatorBlock([]string{"com.krafton.defensederby"}, "com.krafton.defensederby", "Starting", at),
	}
	for d, blob := range blobs {
		rec, err := Parse(d, blob)
		if err != nil {
			t.Fatalf("%v: Parse returned error: %v", d, err)
		}
		if rec.State != StateStarting || !rec.StartTime.IsZero() {
			t.Fatalf("%v: record = %+v, want Starting with zero time", d, rec)
		}
	}
}

func TestDetectTrigger(t *testing.T) {
	if d, ok := DetectTrigger("2024 INFO AppSessionModule: sessions updated:"); !ok || d != DialectAppSession {
		t.Fatalf("DetectTrigger app-session = %v %v", d, ok)
	}
	if d, ok := DetectTrigger("250207 INFO  EmulatorStateLogger: Emulator state updated:"); !ok || d != DialectEmulator {
		t.Fatalf("DetectTrigger emulator = %v %v", d, ok)
	}
	if _, ok := DetectTrigger("heartbeat"); ok {
		t.Fatalf("DetectTrigger matched unrelated line")
	}
}

func TestRecordWithTitle(t *testing.T) {
	rec := Record{PackageName: "com.YoStarEN.Arknights", Title: "Arknights"}
	if got := rec.WithTitle("  "); got.Title != "Arknights" {
		t.Fatalf("blank title replaced original: %q", got.Title)
	}
	got := rec.WithTitle("Arknights: Endfield")
	if got.Title != "Arknights: Endfield" || rec.Title != "Arknights" {
		t.Fatalf("WithTitle = %q, original = %q", got.Title, rec.Title)
	}
}
