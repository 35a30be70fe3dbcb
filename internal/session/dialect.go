package session

import (
	"strings"
	"time"
)

// Dialect identifies which log layout a block was written in.
type Dialect int

const (
	DialectAppSession Dialect = iota + 1
	DialectEmulator
)

const (
	appSessionTrigger = "AppSessionModule: sessions updated:"
	emulatorTrigger   = "Emulator state updated:"
)

func (d Dialect) String() string {
	switch d {
	case DialectAppSession:
		return "app-session"
	case DialectEmulator:
		return "emulator"
	default:
		return "unknown"
	}
}

// SettleDelay is how long a tailing reader waits for the writer to finish a
// block of this dialect before looking again.
func (d Dialect) SettleDelay() time.Duration {
	if d == DialectEmulator {
		return 100 * time.Millisecond
	}
	return time.Second
}

// DetectTrigger returns the dialect whose trigger phrase appears in line.
func DetectTrigger(line string) (Dialect, bool) {
	switch {
	case strings.Contains(line, appSessionTrigger):
		return DialectAppSession, true
	case strings.Contains(line, emulatorTrigger):
		return DialectEmulator, true
	default:
		return 0, false
	}
}
