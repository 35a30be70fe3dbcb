package session

import (
	"strings"
	"time"
)

// Record is one session lifecycle report extracted from the service log.
type Record struct {
	PackageName string
	Title       string
	// StartTime is zero while the session is starting.
	StartTime time.Time
	State     State
	RawText   string
}

// WithTitle returns a copy of r carrying a corrected display title.
func (r Record) WithTitle(title string) Record {
	if t := strings.TrimSpace(title); t != "" {
		r.Title = t
	}
	return r
}

// Same reports whether two records describe the same reported transition.
func (r Record) Same(other Record) bool {
	return r.PackageName == other.PackageName &&
		r.State == other.State &&
		r.StartTime.Equal(other.StartTime)
}

var systemPackagePrefixes = []string{
	"com.android",
	"com.google",
}

const launcherPrefix = "com.android.launcher"

// IsSystemPackage reports whether name belongs to the emulator platform itself.
func IsSystemPackage(name string) bool {
	for _, prefix := range systemPackagePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isLauncher(name string) bool {
	return strings.HasPrefix(name, launcherPrefix)
}
