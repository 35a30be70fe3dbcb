package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 250207 18:00:04.030+1 39 INFO  EmulatorStateLogger: Emulator state updated:
const emulatorTimeLayout = "060102 15:04:05.000"

var (
	emuTaskRe       = regexp.MustCompile(`(?m)\btask=(.+?), `)
	emuForegroundRe = regexp.MustCompile(`(?m)foreground_task=(.+?) }`)
	emuStatusRe     = regexp.MustCompile(`(?m)\bstatus=([^ \r\n]+)`)
	emuTimestampRe  = regexp.MustCompile(`(?m)^(\d{6} \d{2}:\d{2}:\d{2}\.\d{3}[+-]\d{1,2}) `)
)

// parseEmulator reconciles the task list with the foreground task. The first
// non-system task is preferred. A launcher in the foreground means the app
// has stopped; a launcher in the task list with an app in the foreground means
// the app is starting.
func parseEmulator(blob string) (Record, error) {
	tasks := allMatches(emuTaskRe, blob)
	if len(tasks) == 0 {
		return Record{}, missing("task")
	}
	foreground, ok := firstMatch(emuForegroundRe, blob)
	if !ok {
		return Record{}, missing("foreground_task")
	}

	task := tasks[0]
	for _, candidate := range tasks {
		if !IsSystemPackage(candidate) {
			task = candidate
			break
		}
	}

	var (
		pkg   string
		state State
	)
	switch {
	case isLauncher(foreground):
		pkg, state = task, StateStopped
	case isLauncher(task) && !IsSystemPackage(foreground):
		pkg, state = foreground, StateStarting
	default:
		pkg = foreground
		if IsSystemPackage(pkg) {
			pkg = task
		}
	}
	if IsSystemPackage(pkg) {
		return Record{}, fmt.Errorf("%s: %w", pkg, ErrSystemPackage)
	}

	if state == StateNone {
		token, ok := firstMatch(emuStatusRe, blob)
		if !ok {
			return Record{}, missing("status")
		}
		parsed, err := ParseState(token)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		state = parsed
	}

	rec := Record{PackageName: pkg, Title: titleFromPackage(pkg), State: state}
	if state == StateStarting {
		return rec, nil
	}

	stamp, ok := firstMatch(emuTimestampRe, blob)
	if !ok {
		return Record{}, missing("timestamp")
	}
	ts, err := parseEmulatorTime(stamp)
	if err != nil {
		return Record{}, fmt.Errorf("%w: timestamp %q: %v", ErrUnparsable, stamp, err)
	}
	rec.StartTime = ts
	return rec, nil
}

// parseEmulatorTime reads "yyMMdd HH:mm:ss.fff" followed by a whole-hour UTC
// offset such as "+1" or "-10", returning the instant in UTC.
func parseEmulatorTime(value string) (time.Time, error) {
	idx := strings.LastIndexAny(value, "+-")
	if idx <= 0 {
		return time.Time{}, fmt.Errorf("missing utc offset")
	}
	hours, err := strconv.Atoi(value[idx+1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse utc offset: %w", err)
	}
	if value[idx] == '-' {
		hours = -hours
	}
	zone := time.FixedZone("", hours*int(time.Hour/time.Second))
	ts, err := time.ParseInLocation(emulatorTimeLayout, value[:idx], zone)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func titleFromPackage(pkg string) string {
	if idx := strings.LastIndex(pkg, "."); idx >= 0 && idx < len(pkg)-1 {
		return pkg[idx+1:]
	}
	return pkg
}
