package session

import (
	"fmt"
	"regexp"
	"time"
)

// started_timestamp=9/24/2024 1:05:02 PM +00:00
const appSessionTimeLayout = "1/2/2006 3:04:05 PM -07:00"

var (
	appPackageRe = regexp.MustCompile(`(?m)package_name=(.+?)$`)
	appTitleRe   = regexp.MustCompile(`(?m)title=(.+?)$`)
	appStartedRe = regexp.MustCompile(`(?m)started_timestamp=(.+?)$`)
	appStateRe   = regexp.MustCompile(`(?m)state=(.+?)=`)
)

func parseAppSession(blob string) (Record, error) {
	pkg, ok := firstMatch(appPackageRe, blob)
	if !ok {
		return Record{}, missing("package_name")
	}
	if IsSystemPackage(pkg) {
		return Record{}, fmt.Errorf("%s: %w", pkg, ErrSystemPackage)
	}
	title, ok := firstMatch(appTitleRe, blob)
	if !ok {
		return Record{}, missing("title")
	}
	stateToken, ok := firstMatch(appStateRe, blob)
	if !ok {
		return Record{}, missing("state")
	}
	state, err := ParseState(stateToken)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	rec := Record{PackageName: pkg, Title: title, State: state}
	if state == StateStarting {
		return rec, nil
	}

	started, ok := firstMatch(appStartedRe, blob)
	if !ok {
		return Record{}, missing("started_timestamp")
	}
	ts, err := time.Parse(appSessionTimeLayout, started)
	if err != nil {
		return Record{}, fmt.Errorf("%w: started_timestamp %q: %v", ErrUnparsable, started, err)
	}
	rec.StartTime = ts
	return rec, nil
}
