package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMalformed marks blocks that are missing a required field.
	ErrMalformed = errors.New("malformed session block")
	// ErrSystemPackage marks blocks that only describe platform packages.
	ErrSystemPackage = errors.New("system package")
	// ErrUnparsable marks blocks whose state or timestamp value is not understood.
	ErrUnparsable = errors.New("unparsable session field")
)

// Parse builds a Record from a block written in dialect d. Blocks that cannot
// become a record return an error wrapping ErrMalformed, ErrSystemPackage or
// ErrUnparsable.
func Parse(d Dialect, blob string) (Record, error) {
	var (
		rec Record
		err error
	)
	switch d {
	case DialectAppSession:
		rec, err = parseAppSession(blob)
	case DialectEmulator:
		rec, err = parseEmulator(blob)
	default:
		return Record{}, fmt.Errorf("dialect %d: %w", int(d), ErrMalformed)
	}
	if err != nil {
		return Record{}, err
	}
	rec.RawText = blob
	return rec, nil
}

func firstMatch(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value := strings.TrimSpace(strings.ReplaceAll(m[1], "\r", ""))
	return value, value != ""
}

func allMatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(strings.ReplaceAll(m[1], "\r", ""))
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}

func missing(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMalformed)
}
