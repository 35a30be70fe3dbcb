// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultDedupeWindow = 2 * time.Second

// Options configure New.
type Options struct {
	Level string
	// FilePath receives JSON lines when set.
	FilePath string
	// Console receives human-readable output when set.
	Console io.Writer
	// DedupeWindow suppresses an event identical to the previous one within
	// the window. Zero uses two seconds; negative disables suppression.
	DedupeWindow time.Duration
}

// New builds a logger writing to the configured sinks. The returned closer
// releases the log file.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
		closer = file
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.TimeOnly,
		})
	}

	var out zerolog.LevelWriter
	switch len(writers) {
	case 0:
		out = zerolog.LevelWriterAdapter{Writer: io.Discard}
	case 1:
		out = zerolog.LevelWriterAdapter{Writer: writers[0]}
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	window := opts.DedupeWindow
	if window == 0 {
		window = defaultDedupeWindow
	}
	if window > 0 {
		out = NewDedupeWriter(out, window)
	}

	logger := zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

// ParseLevel converts a configured level name to a zerolog level. Unknown
// names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "verbose":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "information", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// DedupeWriter drops an encoded event identical to the previous one,
// ignoring its timestamp, when it arrives within a time window. Events that
// share a message but differ in any field are both written.
type DedupeWriter struct {
	out    zerolog.LevelWriter
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last []byte
	at   time.Time
}

// NewDedupeWriter wraps out, suppressing repeats within window.
func NewDedupeWriter(out zerolog.LevelWriter, window time.Duration) *DedupeWriter {
	return &DedupeWriter{out: out, window: window, now: time.Now}
}

// Write implements io.Writer.
func (w *DedupeWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *DedupeWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	key := timeField.ReplaceAll(p, nil)

	w.mu.Lock()
	now := w.now()
	if bytes.Equal(key, w.last) && now.Sub(w.at) < w.window {
		w.mu.Unlock()
		return len(p), nil
	}
	w.last = key
	w.at = now
	w.mu.Unlock()

	return w.out.WriteLevel(level, p)
}

var timeField = regexp.MustCompile(`,?"` + regexp.QuoteMeta(zerolog.TimestampFieldName) + `":"[^"]*"`)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
