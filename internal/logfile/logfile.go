// Package logfile opens the service log for reading without getting in the
// way of the process that writes it.
package logfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

var (
	// ErrNotFound is returned when the log file does not exist.
	ErrNotFound = errors.New("log file not found")
	// ErrUnavailable is returned when every open attempt failed for another reason.
	ErrUnavailable = errors.New("log file unavailable")
)

const (
	defaultAttempts = 3
	defaultBackoff  = 50 * time.Millisecond
)

// Opener opens log files with a bounded retry.
type Opener struct {
	Attempts int
	Backoff  time.Duration
}

// Handle is a short-lived read handle on the log file.
type Handle struct {
	file *os.File
}

// Open opens path using the default retry policy.
func Open(ctx context.Context, path string) (*Handle, error) {
	return Opener{}.Open(ctx, path)
}

// Open opens path for shared reading. A missing file fails immediately with
// ErrNotFound; other failures are retried before returning ErrUnavailable.
func (o Opener) Open(ctx context.Context, path string) (*Handle, error) {
	attempts := o.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := o.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		file, err := openShared(path)
		if err == nil {
			return &Handle{file: file}, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, attempts, lastErr)
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Stat returns the file info of the open handle.
func (h *Handle) Stat() (os.FileInfo, error) {
	return h.file.Stat()
}

func (h *Handle) Read(p []byte) (int, error) {
	return h.file.Read(p)
}

func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	return h.file.Seek(offset, whence)
}

// Close releases the OS handle.
func (h *Handle) Close() error {
	return h.file.Close()
}

var _ io.ReadSeekCloser = (*Handle)(nil)
