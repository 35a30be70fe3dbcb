package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

type line struct {
	text  string
	start int64
	end   int64
}

// lineCursor yields complete lines from a seekable source along with their
// byte offsets. A trailing line without a newline is never returned, so the
// offset of the last returned line is always a safe resume point.
type lineCursor struct {
	src     io.ReadSeeker
	r       *bufio.Reader
	offset  int64
	back    *line
	partial int
}

func newLineCursor(src io.ReadSeeker, offset int64) (*lineCursor, error) {
	c := &lineCursor{src: src}
	if err := c.reset(offset); err != nil {
		return nil, err
	}
	return c, nil
}

// next returns io.EOF once no complete line remains. After io.EOF the cursor
// must be reset before it is read again.
func (c *lineCursor) next() (line, error) {
	if c.back != nil {
		ln := *c.back
		c.back = nil
		return ln, nil
	}
	raw, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.partial = len(raw)
			return line{}, io.EOF
		}
		return line{}, err
	}
	start := c.offset
	c.offset += int64(len(raw))
	text := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
	return line{text: text, start: start, end: c.offset}, nil
}

// unread pushes ln back so the following next call returns it again.
func (c *lineCursor) unread(ln line) {
	c.back = &ln
}

func (c *lineCursor) reset(offset int64) error {
	if _, err := c.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	if c.r == nil {
		c.r = bufio.NewReaderSize(c.src, 64*1024)
	} else {
		c.r.Reset(c.src)
	}
	c.offset = offset
	c.back = nil
	c.partial = 0
	return nil
}
