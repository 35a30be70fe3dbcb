package logtail

import (
	"errors"
	"io"
	"strings"

	"github.com/five82/playpresence/internal/session"
)

type blockEnd int

const (
	// blockComplete ended on a closing brace line or a blank line.
	blockComplete blockEnd = iota
	// blockInterrupted ran into the trigger line of the next block.
	blockInterrupted
	// blockTruncated ran out of complete lines before an end marker.
	blockTruncated
)

type block struct {
	dialect session.Dialect
	text    string
	start   int64
	end     int64
	ending  blockEnd
}

// extractBlock accumulates the lines following trigger into one blob, the
// trigger line included. The returned end offset covers every line consumed
// into the block; an interrupting trigger line is pushed back onto c.
func extractBlock(c *lineCursor, trigger line, dialect session.Dialect) (block, error) {
	var b strings.Builder
	b.WriteString(trigger.text)
	b.WriteByte('\n')

	blk := block{dialect: dialect, start: trigger.start, end: trigger.end}
	for {
		ln, err := c.next()
		if errors.Is(err, io.EOF) {
			blk.ending = blockTruncated
			break
		}
		if err != nil {
			return blk, err
		}
		if _, ok := session.DetectTrigger(ln.text); ok {
			c.unread(ln)
			blk.ending = blockInterrupted
			break
		}
		blk.end = ln.end
		if strings.TrimSpace(ln.text) == "" {
			blk.ending = blockComplete
			break
		}
		b.WriteString(ln.text)
		b.WriteByte('\n')
		if ln.text == "}" {
			blk.ending = blockComplete
			break
		}
	}
	blk.text = b.String()
	return blk, nil
}
