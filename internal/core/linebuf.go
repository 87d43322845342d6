package core

import (
	"telfs/config"
	ncerr "telfs/internal/errors"
	"telfs/util"
)

// line is one terminated client line, or the marker for a line that
// was discarded for exceeding the length limit.
type line struct {
	text string
	err  error
}

// lineBuffer accumulates a connection's inbound bytes until a line
// terminator arrives.  "\n", "\r\n" and a lone "\r" all end a line;
// the "\n" of a "\r\n" pair is swallowed even when it arrives in a
// later read.
type lineBuffer struct {
	buf      []byte
	max      int
	skipLF   bool
	overflow bool
}

func newLineBuffer(limit int) *lineBuffer {
	if limit <= 0 {
		limit = config.DefaultMaxLineLength
	}
	return &lineBuffer{max: limit}
}

// Feed appends p and returns the lines it completed, in order.
func (b *lineBuffer) Feed(p []byte) []line {
	var out []line
	for _, ch := range p {
		if b.skipLF {
			b.skipLF = false
			if ch == '\n' {
				continue
			}
		}
		switch ch {
		case '\r', '\n':
			b.skipLF = ch == '\r'
			if b.overflow {
				out = append(out, line{err: ncerr.ErrLineTooLong})
				b.overflow = false
			} else {
				out = append(out, line{text: string(b.buf)})
			}
			b.reset()
		case '\b', 0x7f:
			// Character-mode telnet clients send erase keystrokes.
			if n := len(b.buf); n > 0 && !b.overflow {
				b.buf = b.buf[:n-1]
			}
		default:
			if b.overflow {
				continue
			}
			if len(b.buf) >= b.max {
				b.overflow = true
				b.buf = b.buf[:0]
				continue
			}
			b.buf = append(b.buf, ch)
		}
	}
	return out
}

// Pending reports how many bytes of an unterminated line are held.
func (b *lineBuffer) Pending() int { return len(b.buf) }

// Reset discards any partial line.
func (b *lineBuffer) Reset() {
	b.reset()
	b.skipLF = false
	b.overflow = false
}

// reset empties buf, releasing it if a long line grew it well past a
// normal read.
func (b *lineBuffer) reset() {
	if cap(b.buf) > 4*util.DefaultBufSize {
		b.buf = nil
		return
	}
	b.buf = b.buf[:0]
}
