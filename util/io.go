package util

import (
	"net"
	"strings"
	"time"
)

// DefaultBufSize is the chunk size used for each socket read (4 KiB).
const DefaultBufSize = 4 * 1024

// LineEnding terminates every line the server sends.
const LineEnding = "\r\n"

// FormatLines joins lines, each followed by [LineEnding], and appends
// tail verbatim.  The prompt is sent as tail so it carries no newline.
func FormatLines(lines []string, tail string) []byte {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(LineEnding)
	}
	b.WriteString(tail)
	return []byte(b.String())
}

// WriteDeadline writes p to conn in one call, bounding the write with
// timeout when it is positive.
func WriteDeadline(conn net.Conn, p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
		defer conn.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}
	return conn.Write(p)
}
