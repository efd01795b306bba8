package agentwire

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// LineBuffer splits an incoming byte stream into complete lines,
// tolerating chunk boundaries that fall anywhere, including inside a
// multi-byte rune. One instance per conversation; not safe for
// concurrent use.
type LineBuffer struct {
	buf []byte
}

// NewLineBuffer returns an empty line buffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Write appends a chunk and returns every line completed by it, in
// order, without trailing newlines. The trailing incomplete fragment
// stays buffered for the next chunk. Feeding the same byte sequence in
// any chunking yields the same line sequence.
func (b *LineBuffer) Write(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		line := b.buf[:i]
		// Tolerate CRLF upstreams.
		line = bytes.TrimSuffix(line, []byte{'\r'})
		lines = append(lines, string(line))
		b.buf = b.buf[i+1:]
	}
	return lines
}

// Flush returns the trailing fragment as a final line if it is
// non-empty and valid UTF-8, discarding it otherwise. The buffer is
// empty afterwards either way.
func (b *LineBuffer) Flush() (string, bool) {
	frag := b.buf
	b.buf = nil
	if len(frag) == 0 {
		return "", false
	}
	s := strings.TrimSuffix(string(frag), "\r")
	if s == "" || !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}

// Pending reports whether an incomplete fragment is buffered.
func (b *LineBuffer) Pending() bool {
	return len(b.buf) > 0
}
