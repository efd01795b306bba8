package agentwire

import (
	"fmt"
	"strings"
)

// Marker delimiters. Both contain the ASCII record separator (0x1e),
// which encoding/json always escapes inside string values and which
// SanitizeText strips from plain token text, so neither delimiter can
// occur in ordinary channel content. Consumers that do not understand
// markers will render them literally.
const (
	markerStart = "\x1e<wire>"
	markerEnd   = "</wire>\x1e"

	markerByte = '\x1e'
)

// EncodeMarker serializes a message into its marker-delimited inline
// form. The encoder verifies the payload cannot collide with the
// delimiters; the decoder relies on that guarantee.
func EncodeMarker(m *Message) (string, error) {
	data, err := m.marshal()
	if err != nil {
		return "", err
	}
	if strings.IndexByte(string(data), markerByte) >= 0 {
		return "", fmt.Errorf("marker payload contains delimiter byte")
	}
	return markerStart + string(data) + markerEnd, nil
}

// SanitizeText removes the delimiter byte from plain token text so a
// hostile or garbled token can never open or close a marker region.
func SanitizeText(s string) string {
	if strings.IndexByte(s, markerByte) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == markerByte {
			return -1
		}
		return r
	}, s)
}

// DiagnosticSink receives recoverable decode failures. Implementations
// must not block.
type DiagnosticSink interface {
	RecordDiagnostic(stage, message, line string)
}

type nopSink struct{}

func (nopSink) RecordDiagnostic(stage, message, line string) {}

// Extractor scans a text channel for marker-delimited encodings,
// returning the channel content with markers stripped alongside the
// decoded messages. Markers split across chunk boundaries are buffered
// until completed. One instance per conversation; not safe for
// concurrent use.
type Extractor struct {
	buf   string
	diags DiagnosticSink
}

// NewExtractor returns an extractor reporting decode failures to sink.
// A nil sink discards them.
func NewExtractor(sink DiagnosticSink) *Extractor {
	if sink == nil {
		sink = nopSink{}
	}
	return &Extractor{diags: sink}
}

// Extract appends chunk to the internal buffer and resolves every
// complete marker region currently in it. It returns the resolvable
// plain text with markers removed and the messages decoded from them.
// A malformed marker region is dropped whole, never wedging the
// buffer; an unterminated trailing region stays buffered for the next
// chunk. Extract("") never changes state.
func (e *Extractor) Extract(chunk string) (string, []*Message) {
	if chunk != "" {
		e.buf += chunk
	}

	var clean strings.Builder
	var msgs []*Message
	for {
		start := strings.Index(e.buf, markerStart)
		if start < 0 {
			// No marker opens; hold back only a trailing partial
			// delimiter prefix.
			keep := partialDelimiterLen(e.buf)
			clean.WriteString(e.buf[:len(e.buf)-keep])
			e.buf = e.buf[len(e.buf)-keep:]
			break
		}
		clean.WriteString(e.buf[:start])
		rest := e.buf[start+len(markerStart):]
		end := strings.Index(rest, markerEnd)
		if end < 0 {
			// Unterminated marker: wait for more input.
			e.buf = e.buf[start:]
			break
		}
		payload := rest[:end]
		e.buf = rest[end+len(markerEnd):]

		m, err := unmarshalMessage([]byte(payload))
		if err != nil {
			e.diags.RecordDiagnostic("marker", "undecodable marker payload dropped", truncateForDiag(payload))
			continue
		}
		msgs = append(msgs, m)
	}
	return clean.String(), msgs
}

// Reset discards all buffered state, including any unterminated
// marker. Called when a new conversation turn begins.
func (e *Extractor) Reset() {
	if e.buf != "" && strings.Contains(e.buf, markerStart) {
		e.diags.RecordDiagnostic("marker", "unterminated marker discarded at reset", truncateForDiag(e.buf))
	}
	e.buf = ""
}

// Buffered reports whether unresolved input is pending.
func (e *Extractor) Buffered() bool {
	return e.buf != ""
}

// partialDelimiterLen returns the length of the longest suffix of s
// that is a proper prefix of markerStart.
func partialDelimiterLen(s string) int {
	max := len(markerStart) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, markerStart[:n]) {
			return n
		}
	}
	return 0
}

func truncateForDiag(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
