// Package diaglog records recoverable stream diagnostics: skipped
// envelopes, dropped markers, lifecycle transitions. Segments are
// never stored here; the journal exists so a garbled stream can be
// investigated after the fact.
package diaglog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Diagnostic is one recorded recovery event.
type Diagnostic struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Stage          string    `json:"stage"` // envelope, marker, lifecycle, transport
	Message        string    `json:"message"`
	Line           string    `json:"line,omitempty"` // offending input, truncated
	Timestamp      time.Time `json:"timestamp"`
}

// Recorder accepts diagnostics. Implementations must be cheap; they
// are called from the hot stream path.
type Recorder interface {
	Record(d Diagnostic)
}

// Lister reads back recorded diagnostics, newest first.
type Lister interface {
	List(conversationID string, limit int) ([]Diagnostic, error)
}

// MemoryRecorder keeps the most recent diagnostics in a ring.
type MemoryRecorder struct {
	mu    sync.Mutex
	ring  []Diagnostic
	next  int
	count int
}

// NewMemoryRecorder creates a ring recorder holding up to size entries.
func NewMemoryRecorder(size int) *MemoryRecorder {
	if size <= 0 {
		size = 256
	}
	return &MemoryRecorder{ring: make([]Diagnostic, size)}
}

func (r *MemoryRecorder) Record(d Diagnostic) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = d
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
}

// List returns recorded diagnostics, newest first, optionally filtered
// by conversation.
func (r *MemoryRecorder) List(conversationID string, limit int) ([]Diagnostic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Diagnostic
	for i := 0; i < r.count; i++ {
		idx := (r.next - 1 - i + len(r.ring)) % len(r.ring)
		d := r.ring[idx]
		if conversationID != "" && d.ConversationID != conversationID {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MultiRecorder fans a diagnostic out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(d Diagnostic) {
	for _, r := range m {
		r.Record(d)
	}
}

// SinkAdapter bridges a Recorder to the agentwire DiagnosticSink
// interface, tagging every diagnostic with the owning conversation.
type SinkAdapter struct {
	ConversationID string
	Recorder       Recorder
}

func (a SinkAdapter) RecordDiagnostic(stage, message, line string) {
	if a.Recorder == nil {
		return
	}
	a.Recorder.Record(Diagnostic{
		ConversationID: a.ConversationID,
		Stage:          stage,
		Message:        message,
		Line:           line,
		Timestamp:      time.Now(),
	})
}
