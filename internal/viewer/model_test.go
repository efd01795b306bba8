package viewer

import (
	"fmt"
	"testing"
	"time"

	"github.com/drewfead/tracewire/internal/segment"
)

func TestAddSegmentKeepsChronologicalOrderAfterOverflow(t *testing.T) {
	segs := make(chan segment.Segment)
	m := NewModel(segs, Options{MaxSegments: 3})

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m.addSegment(segment.Segment{
			Type:      segment.TypeAgentThinking,
			Content:   fmt.Sprintf("s%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	if len(m.buf) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(m.buf))
	}
	// Oldest evicted; survivors stay in arrival order.
	for i, want := range []string{"s2", "s3", "s4"} {
		if m.buf[i].Content != want {
			t.Errorf("buf[%d] = %q, want %q", i, m.buf[i].Content, want)
		}
	}
	for i := 1; i < len(m.buf); i++ {
		if m.buf[i].Timestamp.Before(m.buf[i-1].Timestamp) {
			t.Errorf("timeline out of order at %d: %v before %v", i, m.buf[i].Timestamp, m.buf[i-1].Timestamp)
		}
	}
	if m.totalSegments != 5 {
		t.Errorf("total %d", m.totalSegments)
	}
}

func TestAddSegmentOverflowAdjustsSelection(t *testing.T) {
	segs := make(chan segment.Segment)
	m := NewModel(segs, Options{MaxSegments: 2})
	m.height = 20

	for i := 0; i < 4; i++ {
		m.addSegment(segment.Segment{Type: segment.TypeText, Content: fmt.Sprintf("s%d", i)})
	}

	// The cursor follows the stream tail and stays inside the buffer.
	if m.selected != len(m.buf)-1 {
		t.Errorf("selected %d, buffer length %d", m.selected, len(m.buf))
	}
	if m.buf[m.selected].Content != "s3" {
		t.Errorf("cursor on %q", m.buf[m.selected].Content)
	}
}
