package agentwire

import (
	"strings"
	"testing"
	"time"
)

type captureSink struct {
	stages []string
	msgs   []string
}

func (c *captureSink) RecordDiagnostic(stage, message, line string) {
	c.stages = append(c.stages, stage)
	c.msgs = append(c.msgs, message)
}

func sampleMessages(t *testing.T) []*Message {
	t.Helper()
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	mk := func(kind Kind) *Message { return newMessage(kind, ts) }

	node := mk(KindNodeStatus)
	node.NodeStatus = &NodeStatus{NodeName: "planner", Phase: PhaseStart, AgentName: "lead"}

	router := mk(KindRouterDecision)
	router.Router = &RouterDecision{Decision: "fast_path", Confidence: 0.92, SelectedPath: "direct"}

	token := mk(KindLLMToken)
	token.Token = &LLMToken{Phase: PhaseToken, Content: "héllo 世界", Source: "writer", TokenCount: 3}

	tool := mk(KindToolExecution)
	tool.Tool = &ToolExecution{ToolName: "search", Phase: PhaseResult, Result: "12 hits"}

	file := mk(KindFileGenerated)
	file.File = &FileGenerated{FileID: "f1", FileName: "report.pdf", FileType: "pdf"}

	think := mk(KindAgentThinking)
	think.Thinking = &AgentThinking{AgentName: "analyst", Content: "weighing options", Step: 2, TotalSteps: 5}

	notice := mk(KindSystemNotice)
	notice.Notice = &SystemNotice{Severity: "warning", Message: "rate limited", SuggestedActions: []string{"retry"}}

	return []*Message{node, router, token, tool, file, think, notice}
}

func TestMarkerRoundTripAllKinds(t *testing.T) {
	for _, msg := range sampleMessages(t) {
		encoded, err := EncodeMarker(msg)
		if err != nil {
			t.Fatalf("%s: encode: %v", msg.Kind, err)
		}

		e := NewExtractor(nil)
		clean, msgs := e.Extract("before " + encoded + " after")
		if clean != "before  after" {
			t.Errorf("%s: clean text %q", msg.Kind, clean)
		}
		if len(msgs) != 1 {
			t.Fatalf("%s: expected 1 message, got %d", msg.Kind, len(msgs))
		}
		got := msgs[0]
		if got.Kind != msg.Kind {
			t.Errorf("kind %q round-tripped as %q", msg.Kind, got.Kind)
		}
		if got.Content() != msg.Content() {
			t.Errorf("%s: content %q, want %q", msg.Kind, got.Content(), msg.Content())
		}
		if err := got.Validate(); err != nil {
			t.Errorf("%s: decoded message invalid: %v", msg.Kind, err)
		}
	}
}

func TestExtractorSplitMarkerAcrossChunks(t *testing.T) {
	msg := sampleMessages(t)[3]
	encoded, err := EncodeMarker(msg)
	if err != nil {
		t.Fatal(err)
	}

	full := "alpha " + encoded + " omega"

	// Every split point must yield the same result as one-shot
	// extraction: no text lost, the message decoded exactly once.
	for cut := 1; cut < len(full); cut++ {
		e := NewExtractor(nil)
		clean1, msgs1 := e.Extract(full[:cut])
		clean2, msgs2 := e.Extract(full[cut:])

		clean := clean1 + clean2
		total := len(msgs1) + len(msgs2)
		if clean != "alpha  omega" {
			t.Fatalf("cut %d: clean %q", cut, clean)
		}
		if total != 1 {
			t.Fatalf("cut %d: decoded %d messages", cut, total)
		}
	}
}

func TestExtractorMalformedPayloadDropped(t *testing.T) {
	sink := &captureSink{}
	e := NewExtractor(sink)

	clean, msgs := e.Extract("keep " + markerStart + "{not valid json" + markerEnd + " this")
	if clean != "keep  this" {
		t.Errorf("clean text %q", clean)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
	if len(sink.stages) != 1 || sink.stages[0] != "marker" {
		t.Errorf("expected one marker diagnostic, got %v", sink.stages)
	}

	// The buffer must not wedge: later content still flows.
	clean, _ = e.Extract("tail")
	if clean != "tail" {
		t.Errorf("extractor wedged after malformed payload: %q", clean)
	}
}

func TestExtractorResetDiscardsUnterminatedMarker(t *testing.T) {
	sink := &captureSink{}
	e := NewExtractor(sink)

	clean, msgs := e.Extract("pre " + markerStart + `{"kind":"llm_token"`)
	if clean != "pre " {
		t.Errorf("clean text %q", clean)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
	if !e.Buffered() {
		t.Error("expected unterminated marker buffered")
	}

	e.Reset()
	if e.Buffered() {
		t.Error("expected empty buffer after reset")
	}
	if len(sink.msgs) != 1 || !strings.Contains(sink.msgs[0], "unterminated") {
		t.Errorf("expected discard diagnostic, got %v", sink.msgs)
	}
}

func TestSanitizeTextStripsDelimiterByte(t *testing.T) {
	dirty := "a\x1eb" + markerStart
	got := SanitizeText(dirty)
	if strings.ContainsRune(got, markerByte) {
		t.Errorf("delimiter byte survived sanitize: %q", got)
	}
	if got != "ab<wire>" {
		t.Errorf("unexpected sanitized text %q", got)
	}
}

func TestEncodeMarkerValidatesPayload(t *testing.T) {
	bad := newMessage(KindLLMToken, time.Now())
	// No variant attached.
	if _, err := EncodeMarker(bad); err == nil {
		t.Error("expected encode error for message without payload")
	}
}
