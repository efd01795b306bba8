package segment

import (
	"testing"
	"time"

	"github.com/drewfead/tracewire/pkg/agentwire"
)

func tokenMsg(source, content string, ts time.Time) *agentwire.Message {
	return &agentwire.Message{
		Kind:      agentwire.KindLLMToken,
		Timestamp: ts,
		Token:     &agentwire.LLMToken{Phase: agentwire.PhaseToken, Source: source, Content: content, TokenCount: 1},
	}
}

func TestParseTokenRunsKeyedBySource(t *testing.T) {
	// MergeMaxLen of 1 disables merging so the run boundary is visible.
	c := NewClassifier(Options{MergeMaxLen: 1})
	ts := time.Now()

	msgs := []*agentwire.Message{
		tokenMsg("A", "Hello", ts),
		tokenMsg("A", " world", ts),
		tokenMsg("B", "Hi", ts),
	}
	segs := c.Parse("Hello worldHi", msgs)

	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Type != TypeAgentThinking || segs[0].Content != "Hello world" {
		t.Errorf("first segment %+v", segs[0])
	}
	if segs[0].Data["source"] != "A" {
		t.Errorf("first segment source %v", segs[0].Data["source"])
	}
	if segs[1].Content != "Hi" || segs[1].Data["source"] != "B" {
		t.Errorf("second segment %+v", segs[1])
	}
}

func TestParseStatusPhrasePromotesRun(t *testing.T) {
	c := NewClassifier(Options{})
	ts := time.Now()

	msgs := []*agentwire.Message{tokenMsg("reviewer", "Review passed, ship it", ts)}
	segs := c.Parse("Review passed, ship it", msgs)

	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Type != TypeSystemMessage {
		t.Errorf("type %q", segs[0].Type)
	}
	if segs[0].Data["status_type"] != "review_passed" {
		t.Errorf("status_type %v", segs[0].Data["status_type"])
	}
}

func TestParseNonTokenClosesOpenRun(t *testing.T) {
	c := NewClassifier(Options{MergeMaxLen: 1})
	ts := time.Now()

	fileMsg := &agentwire.Message{
		Kind:      agentwire.KindFileGenerated,
		Timestamp: ts,
		File:      &agentwire.FileGenerated{FileID: "f1", FileName: "out.csv"},
	}
	msgs := []*agentwire.Message{
		tokenMsg("A", "writing file", ts),
		fileMsg,
		tokenMsg("A", "done", ts),
	}
	segs := c.Parse("writing filedone", msgs)

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Type != TypeAgentThinking || segs[0].Content != "writing file" {
		t.Errorf("segment 0: %+v", segs[0])
	}
	if segs[1].Type != TypeFileGenerated || segs[1].Data["file_name"] != "out.csv" {
		t.Errorf("segment 1: %+v", segs[1])
	}
	if segs[2].Type != TypeAgentThinking || segs[2].Content != "done" {
		t.Errorf("segment 2: %+v", segs[2])
	}
}

func TestParseUncoveredTextBecomesTrailingSegment(t *testing.T) {
	c := NewClassifier(Options{MergeMaxLen: 1})
	ts := time.Now()

	msgs := []*agentwire.Message{tokenMsg("A", "Hi", ts)}
	segs := c.Parse("Hi and some unstructured tail", msgs)

	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[1].Type != TypeText || segs[1].Content != "and some unstructured tail" {
		t.Errorf("trailing segment %+v", segs[1])
	}
}

func TestParseFallsBackToLooseClassification(t *testing.T) {
	c := NewClassifier(Options{})

	segs := c.Parse("🔧 Tool X 执行完成", nil)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Type != TypeToolExecution {
		t.Errorf("type %q", segs[0].Type)
	}
	if segs[0].Data["tool_name"] != "X" {
		t.Errorf("tool_name %v", segs[0].Data["tool_name"])
	}
}

func TestClassifyLoosePrecedence(t *testing.T) {
	// A piece matching several rules takes the highest-precedence type.
	if got := classifyText("task analysis used the search tool"); got != TypeAnalysisResult {
		t.Errorf("analysis over tool: got %q", got)
	}
	if got := classifyText("node planner is executing a tool"); got != TypeNodeStatus {
		t.Errorf("node over tool: got %q", got)
	}
	if got := classifyText("thinking about the error"); got != TypeAgentThinking {
		t.Errorf("thinking over system: got %q", got)
	}
	if got := classifyText("nothing special here"); got != TypeText {
		t.Errorf("default: got %q", got)
	}
}

func TestClassifyLooseSplitsAtMarkers(t *testing.T) {
	c := NewClassifier(Options{MergeMaxLen: 1})

	content := "📊 任务分析完成 任务类型: report 复杂度: high 🔧 Tool search 执行完成 📄 文件已生成 summary.pdf"
	segs := c.Parse(content, nil)

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Type != TypeAnalysisResult {
		t.Errorf("segment 0 type %q", segs[0].Type)
	}
	if segs[0].Data["task_type"] != "report" || segs[0].Data["complexity"] != "high" {
		t.Errorf("segment 0 data %v", segs[0].Data)
	}
	if segs[1].Type != TypeToolExecution || segs[1].Data["tool_name"] != "search" {
		t.Errorf("segment 1 %+v", segs[1])
	}
	if segs[2].Type != TypeFileGenerated || segs[2].Data["file_name"] != "summary.pdf" {
		t.Errorf("segment 2 %+v", segs[2])
	}
}

func TestClassifyLooseGroupsLines(t *testing.T) {
	c := NewClassifier(Options{MergeMaxLen: 1})

	content := "thinking about approach\nstill thinking it through\nsystem warning issued"
	segs := c.Parse(content, nil)

	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Type != TypeAgentThinking {
		t.Errorf("segment 0 type %q", segs[0].Type)
	}
	if segs[0].Content != "thinking about approach\nstill thinking it through" {
		t.Errorf("segment 0 content %q", segs[0].Content)
	}
	if segs[1].Type != TypeSystemMessage {
		t.Errorf("segment 1 type %q", segs[1].Type)
	}
}

func TestParseEmptyTurn(t *testing.T) {
	c := NewClassifier(Options{})
	if segs := c.Parse("", nil); len(segs) != 0 {
		t.Errorf("expected no segments, got %+v", segs)
	}
	if segs := c.Parse("   \n  ", nil); len(segs) != 0 {
		t.Errorf("whitespace turn: got %+v", segs)
	}
}

func TestMessageSegmentMapping(t *testing.T) {
	ts := time.Now()

	node := &agentwire.Message{Kind: agentwire.KindNodeStatus, Timestamp: ts,
		NodeStatus: &agentwire.NodeStatus{NodeName: "writer", Phase: agentwire.PhaseStart}}
	seg := messageSegment(node)
	if seg.Type != TypeNodeStatus || seg.Data["node_name"] != "writer" {
		t.Errorf("node segment %+v", seg)
	}
	if seg.Content != "writer start" {
		t.Errorf("node content %q", seg.Content)
	}

	router := &agentwire.Message{Kind: agentwire.KindRouterDecision, Timestamp: ts,
		Router: &agentwire.RouterDecision{Decision: "escalate", Reasoning: "low confidence"}}
	seg = messageSegment(router)
	if seg.Type != TypeSystemMessage || seg.Data["decision_type"] != "route" {
		t.Errorf("router segment %+v", seg)
	}
	if seg.Content != "low confidence" {
		t.Errorf("router content %q", seg.Content)
	}

	notice := &agentwire.Message{Kind: agentwire.KindSystemNotice, Timestamp: ts,
		Notice: &agentwire.SystemNotice{Severity: "error", Message: "broke"}}
	seg = messageSegment(notice)
	if seg.Type != TypeSystemMessage || seg.Data["severity"] != "error" {
		t.Errorf("notice segment %+v", seg)
	}

	tool := &agentwire.Message{Kind: agentwire.KindToolExecution, Timestamp: ts,
		Tool: &agentwire.ToolExecution{ToolName: "fetch", Phase: agentwire.PhaseError, ErrorMessage: "timeout"}}
	seg = messageSegment(tool)
	if seg.Type != TypeToolExecution || seg.Data["error_message"] != "timeout" {
		t.Errorf("tool segment %+v", seg)
	}
}
