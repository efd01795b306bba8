package segment

import (
	"regexp"
	"strings"
	"time"

	"github.com/drewfead/tracewire/pkg/agentwire"
)

// StatusPhrase maps a textual pattern found inside a token run to a
// system status. The default list is deliberately small; deployments
// extend it through configuration.
type StatusPhrase struct {
	Phrase     string `yaml:"phrase"`
	StatusType string `yaml:"status_type"`
}

// Options tunes classification and merging.
type Options struct {
	// StatusPhrases promote token runs to system messages when matched
	// case-insensitively.
	StatusPhrases []StatusPhrase
	// MergeMaxLen caps the combined length of two merged segments.
	MergeMaxLen int
	// MergeShortLen: at least one side of a merge must be shorter than
	// this, so two long blocks never concatenate.
	MergeShortLen int
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		StatusPhrases: []StatusPhrase{
			{Phrase: "task analysis complete", StatusType: "analysis_complete"},
			{Phrase: "任务分析完成", StatusType: "analysis_complete"},
			{Phrase: "review passed", StatusType: "review_passed"},
			{Phrase: "审查通过", StatusType: "review_passed"},
			{Phrase: "review failed", StatusType: "review_failed"},
			{Phrase: "审查未通过", StatusType: "review_failed"},
		},
		MergeMaxLen:   3000,
		MergeShortLen: 100,
	}
}

// Classifier turns one turn's clean text and extracted messages into
// renderable segments. One instance per conversation; not safe for
// concurrent use.
type Classifier struct {
	opts Options
	acc  accumulator
}

// NewClassifier returns a classifier with the given options. Zero
// thresholds fall back to defaults.
func NewClassifier(opts Options) *Classifier {
	def := DefaultOptions()
	if opts.MergeMaxLen <= 0 {
		opts.MergeMaxLen = def.MergeMaxLen
	}
	if opts.MergeShortLen <= 0 {
		opts.MergeShortLen = def.MergeShortLen
	}
	if opts.StatusPhrases == nil {
		opts.StatusPhrases = def.StatusPhrases
	}
	return &Classifier{opts: opts}
}

// Parse converts the clean text of one upstream turn plus the messages
// extracted from it into an ordered, merged segment list. With no
// structured messages it falls back to heuristic text classification;
// classification never fails, the worst case is a single text segment.
func (c *Classifier) Parse(clean string, msgs []*agentwire.Message) []Segment {
	if len(msgs) == 0 {
		return mergeAll(c.classifyLoose(clean, time.Now()), c.opts)
	}

	var segs []Segment
	for _, m := range msgs {
		if m.Kind == agentwire.KindLLMToken {
			for _, run := range c.acc.add(m.Token, m.Timestamp) {
				segs = append(segs, c.runSegment(run))
			}
			continue
		}
		// A non-token message closes any open run first, preserving
		// arrival order.
		if run := c.acc.flush(); run != nil {
			segs = append(segs, c.runSegment(run))
		}
		segs = append(segs, messageSegment(m))
	}
	if run := c.acc.flush(); run != nil {
		segs = append(segs, c.runSegment(run))
	}

	if rest := strings.TrimSpace(uncoveredText(clean, msgs)); rest != "" {
		ts := time.Now()
		if n := len(msgs); n > 0 {
			ts = msgs[n-1].Timestamp
		}
		segs = append(segs, Segment{Type: TypeText, Content: rest, Timestamp: ts})
	}

	return mergeAll(segs, c.opts)
}

// uncoveredText removes each token message's content from the clean
// text once, leaving only text no structured message accounts for.
// Token text appears on the channel twice by design (raw plus marker),
// so without this the run segment and the trailing text segment would
// both show it.
func uncoveredText(clean string, msgs []*agentwire.Message) string {
	for _, m := range msgs {
		if m.Kind != agentwire.KindLLMToken || m.Token.Content == "" {
			continue
		}
		if i := strings.Index(clean, m.Token.Content); i >= 0 {
			clean = clean[:i] + clean[i+len(m.Token.Content):]
		}
	}
	return clean
}

// runSegment converts a completed token run into its segment. Runs
// read as agent thinking unless the text carries a known status
// phrase, which promotes it to a system message.
func (c *Classifier) runSegment(run *tokenRun) Segment {
	content := run.content.String()
	seg := Segment{Type: TypeAgentThinking, Content: content, Timestamp: run.started}

	lower := strings.ToLower(content)
	for _, sp := range c.opts.StatusPhrases {
		if strings.Contains(lower, strings.ToLower(sp.Phrase)) {
			seg.Type = TypeSystemMessage
			seg.withData("status_type", sp.StatusType)
			break
		}
	}

	if run.source != "" {
		seg.withData("source", run.source)
	}
	if run.modelName != "" {
		seg.withData("model_name", run.modelName)
	}
	if run.tokens > 0 {
		seg.withData("token_count", run.tokens)
	}
	return seg
}

// messageSegment deterministically maps a non-token message variant to
// its segment type.
func messageSegment(m *agentwire.Message) Segment {
	seg := Segment{Timestamp: m.Timestamp}

	switch m.Kind {
	case agentwire.KindNodeStatus:
		ns := m.NodeStatus
		seg.Type = TypeNodeStatus
		seg.Content = ns.Details
		if seg.Content == "" {
			seg.Content = strings.TrimSpace(ns.NodeName + " " + ns.Phase)
		}
		seg.withData("node_name", ns.NodeName)
		seg.withData("phase", ns.Phase)
		if ns.Details != "" {
			seg.withData("details", ns.Details)
		}
		if ns.AgentName != "" {
			seg.withData("agent_name", ns.AgentName)
		}
		if ns.ErrorInfo != "" {
			seg.withData("error_info", ns.ErrorInfo)
		}

	case agentwire.KindRouterDecision:
		rd := m.Router
		seg.Type = TypeSystemMessage
		seg.Content = rd.Reasoning
		if seg.Content == "" {
			seg.Content = rd.Decision
		}
		seg.withData("decision_type", "route")
		seg.withData("decision", rd.Decision)
		if rd.SelectedPath != "" {
			seg.withData("selected_path", rd.SelectedPath)
		}
		if rd.Confidence > 0 {
			seg.withData("confidence", rd.Confidence)
		}
		if len(rd.AvailablePaths) > 0 {
			seg.withData("available_paths", rd.AvailablePaths)
		}

	case agentwire.KindToolExecution:
		te := m.Tool
		seg.Type = TypeToolExecution
		seg.Content = te.Result
		if seg.Content == "" {
			seg.Content = strings.TrimSpace(te.ToolName + " " + te.Phase)
		}
		seg.withData("tool_name", te.ToolName)
		seg.withData("phase", te.Phase)
		if te.Status != "" {
			seg.withData("status", te.Status)
		}
		if te.Progress > 0 {
			seg.withData("progress", te.Progress)
		}
		if te.ErrorMessage != "" {
			seg.withData("error_message", te.ErrorMessage)
		}

	case agentwire.KindFileGenerated:
		fg := m.File
		seg.Type = TypeFileGenerated
		seg.Content = fg.Description
		if seg.Content == "" {
			seg.Content = fg.FileName
		}
		seg.withData("file_id", fg.FileID)
		seg.withData("file_name", fg.FileName)
		if fg.FileType != "" {
			seg.withData("file_type", fg.FileType)
		}
		if fg.FilePath != "" {
			seg.withData("file_path", fg.FilePath)
		}
		if fg.Category != "" {
			seg.withData("category", fg.Category)
		}

	case agentwire.KindAgentThinking:
		at := m.Thinking
		seg.Type = TypeAgentThinking
		seg.Content = at.Content
		if at.AgentName != "" {
			seg.withData("agent_name", at.AgentName)
		}
		if at.ThinkingType != "" {
			seg.withData("thinking_type", at.ThinkingType)
		}
		if at.TotalSteps > 0 {
			seg.withData("step", at.Step)
			seg.withData("total_steps", at.TotalSteps)
		}

	case agentwire.KindSystemNotice:
		sn := m.Notice
		seg.Type = TypeSystemMessage
		seg.Content = sn.Message
		seg.withData("severity", sn.Severity)
		if sn.Details != "" {
			seg.withData("details", sn.Details)
		}
		if len(sn.SuggestedActions) > 0 {
			seg.withData("suggested_actions", sn.SuggestedActions)
		}

	default:
		seg.Type = TypeText
		seg.Content = m.Content()
	}
	return seg
}

// --- Heuristic fallback classification ---

// classifyRule pairs a segment type with the textual evidence that
// selects it. Rules are evaluated strictly in slice order; earlier
// rules win, so the precedence is explicit and testable rather than
// buried in a conditional cascade.
type classifyRule struct {
	typ      Type
	keywords []string
}

var classifyRules = []classifyRule{
	{TypeAnalysisResult, []string{"📊", "task analysis", "任务分析", "complexity", "复杂度", "quality score", "质量评分"}},
	{TypeNodeStatus, []string{"🤖", "node ", "节点", "workflow step", "正在执行节点"}},
	{TypeToolExecution, []string{"🔧", "tool", "工具", "执行完成", "执行失败", "executing"}},
	{TypeFileGenerated, []string{"📄", "file generated", "generated file", "文件已生成", "已生成文件"}},
	{TypeAgentThinking, []string{"🤔", "thinking", "思考", "分析中", "reasoning"}},
	{TypeSystemMessage, []string{"⚠️", "✅", "❌", "warning", "警告", "error", "错误", "system", "系统"}},
}

// prefixMarkers are the leading glyphs the upstream uses to head a new
// logical block in plain text. Their presence decides whether loose
// text is split at markers or by line.
var prefixMarkers = []string{"📊", "🤖", "🔧", "📄", "🤔", "⚠️", "✅", "❌"}

// Best-effort field extraction patterns. A non-match leaves the field
// unset, never an error.
var (
	taskTypePattern   = regexp.MustCompile(`(?i)(?:任务类型|task type)\s*[:：]\s*([\w-]+)`)
	complexityPattern = regexp.MustCompile(`(?i)(?:复杂度|complexity)\s*[:：]\s*([\w-]+)`)
	nodeNamePattern   = regexp.MustCompile(`(?:节点|[Nn]ode)\s*[:：]?\s*([A-Za-z_][\w-]*)`)
	fileNamePattern   = regexp.MustCompile(`([\w\-./]+\.(?:png|jpe?g|gif|svg|pdf|csv|xlsx?|docx?|pptx?|txt|md|json|ya?ml|html?))`)
	scorePattern      = regexp.MustCompile(`(?i)(?:质量评分|quality score)\s*[:：]\s*([0-9]+(?:\.[0-9]+)?)`)
	agentNamePattern  = regexp.MustCompile(`(?i)(?:智能体|agent)\s*[:：]\s*([\w-]+)`)
	toolNamePattern   = regexp.MustCompile(`🔧\s*(?:Tool\s+)?([\w-]+)|(?:工具|[Tt]ool)\s*[:：]?\s+([\w-]+)`)
)

// classifyLoose partitions unstructured text. With prefix markers the
// text splits at marker boundaries; without, line by line with
// consecutive same-type lines grouped. Unclassifiable content becomes
// one text segment.
func (c *Classifier) classifyLoose(content string, ts time.Time) []Segment {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	if containsAny(trimmed, prefixMarkers) {
		var segs []Segment
		for _, piece := range splitAtMarkers(trimmed) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			segs = append(segs, classifyPiece(piece, ts))
		}
		return segs
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) == 1 {
		return []Segment{classifyPiece(trimmed, ts)}
	}

	// Group consecutive lines of the same classified type.
	var segs []Segment
	var group []string
	var groupType Type
	flushGroup := func() {
		if len(group) == 0 {
			return
		}
		segs = append(segs, classifyPiece(strings.Join(group, "\n"), ts))
		group = nil
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		t := classifyText(line)
		if len(group) > 0 && t != groupType {
			flushGroup()
		}
		groupType = t
		group = append(group, line)
	}
	flushGroup()
	return segs
}

// splitAtMarkers cuts text immediately before each prefix marker
// occurrence so every piece starts with at most one marker.
func splitAtMarkers(s string) []string {
	var cuts []int
	for i := range s {
		if i == 0 {
			continue
		}
		for _, m := range prefixMarkers {
			if strings.HasPrefix(s[i:], m) {
				cuts = append(cuts, i)
				break
			}
		}
	}
	if len(cuts) == 0 {
		return []string{s}
	}
	var pieces []string
	prev := 0
	for _, cut := range cuts {
		pieces = append(pieces, s[prev:cut])
		prev = cut
	}
	pieces = append(pieces, s[prev:])
	return pieces
}

// classifyText returns the rule-table type for a piece of text,
// defaulting to plain text.
func classifyText(s string) Type {
	lower := strings.ToLower(s)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.typ
			}
		}
	}
	return TypeText
}

// classifyPiece classifies one text piece and enriches it with any
// extractable structured fields.
func classifyPiece(piece string, ts time.Time) Segment {
	seg := Segment{Type: classifyText(piece), Content: piece, Timestamp: ts}

	switch seg.Type {
	case TypeAnalysisResult:
		if m := taskTypePattern.FindStringSubmatch(piece); m != nil {
			seg.withData("task_type", m[1])
		}
		if m := complexityPattern.FindStringSubmatch(piece); m != nil {
			seg.withData("complexity", m[1])
		}
		if m := scorePattern.FindStringSubmatch(piece); m != nil {
			seg.withData("quality_score", m[1])
		}
	case TypeNodeStatus:
		if m := nodeNamePattern.FindStringSubmatch(piece); m != nil {
			seg.withData("node_name", m[1])
		}
		if m := agentNamePattern.FindStringSubmatch(piece); m != nil {
			seg.withData("agent_name", m[1])
		}
	case TypeToolExecution:
		if m := toolNamePattern.FindStringSubmatch(piece); m != nil {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			seg.withData("tool_name", name)
		}
	case TypeFileGenerated:
		if m := fileNamePattern.FindStringSubmatch(piece); m != nil {
			seg.withData("file_name", m[1])
		}
	case TypeAgentThinking:
		if m := agentNamePattern.FindStringSubmatch(piece); m != nil {
			seg.withData("agent_name", m[1])
		}
	}
	return seg
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
