package agentwire

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// framePrefix is the transport framing on each envelope line.
const framePrefix = "data:"

// rawEnvelope is the transient decoded shape of one transport line.
// Upstreams disagree on nesting and field placement, so every field any
// recognized shape uses is declared here; absent fields stay zero.
type rawEnvelope struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	Source    string          `json:"source,omitempty"`
	Role      string          `json:"role,omitempty"`
	SessionID string          `json:"session_id,omitempty"`

	NodeName  string `json:"node_name,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Details   string `json:"details,omitempty"`
	Error     string `json:"error,omitempty"`

	Decision       string   `json:"decision,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
	AvailablePaths []string `json:"available_paths,omitempty"`
	SelectedPath   string   `json:"selected_path,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`

	ModelName  string `json:"model_name,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`

	ToolName string `json:"tool_name,omitempty"`
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Result   string `json:"result,omitempty"`

	FileID      string `json:"file_id,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileType    string `json:"file_type,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`

	ThinkingType string `json:"thinking_type,omitempty"`
	Step         int    `json:"step,omitempty"`
	TotalSteps   int    `json:"total_steps,omitempty"`

	Severity         string   `json:"severity,omitempty"`
	Message          string   `json:"message,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// contentString returns the content field when it is a JSON string.
func (r *rawEnvelope) contentString() string {
	if len(r.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Content, &s); err != nil {
		return ""
	}
	return s
}

// contentEnvelope returns the content field when it is a nested
// envelope object carrying its own type tag.
func (r *rawEnvelope) contentEnvelope() *rawEnvelope {
	if len(r.Content) == 0 || r.Content[0] != '{' {
		return nil
	}
	var nested rawEnvelope
	if err := json.Unmarshal(r.Content, &nested); err != nil {
		return nil
	}
	if nested.Type == "" {
		return nil
	}
	return &nested
}

// Result is the outcome of normalizing one transport line.
type Result struct {
	// Text is what this line contributes to the plain text channel:
	// raw token text (when dual-emitted) followed by any marker
	// encodings, in that order.
	Text string
	// Messages are the structured messages constructed from the line,
	// already present in Text as marker encodings.
	Messages []*Message
	// Terminal is set when the line is a lifecycle end or error,
	// closing the current turn.
	Terminal bool
	// Failed is set when Terminal was caused by a lifecycle error.
	Failed bool
}

// Normalizer maps heterogeneous envelope lines onto the Message union
// and re-serializes them for the single text channel. One instance per
// conversation; not safe for concurrent use.
type Normalizer struct {
	diags  DiagnosticSink
	log    *slog.Logger
	lastTS time.Time
	now    func() time.Time
}

// NewNormalizer returns a normalizer reporting skipped lines to sink.
// Nil arguments fall back to a discarding sink and slog.Default.
func NewNormalizer(sink DiagnosticSink, log *slog.Logger) *Normalizer {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{diags: sink, log: log, now: time.Now}
}

// Normalize processes one transport line. Decoding failures are
// recorded and skipped; the stream always continues.
func (n *Normalizer) Normalize(line string) Result {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Result{}
	}
	if !strings.HasPrefix(trimmed, framePrefix) {
		n.diags.RecordDiagnostic("envelope", "line outside transport framing skipped", truncateForDiag(trimmed))
		return Result{}
	}
	payload := strings.TrimSpace(trimmed[len(framePrefix):])
	if payload == "" {
		return Result{}
	}

	env, ok := n.decodeEnvelope(payload)
	if !ok {
		return Result{}
	}

	// Double-wrapped transport envelopes ("data" events and similar)
	// carry the real envelope one level down. Unwrap once, keeping the
	// outer source identity when the inner one is silent.
	if nested := env.contentEnvelope(); nested != nil {
		if nested.Source == "" {
			nested.Source = env.Source
		}
		if nested.SessionID == "" {
			nested.SessionID = env.SessionID
		}
		env = nested
	}

	switch env.Type {
	case "token":
		return n.normalizeToken(env)
	case "start", "end", "error":
		return n.normalizeLifecycle(env)
	default:
		if build, known := messageRegistry[env.Type]; known {
			msg := build(n, env)
			return n.emit(nil, msg)
		}
		n.log.Debug("unrecognized envelope type", "type", env.Type)
		n.diags.RecordDiagnostic("envelope", "unrecognized envelope type "+env.Type, truncateForDiag(payload))
		return Result{}
	}
}

func (n *Normalizer) decodeEnvelope(payload string) (*rawEnvelope, bool) {
	var env rawEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err == nil {
		return &env, true
	}
	// Agents occasionally emit almost-JSON (trailing commas, single
	// quotes). One repair pass before giving up on the line.
	repaired, err := jsonrepair.JSONRepair(payload)
	if err == nil {
		if err := json.Unmarshal([]byte(repaired), &env); err == nil {
			return &env, true
		}
	}
	n.diags.RecordDiagnostic("envelope", "undecodable envelope skipped", truncateForDiag(payload))
	return nil, false
}

// normalizeToken handles incremental model output. The bare text is
// always forwarded on the plain channel so a consumer with no notion
// of markers still sees every token, and the structured form follows
// it as a marker encoding.
func (n *Normalizer) normalizeToken(env *rawEnvelope) Result {
	text := env.contentString()
	if text == "" {
		n.diags.RecordDiagnostic("envelope", "token envelope without text content", "")
		return Result{}
	}
	msg := newMessage(KindLLMToken, n.stamp())
	msg.Token = &LLMToken{
		Phase:      PhaseToken,
		Content:    text,
		Source:     env.Source,
		ModelName:  env.ModelName,
		TokenCount: env.TokenCount,
		IsFinal:    env.IsFinal,
	}
	return n.emit([]string{SanitizeText(text)}, msg)
}

// normalizeLifecycle handles bare start/end/error transitions. They
// produce no segment of their own; error transitions that carry a
// message surface as a SystemNotice so the failure is visible
// downstream.
func (n *Normalizer) normalizeLifecycle(env *rawEnvelope) Result {
	terminal := env.Type == "end" || env.Type == "error"
	failed := env.Type == "error"

	detail := env.Error
	if detail == "" {
		detail = env.Message
	}
	if detail == "" {
		detail = env.contentString()
	}
	if failed && detail != "" {
		msg := newMessage(KindSystemNotice, n.stamp())
		msg.Notice = &SystemNotice{Severity: "error", Message: detail}
		res := n.emit(nil, msg)
		res.Terminal = true
		res.Failed = true
		return res
	}

	n.diags.RecordDiagnostic("lifecycle", "stream "+env.Type, detail)
	return Result{Terminal: terminal, Failed: failed}
}

// messageRegistry maps recognized structured envelope types to their
// Message constructors. Adding an upstream kind means adding one row.
var messageRegistry = map[string]func(*Normalizer, *rawEnvelope) *Message{
	"node_start":    nodeStatusBuilder(PhaseStart),
	"node_complete": nodeStatusBuilder(PhaseEnd),
	"node_end":      nodeStatusBuilder(PhaseEnd),
	"node_error":    nodeStatusBuilder(PhaseError),

	"tool_start":    toolBuilder(PhaseStart),
	"tool_progress": toolBuilder(PhaseProgress),
	"tool_complete": toolBuilder(PhaseResult),
	"tool_result":   toolBuilder(PhaseResult),
	"tool_error":    toolBuilder(PhaseError),

	"agent_thinking": func(n *Normalizer, env *rawEnvelope) *Message {
		m := newMessage(KindAgentThinking, n.stamp())
		content := env.contentString()
		if content == "" {
			content = env.Message
		}
		m.Thinking = &AgentThinking{
			AgentName:    env.AgentName,
			ThinkingType: env.ThinkingType,
			Content:      content,
			Step:         env.Step,
			TotalSteps:   env.TotalSteps,
		}
		return m
	},

	"file_generated": func(n *Normalizer, env *rawEnvelope) *Message {
		m := newMessage(KindFileGenerated, n.stamp())
		m.File = &FileGenerated{
			FileID:      env.FileID,
			FileName:    env.FileName,
			FileType:    env.FileType,
			FilePath:    env.FilePath,
			Category:    env.Category,
			Description: env.Description,
		}
		return m
	},

	"route_decision": func(n *Normalizer, env *rawEnvelope) *Message {
		m := newMessage(KindRouterDecision, n.stamp())
		m.Router = &RouterDecision{
			Decision:       env.Decision,
			Confidence:     env.Confidence,
			AvailablePaths: env.AvailablePaths,
			SelectedPath:   env.SelectedPath,
			Reasoning:      env.Reasoning,
		}
		return m
	},

	"system_notice": func(n *Normalizer, env *rawEnvelope) *Message {
		m := newMessage(KindSystemNotice, n.stamp())
		severity := env.Severity
		if severity == "" {
			severity = "info"
		}
		message := env.Message
		if message == "" {
			message = env.contentString()
		}
		m.Notice = &SystemNotice{
			Severity:         severity,
			Message:          message,
			Details:          env.Details,
			SuggestedActions: env.SuggestedActions,
		}
		return m
	},
}

func nodeStatusBuilder(phase string) func(*Normalizer, *rawEnvelope) *Message {
	return func(n *Normalizer, env *rawEnvelope) *Message {
		m := newMessage(KindNodeStatus, n.stamp())
		details := env.Details
		if details == "" {
			details = env.contentString()
		}
		m.NodeStatus = &NodeStatus{
			NodeName:  env.NodeName,
			Phase:     phase,
			AgentName: env.AgentName,
			Details:   details,
			ErrorInfo: env.Error,
		}
		return m
	}
}

func toolBuilder(phase string) func(*Normalizer, *rawEnvelope) *Message {
	return func(n *Normalizer, env *rawEnvelope) *Message {
		m := newMessage(KindToolExecution, n.stamp())
		result := env.Result
		if result == "" && phase == PhaseResult {
			result = env.contentString()
		}
		m.Tool = &ToolExecution{
			ToolName:     env.ToolName,
			Phase:        phase,
			Status:       env.Status,
			Progress:     env.Progress,
			Result:       result,
			ErrorMessage: env.Error,
		}
		return m
	}
}

// emit serializes msg as a marker encoding appended after any raw
// text, so the single channel carries both forms in order.
func (n *Normalizer) emit(rawText []string, msg *Message) Result {
	var b strings.Builder
	for _, t := range rawText {
		b.WriteString(t)
	}
	res := Result{}
	if msg != nil {
		encoded, err := EncodeMarker(msg)
		if err != nil {
			// Construction bug, not stream data: log loudly but keep
			// the stream alive.
			n.log.Error("marker encode failed", "kind", msg.Kind, "error", err)
			n.diags.RecordDiagnostic("marker", "marker encode failed: "+err.Error(), "")
		} else {
			b.WriteString(encoded)
			res.Messages = []*Message{msg}
		}
	}
	res.Text = b.String()
	return res
}

// stamp returns a timestamp that never moves backwards, preserving
// emission order across messages from one normalizer.
func (n *Normalizer) stamp() time.Time {
	ts := n.now()
	if ts.Before(n.lastTS) {
		ts = n.lastTS
	}
	n.lastTS = ts
	return ts
}
