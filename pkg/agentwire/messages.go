// Package agentwire implements the wire protocol for agent execution
// traces: a line-oriented envelope stream that is normalized into one
// canonical message type and re-serialized onto a plain text channel
// using marker-delimited inline encodings.
package agentwire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the Message union.
type Kind string

const (
	KindNodeStatus     Kind = "node_status"
	KindRouterDecision Kind = "router_decision"
	KindLLMToken       Kind = "llm_token"
	KindToolExecution  Kind = "tool_execution"
	KindFileGenerated  Kind = "file_generated"
	KindAgentThinking  Kind = "agent_thinking"
	KindSystemNotice   Kind = "system_notice"
)

// Phase values shared by NodeStatus, LLMToken and ToolExecution.
const (
	PhaseStart    = "start"
	PhaseToken    = "token"
	PhaseProgress = "progress"
	PhaseResult   = "result"
	PhaseEnd      = "end"
	PhaseError    = "error"
)

// Message is the canonical trace event. Exactly one variant pointer is
// set, matching Kind. The kind is fixed at construction and the
// timestamp is assigned from emission order, so a later message never
// carries an earlier timestamp.
type Message struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	NodeStatus *NodeStatus     `json:"node_status,omitempty"`
	Router     *RouterDecision `json:"router_decision,omitempty"`
	Token      *LLMToken       `json:"llm_token,omitempty"`
	Tool       *ToolExecution  `json:"tool_execution,omitempty"`
	File       *FileGenerated  `json:"file_generated,omitempty"`
	Thinking   *AgentThinking  `json:"agent_thinking,omitempty"`
	Notice     *SystemNotice   `json:"system_notice,omitempty"`
}

// NodeStatus reports a workflow node entering or leaving a phase.
type NodeStatus struct {
	NodeName  string `json:"node_name"`
	Phase     string `json:"phase"` // start, end, error
	AgentName string `json:"agent_name,omitempty"`
	Details   string `json:"details,omitempty"`
	ErrorInfo string `json:"error_info,omitempty"`
}

// RouterDecision reports a routing choice between workflow paths.
type RouterDecision struct {
	Decision       string   `json:"decision"`
	Confidence     float64  `json:"confidence,omitempty"`
	AvailablePaths []string `json:"available_paths,omitempty"`
	SelectedPath   string   `json:"selected_path,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// LLMToken carries one increment of model output.
type LLMToken struct {
	Phase      string `json:"phase"` // start, token, end
	Content    string `json:"content"`
	Source     string `json:"source,omitempty"`
	ModelName  string `json:"model_name,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
}

// ToolExecution reports tool invocation lifecycle and results.
type ToolExecution struct {
	ToolName     string `json:"tool_name"`
	Phase        string `json:"phase"` // start, progress, result, error
	Status       string `json:"status,omitempty"`
	Progress     int    `json:"progress,omitempty"`
	Result       string `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FileGenerated announces an artifact produced by the agent.
type FileGenerated struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// AgentThinking carries intermediate reasoning output.
type AgentThinking struct {
	AgentName    string `json:"agent_name"`
	ThinkingType string `json:"thinking_type,omitempty"`
	Content      string `json:"content"`
	Step         int    `json:"step,omitempty"`
	TotalSteps   int    `json:"total_steps,omitempty"`
}

// SystemNotice carries out-of-band warnings and errors.
type SystemNotice struct {
	Severity         string   `json:"severity"` // info, warning, error
	Message          string   `json:"message"`
	Details          string   `json:"details,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// newMessage builds the union shell. Callers attach exactly one variant.
func newMessage(kind Kind, ts time.Time) *Message {
	return &Message{Kind: kind, Timestamp: ts}
}

// Validate checks that the variant pointer matches the kind tag.
func (m *Message) Validate() error {
	set := map[Kind]bool{
		KindNodeStatus:     m.NodeStatus != nil,
		KindRouterDecision: m.Router != nil,
		KindLLMToken:       m.Token != nil,
		KindToolExecution:  m.Tool != nil,
		KindFileGenerated:  m.File != nil,
		KindAgentThinking:  m.Thinking != nil,
		KindSystemNotice:   m.Notice != nil,
	}
	ok, known := set[m.Kind]
	if !known {
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	if !ok {
		return fmt.Errorf("message kind %q has no payload", m.Kind)
	}
	count := 0
	for _, s := range set {
		if s {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("message kind %q carries %d payloads", m.Kind, count)
	}
	return nil
}

// Content returns the human-readable text carried by the message, if any.
func (m *Message) Content() string {
	switch m.Kind {
	case KindLLMToken:
		return m.Token.Content
	case KindAgentThinking:
		return m.Thinking.Content
	case KindSystemNotice:
		return m.Notice.Message
	case KindNodeStatus:
		return m.NodeStatus.Details
	case KindToolExecution:
		return m.Tool.Result
	case KindRouterDecision:
		return m.Router.Reasoning
	case KindFileGenerated:
		return m.File.Description
	}
	return ""
}

func (m *Message) marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func unmarshalMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
