// Package segment converts structured trace messages and loose agent
// text into ordered, renderable segments for a UI sink.
package segment

import "time"

// Type classifies a renderable segment.
type Type string

const (
	TypeText           Type = "text"
	TypeNodeStatus     Type = "node_status"
	TypeToolExecution  Type = "tool_execution"
	TypeFileGenerated  Type = "file_generated"
	TypeAgentThinking  Type = "agent_thinking"
	TypeSystemMessage  Type = "system_message"
	TypeAnalysisResult Type = "analysis_result"
)

// Segment is one renderable unit handed to the sink. Segments are
// immutable once emitted; only the classifier's in-flight accumulation
// mutates one before emission.
type Segment struct {
	Type      Type           `json:"type"`
	Content   string         `json:"content"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// withData sets a data key, allocating the map lazily.
func (s *Segment) withData(key string, value any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
}

// flowing reports whether a type reads as running prose, which decides
// the merge separator.
func flowing(t Type) bool {
	switch t {
	case TypeAgentThinking, TypeText, TypeAnalysisResult:
		return true
	}
	return false
}
