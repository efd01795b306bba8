package viewer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/drewfead/tracewire/internal/segment"
	"github.com/drewfead/tracewire/internal/tui"
)

// renderTimeline renders the segment timeline view.
func (m *Model) renderTimeline() string {
	if len(m.buf) == 0 {
		return tui.StyleEmptyState.Render("\n  No segments yet. Waiting for the stream...\n")
	}

	var b strings.Builder
	visible := m.visibleLines()

	header := fmt.Sprintf("  %-12s %-16s %s", "TIME", "TYPE", "CONTENT")
	b.WriteString(tui.StyleColumnHeader.Render(header))
	b.WriteString("\n")
	b.WriteString(tui.Divider(m.width))
	b.WriteString("\n")

	start := m.scrollOffset
	end := start + visible
	if end > len(m.buf) {
		end = len(m.buf)
	}

	for i := start; i < end; i++ {
		b.WriteString(m.renderSegmentLine(m.buf[i], i == m.selected))
		b.WriteString("\n")
	}

	for i := end - start; i < visible; i++ {
		b.WriteString("\n")
	}

	return b.String()
}

// renderSegmentLine renders one segment row.
func (m *Model) renderSegmentLine(seg segment.Segment, selected bool) string {
	var timeStr string
	if m.opts.ShowTimestamps {
		timeStr = seg.Timestamp.Format("15:04:05.000")
	} else {
		timeStr = seg.Timestamp.Format("15:04:05")
	}

	style := tui.SegmentStyle(string(seg.Type))
	typeName := truncate(string(seg.Type), 14)

	preview := segmentPreview(seg)
	maxPreview := m.width - 36
	if maxPreview < 10 {
		maxPreview = 10
	}
	preview = truncate(preview, maxPreview)

	indicator := "  "
	if selected {
		indicator = tui.StyleSelectedIndicator.Render("> ")
	}

	line := fmt.Sprintf("%s%s %s %s",
		indicator,
		tui.StyleMuted.Render(timeStr),
		style.Render(fmt.Sprintf("%-14s", typeName)),
		tui.StyleSecondary.Render(preview),
	)

	if selected {
		return tui.StyleSelected.Render(line)
	}
	return line
}

// segmentPreview builds the one-line summary shown in the timeline.
func segmentPreview(seg segment.Segment) string {
	flat := strings.Join(strings.Fields(seg.Content), " ")
	if flat != "" {
		return flat
	}

	// Structured segments without prose still carry identifying data.
	for _, key := range []string{"tool_name", "file_name", "node_name", "status_type", "task_type"} {
		if v, ok := seg.Data[key].(string); ok && v != "" {
			return key + ": " + v
		}
	}
	return ""
}

// renderDetail renders the segment detail view.
func (m *Model) renderDetail() string {
	if m.detail == nil {
		return tui.StyleEmptyState.Render("\n  No segment selected.\n")
	}

	var b strings.Builder
	seg := m.detail

	b.WriteString("\n")
	b.WriteString(tui.StyleTitle.Render("  Segment"))
	b.WriteString("\n")
	b.WriteString(tui.Divider(m.width))
	b.WriteString("\n\n")

	b.WriteString(m.detailField("Type", string(seg.Type)))
	b.WriteString(m.detailField("Timestamp", seg.Timestamp.Format(time.RFC3339Nano)))

	if len(seg.Data) > 0 {
		keys := make([]string, 0, len(seg.Data))
		for k := range seg.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(m.detailField(k, fmt.Sprintf("%v", seg.Data[k])))
		}
	}

	if seg.Content != "" {
		b.WriteString("\n")
		b.WriteString(tui.Divider(m.width / 2))
		b.WriteString("\n")
		b.WriteString(m.renderContent(seg))
	}

	return b.String()
}

// renderContent renders the segment body, as markdown for prose types
// when a renderer is available.
func (m *Model) renderContent(seg *segment.Segment) string {
	switch seg.Type {
	case segment.TypeAgentThinking, segment.TypeText, segment.TypeAnalysisResult:
		if m.markdown != nil {
			if out, err := m.markdown.Render(seg.Content); err == nil {
				return out
			}
		}
	case segment.TypeToolExecution, segment.TypeFileGenerated:
		// Structured bodies are often JSON; pretty print when they are.
		var pretty map[string]any
		if json.Unmarshal([]byte(seg.Content), &pretty) == nil {
			if formatted, err := json.MarshalIndent(pretty, "  ", "  "); err == nil {
				return tui.StyleSecondary.Render("  " + string(formatted))
			}
		}
	}
	return tui.StyleSecondary.Render("  " + seg.Content)
}

// detailField renders a labeled field.
func (m *Model) detailField(label, value string) string {
	return fmt.Sprintf("  %s %s\n",
		tui.StyleMuted.Render(fmt.Sprintf("%-12s:", label)),
		tui.StyleNormal.Render(value),
	)
}

// truncate shortens a string to max length.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max < 4 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
