// Package viewer provides the live segment timeline TUI.
package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/drewfead/tracewire/internal/segment"
	"github.com/drewfead/tracewire/internal/tui"
)

// View represents the current display mode.
type View int

const (
	ViewTimeline View = iota // Chronological segment list
	ViewDetail               // Expanded segment inspector
)

// Options configures the viewer.
type Options struct {
	ConversationID string
	Markdown       bool
	ShowTimestamps bool
	MaxSegments    int
}

// Model is the main viewer model.
type Model struct {
	segments <-chan segment.Segment
	opts     Options

	// Segment buffer, oldest first, capped at MaxSegments
	buf []segment.Segment

	// View state
	view         View
	width        int
	height       int
	selected     int
	scrollOffset int
	paused       bool
	streamClosed bool

	// Detail view state
	detail   *segment.Segment
	markdown *glamour.TermRenderer

	// Stats
	totalSegments int
	typeCounts    map[segment.Type]int

	// UI components
	spinner spinner.Model
	err     error
}

// NewModel creates a viewer over a segment channel. The channel closing
// is the stream's terminal signal; the viewer stays open for inspection
// afterward.
func NewModel(segments <-chan segment.Segment, opts Options) *Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = tui.StyleAccent

	if opts.MaxSegments <= 0 {
		opts.MaxSegments = 1000
	}

	m := &Model{
		segments:   segments,
		opts:       opts,
		buf:        make([]segment.Segment, 0, opts.MaxSegments),
		typeCounts: make(map[segment.Type]int),
		spinner:    s,
	}

	if opts.Markdown {
		// Rendering failures degrade to plain text; the viewer must not
		// refuse to start over a style problem.
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		); err == nil {
			m.markdown = r
		}
	}

	return m
}

// Messages

type segmentMsg segment.Segment

type streamClosedMsg struct{}

type errMsg error

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForSegments(),
	)
}

// listenForSegments returns a command waiting for the next segment.
// The command blocks; bubbletea runs it off the update loop.
func (m *Model) listenForSegments() tea.Cmd {
	return func() tea.Msg {
		seg, ok := <-m.segments
		if !ok {
			return streamClosedMsg{}
		}
		return segmentMsg(seg)
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case segmentMsg:
		if !m.paused {
			m.addSegment(segment.Segment(msg))
		}
		cmds = append(cmds, m.listenForSegments())

	case streamClosedMsg:
		m.streamClosed = true

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case errMsg:
		m.err = msg
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.view == ViewTimeline && m.selected > 0 {
			m.selected--
			m.ensureVisible()
		}
	case "down", "j":
		if m.view == ViewTimeline && m.selected < len(m.buf)-1 {
			m.selected++
			m.ensureVisible()
		}
	case "pgup":
		if m.view == ViewTimeline {
			m.selected -= m.visibleLines()
			if m.selected < 0 {
				m.selected = 0
			}
			m.ensureVisible()
		}
	case "pgdown":
		if m.view == ViewTimeline {
			m.selected += m.visibleLines()
			if m.selected >= len(m.buf) {
				m.selected = len(m.buf) - 1
			}
			if m.selected < 0 {
				m.selected = 0
			}
			m.ensureVisible()
		}
	case "home", "g":
		if m.view == ViewTimeline {
			m.selected = 0
			m.scrollOffset = 0
		}
	case "end", "G":
		if m.view == ViewTimeline && len(m.buf) > 0 {
			m.selected = len(m.buf) - 1
			m.ensureVisible()
		}

	case "enter":
		if m.view == ViewTimeline && len(m.buf) > 0 && m.selected < len(m.buf) {
			m.view = ViewDetail
			seg := m.buf[m.selected]
			m.detail = &seg
		}

	case "esc", "backspace":
		if m.view == ViewDetail {
			m.view = ViewTimeline
			m.detail = nil
		}

	case " ":
		m.paused = !m.paused

	case "t":
		m.opts.ShowTimestamps = !m.opts.ShowTimestamps

	case "c":
		m.buf = m.buf[:0]
		m.selected = 0
		m.scrollOffset = 0
		m.totalSegments = 0
		m.typeCounts = make(map[segment.Type]int)
	}

	return m, nil
}

// addSegment appends a segment, evicting the oldest once the buffer is
// full. The slice stays in chronological order so the timeline renders
// it directly.
func (m *Model) addSegment(seg segment.Segment) {
	m.totalSegments++
	m.typeCounts[seg.Type]++

	if len(m.buf) < m.opts.MaxSegments {
		m.buf = append(m.buf, seg)
	} else {
		copy(m.buf, m.buf[1:])
		m.buf[len(m.buf)-1] = seg
		if m.selected > 0 {
			m.selected--
		}
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}
	}

	// Follow the stream while the cursor sits at the bottom.
	if m.selected >= len(m.buf)-2 {
		m.selected = len(m.buf) - 1
		m.ensureVisible()
	}
}

// ensureVisible scrolls to keep the selected item visible.
func (m *Model) ensureVisible() {
	visible := m.visibleLines()
	if m.selected < m.scrollOffset {
		m.scrollOffset = m.selected
	} else if m.selected >= m.scrollOffset+visible {
		m.scrollOffset = m.selected - visible + 1
	}
}

// visibleLines returns the number of lines visible in the timeline.
func (m *Model) visibleLines() int {
	// Header (3 lines) + footer (2 lines)
	return m.height - 5
}

// View renders the model.
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.view {
	case ViewTimeline:
		b.WriteString(m.renderTimeline())
	case ViewDetail:
		b.WriteString(m.renderDetail())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the header bar.
func (m *Model) renderHeader() string {
	title := tui.StyleLogo.Render("tracewire")

	statusIcon := m.spinner.View()
	if m.streamClosed {
		statusIcon = tui.StyleMuted.Render("--")
	} else if m.paused {
		statusIcon = tui.StyleWarning.Render("||")
	}

	stats := fmt.Sprintf("%s %d segments", statusIcon, m.totalSegments)
	if m.opts.ConversationID != "" {
		stats += " | " + m.opts.ConversationID
	}

	gap := m.width - len(title) - len(stats) - 10
	if gap < 0 {
		gap = 1
	}

	return fmt.Sprintf("%s%s%s",
		title,
		strings.Repeat(" ", gap),
		tui.StyleMuted.Render(stats),
	)
}

// renderFooter renders the help bar.
func (m *Model) renderFooter() string {
	var help string
	switch m.view {
	case ViewTimeline:
		help = "j/k:navigate  enter:detail  space:pause  t:timestamps  c:clear  q:quit"
	case ViewDetail:
		help = "esc:back  q:quit"
	}

	var status string
	if m.streamClosed {
		status = tui.StyleInfo.Render(" [stream ended]")
	}

	return tui.StyleHelp.Render(help) + status
}
