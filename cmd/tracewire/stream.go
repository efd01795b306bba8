package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/drewfead/tracewire/internal/diaglog"
	"github.com/drewfead/tracewire/internal/logging"
	"github.com/drewfead/tracewire/internal/pipeline"
	"github.com/drewfead/tracewire/internal/segment"
	"github.com/drewfead/tracewire/internal/transport"
	"github.com/drewfead/tracewire/internal/viewer"
)

// streamFlags are shared by tail and attach.
type streamFlags struct {
	conversationID string
	jsonOut        bool
	tuiOut         bool
}

func (f *streamFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.conversationID, "conversation", "", "Conversation ID to tag diagnostics with")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Emit segments as JSON lines")
	cmd.Flags().BoolVar(&f.tuiOut, "tui", false, "Open the interactive segment viewer")
}

// runStream drives a source through the pipeline and hands segments to
// the selected sink.
func runStream(parent context.Context, src transport.Source, flags streamFlags) error {
	defer src.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := diaglog.MultiRecorder{diaglog.NewMemoryRecorder(cfg.Diagnostics.MemorySize)}
	if journal, err := diaglog.OpenSQLiteJournal(cfg.Diagnostics.Database); err != nil {
		logging.Warn("diagnostics journal unavailable", "error", err)
	} else {
		defer journal.Close()
		recorder = append(recorder, journal)
	}

	p := pipeline.New(pipeline.Options{
		ConversationID: flags.conversationID,
		Classifier:     cfg.ClassifierOptions(),
		Recorder:       recorder,
		Logger:         logging.With("conversation", flags.conversationID),
		SegmentBuffer:  cfg.Stream.SegmentBuffer,
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- p.Run(ctx, src)
	}()

	if flags.tuiOut {
		model := viewer.NewModel(p.Segments(), viewer.Options{
			ConversationID: flags.conversationID,
			Markdown:       cfg.UI.Markdown,
			ShowTimestamps: cfg.UI.ShowTimestamps,
		})
		prog := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := prog.Run(); err != nil {
			return fmt.Errorf("viewer: %w", err)
		}
		stop()
		if err := <-runErr; err != nil && err != context.Canceled {
			return err
		}
		return nil
	}

	for seg := range p.Segments() {
		if flags.jsonOut {
			line, err := json.Marshal(seg)
			if err != nil {
				continue
			}
			fmt.Println(string(line))
		} else {
			fmt.Println(formatSegment(seg))
		}
	}

	if err := <-runErr; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// formatSegment renders one segment as a plain log line.
func formatSegment(seg segment.Segment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-15s", seg.Timestamp.Format("15:04:05.000"), seg.Type)

	if len(seg.Data) > 0 {
		keys := make([]string, 0, len(seg.Data))
		for k := range seg.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, seg.Data[k])
		}
	}

	if seg.Content != "" {
		content := seg.Content
		if strings.ContainsRune(content, '\n') {
			b.WriteString("\n  ")
			content = strings.ReplaceAll(content, "\n", "\n  ")
		} else {
			b.WriteString(" ")
		}
		b.WriteString(content)
	}

	return b.String()
}
