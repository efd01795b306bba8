package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drewfead/tracewire/internal/diaglog"
)

var (
	diagsConversation string
	diagsLimit        int
	diagsJSON         bool
)

var diagsCmd = &cobra.Command{
	Use:   "diags",
	Short: "List recorded stream diagnostics",
	Long: `List recovery diagnostics from the journal: skipped envelopes,
dropped markers, and lifecycle errors, newest first. The stream itself
is never persisted; only these recovery records are.`,
	RunE: runDiags,
}

func init() {
	diagsCmd.Flags().StringVar(&diagsConversation, "conversation", "", "Filter by conversation ID")
	diagsCmd.Flags().IntVarP(&diagsLimit, "limit", "n", 50, "Maximum entries to show")
	diagsCmd.Flags().BoolVar(&diagsJSON, "json", false, "Emit JSON lines")
}

func runDiags(cmd *cobra.Command, args []string) error {
	journal, err := diaglog.OpenSQLiteJournal(cfg.Diagnostics.Database)
	if err != nil {
		return fmt.Errorf("open diagnostics journal: %w", err)
	}
	defer journal.Close()

	diags, err := journal.List(diagsConversation, diagsLimit)
	if err != nil {
		return fmt.Errorf("list diagnostics: %w", err)
	}

	if len(diags) == 0 {
		fmt.Println("No diagnostics recorded.")
		return nil
	}

	for _, d := range diags {
		if diagsJSON {
			line, err := json.Marshal(d)
			if err != nil {
				continue
			}
			fmt.Println(string(line))
			continue
		}

		fmt.Printf("%s %-10s %s", d.Timestamp.Format("2006-01-02 15:04:05"), d.Stage, d.Message)
		if d.ConversationID != "" {
			fmt.Printf(" [%s]", d.ConversationID)
		}
		fmt.Println()
		if d.Line != "" {
			fmt.Printf("    %s\n", strings.ReplaceAll(d.Line, "\n", "\\n"))
		}
	}
	return nil
}
