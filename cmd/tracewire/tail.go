package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drewfead/tracewire/internal/transport"
)

var tailFlags streamFlags

var tailCmd = &cobra.Command{
	Use:   "tail [file]",
	Short: "Read a trace from a file or stdin",
	Long: `Read a captured trace from a file, or from stdin when the argument
is "-" or omitted. Each segment is printed as it completes; pass --tui
for the interactive viewer or --json for machine-readable output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTail,
}

func init() {
	tailFlags.register(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	flags := tailFlags

	var in *os.File
	if len(args) == 0 || args[0] == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		in = f
		if flags.conversationID == "" {
			flags.conversationID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
	}

	src := transport.NewReaderSource(cmd.Context(), in)
	return runStream(cmd.Context(), src, flags)
}
