// Command tracewire tails an agent execution trace and renders it as
// typed segments.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/drewfead/tracewire/internal/config"
	"github.com/drewfead/tracewire/internal/logging"
)

// Version is set at build time
var Version = "dev"

var cfg *config.Config

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	// Top-level panic recovery
	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, "component", "main")
			fmt.Fprintf(os.Stderr, "FATAL: unrecovered panic: %v\n", r)
			exitCode = 2
		}
	}()

	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	if err := logging.Init(logging.Config{
		Level:     parseLogLevel(cfg.Log.Level),
		SentryDSN: cfg.Log.SentryDSN,
		Env:       getEnv(),
		Version:   Version,
		LogFile:   cfg.Log.File,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Flush(2 * time.Second)

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "tracewire",
	Short: "Typed segment view of live agent execution traces",
	Long: `tracewire ingests a line-oriented agent trace stream and turns it
into ordered, typed segments: node status, tool executions, generated
files, agent thinking, analysis results, and system messages.

Sources:
  tail    - Read a trace from a file or stdin
  attach  - Attach to a live SSE or WebSocket endpoint

Examples:
  tracewire tail trace.log            # Replay a captured trace
  cat trace.log | tracewire tail -    # Pipe a trace through
  tracewire attach --url https://host/stream?id=c1
  tracewire diags -n 20               # Recent recovery diagnostics
`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tracewire %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(diagsCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv() string {
	if env := os.Getenv("TRACEWIRE_ENV"); env != "" {
		return env
	}
	return "development"
}
