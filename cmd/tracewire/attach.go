package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drewfead/tracewire/internal/transport"
)

var (
	attachFlags streamFlags

	attachURL         string
	attachWS          bool
	attachTokenSecret string
	attachHeaders     []string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a live trace endpoint",
	Long: `Attach to a server-sent-events endpoint (or a WebSocket one with
--ws) and stream segments until the upstream closes.

When a token secret is configured, each connection mints a short-lived
bearer token instead of sending a static credential.`,
	RunE: runAttach,
}

func init() {
	attachFlags.register(attachCmd)
	attachCmd.Flags().StringVar(&attachURL, "url", "", "Stream endpoint URL (default from config)")
	attachCmd.Flags().BoolVar(&attachWS, "ws", false, "Use WebSocket instead of SSE")
	attachCmd.Flags().StringVar(&attachTokenSecret, "token-secret", "", "HS256 secret for minting bearer tokens")
	attachCmd.Flags().StringArrayVarP(&attachHeaders, "header", "H", nil, "Extra request header (key: value), repeatable")
}

func runAttach(cmd *cobra.Command, args []string) error {
	flags := attachFlags

	url := attachURL
	if url == "" {
		url = cfg.Transport.URL
	}
	if url == "" {
		return fmt.Errorf("no endpoint: pass --url or set transport.url in config")
	}

	secret := attachTokenSecret
	if secret == "" {
		secret = cfg.Transport.TokenSecret
	}
	subject := flags.conversationID
	if subject == "" {
		subject = cfg.Transport.Subject
	}

	headers := make(map[string]string, len(cfg.Transport.Headers)+len(attachHeaders))
	for k, v := range cfg.Transport.Headers {
		headers[k] = v
	}
	for _, h := range attachHeaders {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("malformed header %q, want key: value", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	opts := transport.SSEOptions{
		URL:         url,
		TokenSecret: secret,
		Subject:     subject,
		Headers:     headers,
	}

	var (
		src transport.Source
		err error
	)
	if attachWS || cfg.Transport.WebSocket {
		src, err = transport.OpenWS(cmd.Context(), opts)
	} else {
		src, err = transport.OpenSSE(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}

	return runStream(cmd.Context(), src, flags)
}
