package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("TRACEWIRE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stream.MergeMaxLen != 3000 || cfg.Stream.MergeShortLen != 100 {
		t.Errorf("merge defaults %d/%d", cfg.Stream.MergeMaxLen, cfg.Stream.MergeShortLen)
	}
	if len(cfg.Stream.StatusPhrases) == 0 {
		t.Error("expected built-in status phrases")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level %q", cfg.Log.Level)
	}
}

func TestLoadOverridesAndExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
stream:
  merge_max_len: 500
  status_phrases:
    - phrase: "deployment finished"
      status_type: "deploy_done"
transport:
  url: "https://traces.internal/stream"
  token_secret: "${TRACEWIRE_TEST_SECRET}"
  websocket: true
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACEWIRE_CONFIG", path)
	t.Setenv("TRACEWIRE_TEST_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stream.MergeMaxLen != 500 {
		t.Errorf("merge_max_len %d", cfg.Stream.MergeMaxLen)
	}
	// Unset fields keep their defaults.
	if cfg.Stream.MergeShortLen != 100 {
		t.Errorf("merge_short_len %d", cfg.Stream.MergeShortLen)
	}
	if len(cfg.Stream.StatusPhrases) != 1 || cfg.Stream.StatusPhrases[0].StatusType != "deploy_done" {
		t.Errorf("status phrases %+v", cfg.Stream.StatusPhrases)
	}
	if cfg.Transport.TokenSecret != "s3cret" {
		t.Errorf("token secret %q", cfg.Transport.TokenSecret)
	}
	if !cfg.Transport.WebSocket {
		t.Error("websocket flag lost")
	}

	opts := cfg.ClassifierOptions()
	if opts.MergeMaxLen != 500 || len(opts.StatusPhrases) != 1 {
		t.Errorf("classifier options %+v", opts)
	}
}
