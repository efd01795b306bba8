// Package config handles tracewire configuration loading and validation.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/drewfead/tracewire/internal/segment"
)

// Config is the root configuration for tracewire.
type Config struct {
	Stream      StreamConfig      `yaml:"stream"`
	Transport   TransportConfig   `yaml:"transport"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Log         LogConfig         `yaml:"log"`
	UI          UIConfig          `yaml:"ui"`
}

// StreamConfig tunes classification and merging.
type StreamConfig struct {
	// StatusPhrases promote matching token runs to status messages.
	// Entries here replace the built-in list entirely.
	StatusPhrases []segment.StatusPhrase `yaml:"status_phrases"`
	MergeMaxLen   int                    `yaml:"merge_max_len"`
	MergeShortLen int                    `yaml:"merge_short_len"`
	// SegmentBuffer sizes the pipeline's outbound channel.
	SegmentBuffer int `yaml:"segment_buffer"`
}

// TransportConfig defines the default upstream attachment.
type TransportConfig struct {
	URL string `yaml:"url"`
	// TokenSecret supports ${ENV_VAR} expansion so the shared secret
	// stays out of the config file.
	TokenSecret string            `yaml:"token_secret"`
	Subject     string            `yaml:"subject"`
	Headers     map[string]string `yaml:"headers"`
	WebSocket   bool              `yaml:"websocket"`
}

// DiagnosticsConfig defines the recovery journal.
type DiagnosticsConfig struct {
	Database string `yaml:"database"`
	// MemorySize is the in-process ring capacity.
	MemorySize int `yaml:"memory_size"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	File      string `yaml:"file"`
	Level     string `yaml:"level"`
	SentryDSN string `yaml:"sentry_dsn"`
}

// UIConfig defines viewer appearance.
type UIConfig struct {
	Theme          string `yaml:"theme"`
	Markdown       bool   `yaml:"markdown"`
	ShowTimestamps bool   `yaml:"show_timestamps"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	def := segment.DefaultOptions()
	return &Config{
		Stream: StreamConfig{
			StatusPhrases: def.StatusPhrases,
			MergeMaxLen:   def.MergeMaxLen,
			MergeShortLen: def.MergeShortLen,
			SegmentBuffer: 64,
		},
		Diagnostics: DiagnosticsConfig{
			Database:   filepath.Join(homeDir, ".local/share/tracewire/diagnostics.db"),
			MemorySize: 256,
		},
		Log: LogConfig{
			File:  filepath.Join(homeDir, ".local/share/tracewire/tracewire.log"),
			Level: "info",
		},
		UI: UIConfig{
			Theme:          "tokyo-night",
			Markdown:       true,
			ShowTimestamps: true,
		},
	}
}

// Load reads configuration from the default path or creates default config.
func Load() (*Config, error) {
	configPath := DefaultConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.expandEnvVars()
	return cfg, nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	if p := os.Getenv("TRACEWIRE_CONFIG"); p != "" {
		return p
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config/tracewire/config.yaml")
}

// ClassifierOptions maps the stream section onto classifier options.
func (c *Config) ClassifierOptions() segment.Options {
	return segment.Options{
		StatusPhrases: c.Stream.StatusPhrases,
		MergeMaxLen:   c.Stream.MergeMaxLen,
		MergeShortLen: c.Stream.MergeShortLen,
	}
}

func (c *Config) expandEnvVars() {
	c.Transport.TokenSecret = os.ExpandEnv(c.Transport.TokenSecret)
	c.Log.SentryDSN = os.ExpandEnv(c.Log.SentryDSN)
}
