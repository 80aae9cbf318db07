package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration read from a TOML string such as "800ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the global ~/.boss/config.toml.
type Config struct {
	DefaultSession string        `toml:"default_session"`
	LogLevel       string        `toml:"log_level"`
	AI             AIConfig      `toml:"ai"`
	Chat           ChatConfig    `toml:"chat"`
	Story          StoryConfig   `toml:"story"`
	Call           CallConfig    `toml:"call"`
	Metrics        MetricsConfig `toml:"metrics"`
}

// AIConfig configures the Gemini bridge.
type AIConfig struct {
	APIKey            string   `toml:"api_key"`
	Endpoint          string   `toml:"endpoint"`
	Model             string   `toml:"model"`
	LiveEndpoint      string   `toml:"live_endpoint"`
	LiveModel         string   `toml:"live_model"`
	MaxAttempts       int      `toml:"max_attempts"`
	BaseDelay         Duration `toml:"base_delay"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	RequestTimeout    Duration `toml:"request_timeout"`
	TranslateLanguage string   `toml:"translate_language"`
}

// ChatConfig tunes the conversation manager.
type ChatConfig struct {
	DeliveryDelay Duration `toml:"delivery_delay"`
}

// StoryConfig tunes the story viewer.
type StoryConfig struct {
	ImageDuration  Duration `toml:"image_duration"`
	PressThreshold Duration `toml:"press_threshold"`
	FrameInterval  Duration `toml:"frame_interval"`
	InboxEnabled   bool     `toml:"inbox_enabled"`
}

// CallConfig selects media devices and call timing.
type CallConfig struct {
	InviteDelay    Duration `toml:"invite_delay"`
	InputDevice    string   `toml:"input_device"`
	OutputDevice   string   `toml:"output_device"`
	CameraSnapshot string   `toml:"camera_snapshot"`
	VideoInterval  Duration `toml:"video_interval"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		AI: AIConfig{
			Endpoint:          "https://generativelanguage.googleapis.com",
			Model:             "gemini-3-flash-preview",
			LiveEndpoint:      "wss://generativelanguage.googleapis.com",
			LiveModel:         "gemini-2.5-flash-native-audio-preview-12-2025",
			MaxAttempts:       3,
			BaseDelay:         Duration{time.Second},
			RequestsPerSecond: 2,
			Burst:             4,
			RequestTimeout:    Duration{60 * time.Second},
			TranslateLanguage: "Bengali",
		},
		Chat: ChatConfig{
			DeliveryDelay: Duration{800 * time.Millisecond},
		},
		Story: StoryConfig{
			ImageDuration:  Duration{5 * time.Second},
			PressThreshold: Duration{250 * time.Millisecond},
			FrameInterval:  Duration{16 * time.Millisecond},
			InboxEnabled:   true,
		},
		Call: CallConfig{
			InviteDelay:   Duration{4 * time.Second},
			VideoInterval: Duration{time.Second},
		},
	}
}

// Load reads config from the given path on top of Default. Returns an error
// if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that treats a missing file as the default config.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides secrets from the environment: GEMINI_API_KEY, then
// API_KEY.
func (c *Config) ApplyEnv() {
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.AI.APIKey = v
			return
		}
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
