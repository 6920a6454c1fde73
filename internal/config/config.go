// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nextcloud/go_voice_bridge/internal/recording"
	"github.com/nextcloud/go_voice_bridge/internal/synthesis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	EngineGoogle = "google"
	EngineVosk   = "vosk"

	BackendMurf   = "murf"
	BackendGemini = "gemini"
)

type Config struct {
	LogLevel string `yaml:"logLevel"`
	DataDir  string `yaml:"dataDir"`

	HTTP        HTTPConfig        `yaml:"http"`
	Devices     DevicesConfig     `yaml:"devices"`
	Session     SessionConfig     `yaml:"session"`
	Murf        MurfConfig        `yaml:"murf"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Translation TranslationConfig `yaml:"translation"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Recording   RecordingConfig   `yaml:"recording"`
	History     HistoryConfig     `yaml:"history"`
	Sentry      SentryConfig      `yaml:"sentry"`
}

type HTTPConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// DevicesConfig names the device bound to each role, by index or name.
type DevicesConfig struct {
	Mic        string `yaml:"mic"`
	VirtualOut string `yaml:"virtualOut"`
	VirtualIn  string `yaml:"virtualIn"`
	Speaker    string `yaml:"speaker"`
}

// SessionConfig holds the languages and voices used by the headless run.
type SessionConfig struct {
	SourceLanguage string `yaml:"sourceLanguage"`
	TargetLanguage string `yaml:"targetLanguage"`
	VoiceToRemote  string `yaml:"voiceToRemote"`
	VoiceToLocal   string `yaml:"voiceToLocal"`
}

type MurfConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	StreamURL string `yaml:"streamURL"`
}

type RecognitionConfig struct {
	Engine           string `yaml:"engine"`
	CredentialsFile  string `yaml:"credentialsFile"`
	OutgoingModel    string `yaml:"outgoingModel"`
	IncomingModel    string `yaml:"incomingModel"`
	IncomingEnhanced bool   `yaml:"incomingEnhanced"`
	VoskModelsDir    string `yaml:"voskModelsDir"`
}

type TranslationConfig struct {
	Backend      string `yaml:"backend"`
	GeminiAPIKey string `yaml:"geminiAPIKey"`
	GeminiModel  string `yaml:"geminiModel"`
}

type SynthesisConfig struct {
	SampleRate int                  `yaml:"sampleRate"`
	Voice      synthesis.VoiceStyle `yaml:"voice"`
}

type RecordingConfig struct {
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
	Format   string `yaml:"format"`
	S3Bucket string `yaml:"s3Bucket"`
	S3Prefix string `yaml:"s3Prefix"`
	S3Region string `yaml:"s3Region"`
}

type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// LoadConfig reads .env from the working directory, then the YAML file at
// path (or $VB_CONFIG when path is empty), then applies environment
// overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	if path == "" {
		path = os.Getenv("VB_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.LogLevel, "VB_LOG_LEVEL")
	override(&c.DataDir, "VB_DATA_DIR")
	override(&c.HTTP.Addr, "VB_HTTP_ADDR")
	override(&c.HTTP.Token, "VB_API_TOKEN")
	override(&c.Murf.APIKey, "MURF_API_KEY")
	override(&c.Recognition.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	override(&c.Translation.GeminiAPIKey, "GEMINI_API_KEY")
	override(&c.Sentry.DSN, "SENTRY_DSN")
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:23100"
	}
	if c.Recognition.Engine == "" {
		c.Recognition.Engine = EngineGoogle
	}
	if c.Recognition.OutgoingModel == "" {
		c.Recognition.OutgoingModel = "default"
	}
	if c.Recognition.IncomingModel == "" {
		c.Recognition.IncomingModel = "latest_long"
		c.Recognition.IncomingEnhanced = true
	}
	if c.Recognition.VoskModelsDir == "" {
		c.Recognition.VoskModelsDir = filepath.Join(c.DataDir, "models")
	}
	if c.Translation.Backend == "" {
		c.Translation.Backend = BackendMurf
	}
	if c.Translation.GeminiModel == "" {
		c.Translation.GeminiModel = "gemini-2.0-flash"
	}
	if c.Synthesis.Voice.Style == "" {
		c.Synthesis.Voice = synthesis.DefaultVoiceStyle
	}
	if c.Recording.Dir == "" {
		c.Recording.Dir = c.DataDir
	}
	if c.Recording.Format == "" {
		c.Recording.Format = string(recording.FormatWAV)
	}
	if c.History.Dir == "" {
		c.History.Dir = filepath.Join(c.DataDir, "history")
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = "production"
	}
}

func (c *Config) validate() error {
	switch c.Recognition.Engine {
	case EngineGoogle, EngineVosk:
	default:
		return fmt.Errorf("%w: recognition engine %q (want google or vosk)", ErrInvalidConfig, c.Recognition.Engine)
	}
	switch c.Translation.Backend {
	case BackendMurf, BackendGemini:
	default:
		return fmt.Errorf("%w: translation backend %q (want murf or gemini)", ErrInvalidConfig, c.Translation.Backend)
	}
	if _, err := recording.ParseFormat(c.Recording.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Synthesis.SampleRate < 0 {
		return fmt.Errorf("%w: negative synthesis sample rate", ErrInvalidConfig)
	}
	return nil
}

// RequireCredentials checks the keys needed to run a translation session.
// Listing devices or languages works without them.
func (c *Config) RequireCredentials() error {
	if c.Murf.APIKey == "" {
		return fmt.Errorf("%w: MURF_API_KEY environment variable is required", ErrInvalidConfig)
	}
	if c.Recognition.Engine == EngineGoogle && c.Recognition.CredentialsFile == "" {
		return fmt.Errorf("%w: GOOGLE_APPLICATION_CREDENTIALS environment variable is required for the google engine", ErrInvalidConfig)
	}
	if c.Translation.Backend == BackendGemini && c.Translation.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for the gemini backend", ErrInvalidConfig)
	}
	return nil
}

// DeviceKeys maps role names to the configured device keys, skipping
// roles left empty.
func (c *Config) DeviceKeys() map[string]string {
	out := map[string]string{}
	for role, key := range map[string]string{
		"mic":         c.Devices.Mic,
		"virtual_out": c.Devices.VirtualOut,
		"virtual_in":  c.Devices.VirtualIn,
		"speaker":     c.Devices.Speaker,
	} {
		if key != "" {
			out[role] = key
		}
	}
	return out
}
