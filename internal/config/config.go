package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	OCR         OCRConfig         `yaml:"ocr"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
}

type ServerConfig struct {
	Port           string `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type IngestConfig struct {
	MaxMedia         int           `yaml:"max_media"`
	MediaTimeout     time.Duration `yaml:"media_timeout"`
	MediaConcurrency int           `yaml:"media_concurrency"`
	MaxEntryBytes    int64         `yaml:"max_entry_bytes"`
}

type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Model   string   `yaml:"model"`
}

type TranscriberConfig struct {
	Backend string `yaml:"backend"`
}

type OCRConfig struct {
	Backend  string        `yaml:"backend"`
	URL      string        `yaml:"url"`
	MinChars int           `yaml:"min_chars"`
	Timeout  time.Duration `yaml:"timeout"`
}

type AnalysisConfig struct {
	Backend    string        `yaml:"backend"`
	GatewayURL string        `yaml:"gateway_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	MaxChars   int           `yaml:"max_chars"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetry   time.Duration `yaml:"max_retry"`
}

const (
	BackendGemini  = "gemini"
	BackendGateway = "gateway"
	BackendHTTP    = "http"
	BackendMock    = "mock"
)

// Load reads .env, then the optional YAML file at path, then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // loads .env

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = envOr("PORT", c.Server.Port)
	if keys := os.Getenv("GEMINI_API_KEYS"); keys != "" {
		c.Gemini.APIKeys = splitList(keys)
	}
	c.Gemini.Model = envOr("GEMINI_MODEL", c.Gemini.Model)
	c.OCR.URL = envOr("OCR_URL", c.OCR.URL)
	c.OCR.Backend = envOr("OCR_BACKEND", c.OCR.Backend)
	c.Transcriber.Backend = envOr("TRANSCRIBE_BACKEND", c.Transcriber.Backend)
	c.Analysis.Backend = envOr("ANALYSIS_BACKEND", c.Analysis.Backend)
	c.Analysis.GatewayURL = envOr("LLM_GATEWAY_URL", c.Analysis.GatewayURL)
	c.Analysis.APIKey = envOr("LLM_API_KEY", c.Analysis.APIKey)
	c.Analysis.Model = envOr("LLM_MODEL", c.Analysis.Model)

	// USE_MOCK_* switches override the configured backends
	if os.Getenv("USE_MOCK_TRANSCRIBE") == "true" {
		c.Transcriber.Backend = BackendMock
	}
	if os.Getenv("USE_MOCK_OCR") == "true" {
		c.OCR.Backend = BackendMock
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		c.Analysis.Backend = BackendMock
	}

	var err error
	if c.Ingest.MaxMedia, err = envInt("MAX_MEDIA", c.Ingest.MaxMedia); err != nil {
		return err
	}
	if c.Ingest.MediaConcurrency, err = envInt("MEDIA_CONCURRENCY", c.Ingest.MediaConcurrency); err != nil {
		return err
	}
	if c.Ingest.MediaTimeout, err = envDuration("MEDIA_TIMEOUT", c.Ingest.MediaTimeout); err != nil {
		return err
	}
	if c.Analysis.Timeout, err = envDuration("LLM_TIMEOUT", c.Analysis.Timeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Ingest.MaxMedia < 0 {
		return fmt.Errorf("ingest.max_media must not be negative")
	}
	if c.Ingest.MediaConcurrency < 0 {
		return fmt.Errorf("ingest.media_concurrency must not be negative")
	}
	if c.OCR.MinChars < 0 {
		return fmt.Errorf("ocr.min_chars must not be negative")
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}
	if c.Ingest.MaxMedia == 0 {
		c.Ingest.MaxMedia = 8
	}
	if c.Ingest.MediaConcurrency == 0 {
		c.Ingest.MediaConcurrency = 1
	}
	if c.Ingest.MediaTimeout == 0 {
		c.Ingest.MediaTimeout = 60 * time.Second
	}
	if c.Ingest.MaxEntryBytes == 0 {
		c.Ingest.MaxEntryBytes = 32 << 20
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Transcriber.Backend == "" {
		c.Transcriber.Backend = BackendGemini
	}
	if c.OCR.Backend == "" {
		c.OCR.Backend = BackendGemini
	}
	if c.OCR.MinChars == 0 {
		c.OCR.MinChars = 10
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = 45 * time.Second
	}
	if c.Analysis.Backend == "" {
		c.Analysis.Backend = BackendGateway
	}
	if c.Analysis.MaxChars == 0 {
		c.Analysis.MaxChars = 500000
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 90 * time.Second
	}
	if c.Analysis.MaxRetry == 0 {
		c.Analysis.MaxRetry = 2 * time.Minute
	}

	switch c.Transcriber.Backend {
	case BackendGemini, BackendMock:
	default:
		return fmt.Errorf("transcriber.backend %q is not supported", c.Transcriber.Backend)
	}
	switch c.OCR.Backend {
	case BackendGemini, BackendMock:
	case BackendHTTP:
		if c.OCR.URL == "" {
			return fmt.Errorf("ocr.url is required for the http backend")
		}
	default:
		return fmt.Errorf("ocr.backend %q is not supported", c.OCR.Backend)
	}
	switch c.Analysis.Backend {
	case BackendGateway, BackendGemini, BackendMock:
	default:
		return fmt.Errorf("analysis.backend %q is not supported", c.Analysis.Backend)
	}
	return nil
}

// NeedsGemini reports whether any backend talks to Gemini.
func (c *Config) NeedsGemini() bool {
	return c.Transcriber.Backend == BackendGemini || c.OCR.Backend == BackendGemini || c.Analysis.Backend == BackendGemini
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
