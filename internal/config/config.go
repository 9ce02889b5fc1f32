package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Extract ExtractConfig
	Batch   BatchConfig
	Adjust  AdjustConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type ExtractConfig struct {
	ProfilePath string
	LabelMatch  string
	MaxFileSize int
}

type BatchConfig struct {
	Workers int
}

type AdjustConfig struct {
	BaseURL          string
	Model            string
	OpenRouterAPIKey string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Extract: ExtractConfig{
			LabelMatch:  "exact",
			MaxFileSize: 20 << 20,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Adjust: AdjustConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "anthropic/claude-sonnet-4",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/cvextract/config.json, then applies CVX_* environment
// variables. Secrets missing from the environment are read from
// $XDG_DATA_HOME/cvextract/secrets.json.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), newSecretsFile(secretsFilePath()))
}

// secretStore abstracts secret storage for testing.
type secretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Extract.LabelMatch {
	case "exact", "prefix":
	default:
		errs = append(errs, fmt.Errorf("extract.label_match must be exact or prefix, got %q", c.Extract.LabelMatch))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers))
	}
	if c.Extract.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("extract.max_file_size must not be negative, got %d", c.Extract.MaxFileSize))
	}
	return errors.Join(errs...)
}

// RequireOpenRouterKey returns an error naming where to put the key when it
// is not configured.
func (c Config) RequireOpenRouterKey() error {
	if c.Adjust.OpenRouterAPIKey != "" {
		return nil
	}
	return errors.New("missing required config: OpenRouter API key. " +
		"Set it via environment variable CVX_OPENROUTER_API_KEY " +
		"or `cvextract config set adjust.openrouter_api_key <key>`")
}
