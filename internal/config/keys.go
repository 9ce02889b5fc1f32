package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CVX_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "CVX_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CVX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CVX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "extract.profile_path", typ: kString, env: "CVX_EXTRACT_PROFILE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Extract.ProfilePath = v.(string) },
		extract: func(cfg Config) any { return cfg.Extract.ProfilePath },
	},
	{
		key: "extract.label_match", typ: kString, env: "CVX_EXTRACT_LABEL_MATCH",
		apply:   func(cfg *Config, v any) { cfg.Extract.LabelMatch = v.(string) },
		extract: func(cfg Config) any { return cfg.Extract.LabelMatch },
	},
	{
		key: "extract.max_file_size", typ: kInt, env: "CVX_EXTRACT_MAX_FILE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Extract.MaxFileSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Extract.MaxFileSize },
	},
	{
		key: "batch.workers", typ: kInt, env: "CVX_BATCH_WORKERS",
		apply:   func(cfg *Config, v any) { cfg.Batch.Workers = v.(int) },
		extract: func(cfg Config) any { return cfg.Batch.Workers },
	},
	{
		key: "adjust.base_url", typ: kString, env: "CVX_ADJUST_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Adjust.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Adjust.BaseURL },
	},
	{
		key: "adjust.model", typ: kString, env: "CVX_ADJUST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Adjust.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Adjust.Model },
	},
	{
		key: "adjust.openrouter_api_key", typ: kString, env: "CVX_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Adjust.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Adjust.OpenRouterAPIKey },
	},
}

func findSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring non-integer environment value", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
