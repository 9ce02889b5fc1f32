package config

import (
	"fmt"
	"strconv"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from cfg. Secret values are
// masked.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		value := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			value = maskSecret(value)
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  value,
		})
	}
	return result
}

func maskSecret(v string) string {
	if v == "" {
		return "(not set)"
	}
	if len(v) <= 8 {
		return "********"
	}
	return v[:4] + "…" + v[len(v)-2:]
}

// SetKey writes a config key. Secrets go to the secrets file, everything else
// to the config file.
func SetKey(key, value string) error {
	return setKeyWith(newFileBackend(configFilePath()), newSecretsFile(secretsFilePath()), key, value)
}

func setKeyWith(b ConfigBackend, secrets secretStore, key, value string) error {
	s, ok := findSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return secrets.Set(key, value)
	}

	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		return b.SetInt(key, i)
	default:
		if value == "" {
			return b.Delete(key)
		}
		return b.SetString(key, value)
	}
}

// ValidKeys returns every config key name.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
