package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

// secretsFile keeps secret keys in a 0600 JSON file next to the data
// directory, apart from config.json.
type secretsFile struct {
	path string
}

func newSecretsFile(path string) *secretsFile {
	return &secretsFile{path: path}
}

func (s *secretsFile) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (s *secretsFile) Get(key string) (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("secret %q not found", key)
	}
	return val, nil
}

func (s *secretsFile) Set(key, value string) error {
	secrets, err := s.read()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[key] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// EnsureServerToken returns the configured API token, generating and storing
// a new one on first use.
func EnsureServerToken(cfg *Config) (token string, created bool, err error) {
	return ensureServerToken(cfg, newSecretsFile(secretsFilePath()))
}

func ensureServerToken(cfg *Config, secrets secretStore) (string, bool, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, false, nil
	}
	token := uuid.NewString()
	if err := secrets.Set("server.token", token); err != nil {
		return "", false, fmt.Errorf("storing server token: %w", err)
	}
	cfg.Server.Token = token
	return token, true, nil
}
