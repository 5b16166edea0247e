package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"relay/models"
)

//go:embed default-config.json
var defaultConfigJSON []byte

// Config is the persistent application configuration. API keys may be given
// directly or as env:VAR_NAME references.
type Config struct {
	Debug           bool                 `json:"debug"`
	AnthropicAPIKey string               `json:"anthropic_api_key"`
	OpenAIAPIKey    string               `json:"openai_api_key"`
	OpenAIBaseURL   string               `json:"openai_base_url"`
	CatalogBaseURL  string               `json:"catalog_base_url"`
	CatalogAPIKey   string               `json:"catalog_api_key"`
	DefaultModel    string               `json:"default_model"`
	Models          []models.ModelConfig `json:"models"`
}

const configFileName = "config.json"

// relayDir returns the application home directory (~/.relay), creating it if
// needed.
func relayDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".relay"
	}
	dir := filepath.Join(homeDir, ".relay")
	_ = os.MkdirAll(dir, 0o700)
	return dir
}

// LoadConfig loads the configuration file, creating it from the embedded
// defaults when missing. A corrupted file is replaced with defaults rather
// than aborting startup.
func LoadConfig() (*Config, error) {
	configPath := filepath.Join(relayDir(), configFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config, err := defaultConfig()
		if err != nil {
			return nil, err
		}
		if err := SaveConfig(config); err != nil {
			return nil, fmt.Errorf("saving default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		fmt.Printf("Warning: config file is corrupted, recreating defaults\n")
		defaults, derr := defaultConfig()
		if derr != nil {
			return nil, derr
		}
		if err := SaveConfig(defaults); err != nil {
			return nil, fmt.Errorf("saving default config: %w", err)
		}
		return defaults, nil
	}

	if config.DefaultModel == "" && len(config.Models) > 0 {
		config.DefaultModel = config.Models[0].Alias
	}
	return &config, nil
}

// SaveConfig writes the configuration back to disk.
func SaveConfig(config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	configPath := filepath.Join(relayDir(), configFileName)
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func defaultConfig() (*Config, error) {
	var config Config
	if err := json.Unmarshal(defaultConfigJSON, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling default config: %w", err)
	}
	return &config, nil
}

// resolveAPIKey resolves env:VAR_NAME references to the environment.
func resolveAPIKey(configValue string) string {
	if strings.HasPrefix(configValue, "env:") {
		return os.Getenv(strings.TrimPrefix(configValue, "env:"))
	}
	return configValue
}
