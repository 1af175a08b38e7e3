// Package config provides configuration loading and structs for the PDF Buddy client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/pdfbuddy/internal/progress"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvAPIURL selects the backend base URL and overrides the config file.
const EnvAPIURL = "PDFBUDDY_API_URL"

// Config holds all configuration for the application.
type Config struct {
	Debug  bool         `yaml:"debug"`
	API    APIConfig    `yaml:"api"`
	Upload UploadConfig `yaml:"upload"`
	Chat   ChatConfig   `yaml:"chat"`
	Server ServerConfig `yaml:"server"`
	Watch  WatchConfig  `yaml:"watch"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout is zero by default: the backend's own timeout governs.
	Timeout time.Duration `yaml:"timeout"`
}

// UploadConfig holds the progress ramps shown while a document uploads and indexes.
type UploadConfig struct {
	Ramp      progress.Config `yaml:"ramp"`
	IndexRamp progress.Config `yaml:"index_ramp"`
}

// ChatConfig holds generate request settings.
type ChatConfig struct {
	TopSearches            int    `yaml:"top_searches"`
	Model                  string `yaml:"model"`
	MaxTokens              int    `yaml:"max_tokens"`
	ClearReferencesOnError bool   `yaml:"clear_references_on_error"`
}

// ServerConfig holds local view server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a config with only defaults applied, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path. Used for persisting watch directory changes.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SaveWatchDirectories replaces watch.directories in the file at path and keeps every other
// key as the file has it, so values that came from the environment or flags are not written.
// A missing file is created.
func SaveWatchDirectories(path string, dirs []string) error {
	doc := map[string]interface{}{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read config: %w", err)
	}
	watch, _ := doc["watch"].(map[string]interface{})
	if watch == nil {
		watch = map[string]interface{}{}
	}
	watch["directories"] = append([]string{}, dirs...)
	doc["watch"] = watch

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv loads envFile when it exists and lets the environment override the backend URL.
// A missing envFile is not an error.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.API.BaseURL = v
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
