// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pii-redact/internal/detector"
	"pii-redact/internal/paths"
	"pii-redact/internal/redactors"
)

// Environment variables that override the config file
const (
	EnvDetectorURL     = "PII_DETECTOR_URL"
	EnvDetectorModel   = "PII_DETECTOR_MODEL"
	EnvDetectorTimeout = "PII_DETECTOR_TIMEOUT"
	EnvSessionStore    = "PII_SESSION_STORE"
	EnvListenAddr      = "PII_LISTEN_ADDR"
	EnvLogLevel        = "PII_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	// Default settings for the CLI
	Defaults struct {
		NoColor  bool   `yaml:"no_color"`
		Debug    bool   `yaml:"debug"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"defaults"`

	// Detector service settings
	Detector struct {
		URL                 string        `yaml:"url"`
		Language            string        `yaml:"language"`
		Model               string        `yaml:"model"`
		Timeout             time.Duration `yaml:"timeout"`
		ConfidenceThreshold float64       `yaml:"confidence_threshold"`
		MaxRetries          int           `yaml:"max_retries"`
		// Fixture replaces the HTTP detector with a static entity list
		Fixture string `yaml:"fixture"`
		// Local replaces the HTTP detector with the offline pattern validators
		Local bool `yaml:"local"`
	} `yaml:"detector"`

	Redaction struct {
		Algorithm string `yaml:"algorithm"`
		AuditLog  string `yaml:"audit_log"`
		AllowList string `yaml:"allow_list"`
	} `yaml:"redaction"`

	Session struct {
		Persist   bool   `yaml:"persist"`
		StoreFile string `yaml:"store_file"`
	} `yaml:"session"`

	Server struct {
		ListenAddr    string `yaml:"listen_addr"`
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"server"`
}

// LoadConfig loads configuration from the specified file path and applies
// environment overrides. An empty path yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	if configPath != "" {
		cleanPath := filepath.Clean(configPath)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		defaultPersist := config.Session.Persist

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		// Restore bool defaults the file did not set
		if !containsField(data, "session", "persist") {
			config.Session.Persist = defaultPersist
		}
	}

	if err := ApplyEnvironment(config); err != nil {
		return nil, err
	}

	config.Session.StoreFile = paths.NormalizePath(config.Session.StoreFile)
	config.Redaction.AuditLog = paths.NormalizePath(config.Redaction.AuditLog)
	config.Redaction.AllowList = paths.NormalizePath(config.Redaction.AllowList)
	config.Detector.Fixture = paths.NormalizePath(config.Detector.Fixture)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	config := &Config{}

	config.Defaults.LogLevel = "off"

	httpDefaults := detector.DefaultHTTPConfig()
	config.Detector.URL = httpDefaults.BaseURL
	config.Detector.Language = httpDefaults.Language
	config.Detector.Model = httpDefaults.Model
	config.Detector.Timeout = httpDefaults.Timeout
	config.Detector.ConfidenceThreshold = httpDefaults.Threshold
	config.Detector.MaxRetries = httpDefaults.Retry.MaxRetries

	config.Redaction.Algorithm = redactors.AlgorithmAscending.String()
	config.Redaction.AllowList = paths.GetAllowListFile()

	config.Session.Persist = true
	config.Session.StoreFile = paths.GetSessionFile()

	config.Server.ListenAddr = "127.0.0.1:8080"
	config.Server.AllowedOrigin = "*"

	return config
}

// ApplyEnvironment loads envFiles (or ./.env when none are given) and copies
// the PII_* variables over config. A missing default .env is not an error.
func ApplyEnvironment(config *Config, envFiles ...string) error {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}

	if v := getenv(EnvDetectorURL); v != "" {
		config.Detector.URL = v
	}
	if v := getenv(EnvDetectorModel); v != "" {
		config.Detector.Model = v
	}
	if v := getenv(EnvDetectorTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			if secs, convErr := strconv.Atoi(v); convErr == nil {
				d = time.Duration(secs) * time.Second
			} else {
				return fmt.Errorf("invalid %s %q: %w", EnvDetectorTimeout, v, err)
			}
		}
		config.Detector.Timeout = d
	}
	if v := getenv(EnvSessionStore); v != "" {
		config.Session.StoreFile = v
	}
	if v := getenv(EnvListenAddr); v != "" {
		config.Server.ListenAddr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		config.Defaults.LogLevel = v
	}
	return nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// FindConfigFile looks for a configuration file in the working directory,
// then in the user config directory
func FindConfigFile() string {
	for _, name := range []string{"pii-redact.yaml", "pii-redact.yml", ".pii-redact.yaml"} {
		if fileExists(name) {
			return name
		}
	}
	if p := paths.GetConfigFile(); fileExists(p) {
		return p
	}
	return ""
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// ValidateConfig checks the values LoadConfig cannot coerce
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.Detector.Fixture == "" && !config.Detector.Local {
		u, err := url.Parse(config.Detector.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("detector url must be an absolute http(s) url: %q", config.Detector.URL)
		}
	}
	if config.Detector.Timeout <= 0 {
		return fmt.Errorf("detector timeout must be positive")
	}
	if t := config.Detector.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %g", t)
	}
	if config.Detector.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if _, err := redactors.ParseAlgorithm(config.Redaction.Algorithm); err != nil {
		return err
	}
	switch strings.ToLower(config.Defaults.LogLevel) {
	case "", "off", "info", "metrics", "debug":
	default:
		return fmt.Errorf("unknown log_level %q", config.Defaults.LogLevel)
	}
	if config.Session.Persist && config.Session.StoreFile == "" {
		return fmt.Errorf("session store_file is required when persist is enabled")
	}
	return nil
}

// Algorithm returns the configured redaction algorithm
func (c *Config) Algorithm() redactors.Algorithm {
	alg, _ := redactors.ParseAlgorithm(c.Redaction.Algorithm)
	return alg
}

// DetectorConfig builds the HTTP detector settings from the config
func (c *Config) DetectorConfig() detector.HTTPConfig {
	cfg := detector.DefaultHTTPConfig()
	cfg.BaseURL = strings.TrimRight(c.Detector.URL, "/")
	cfg.Language = c.Detector.Language
	cfg.Model = c.Detector.Model
	cfg.Timeout = c.Detector.Timeout
	cfg.Threshold = c.Detector.ConfidenceThreshold
	cfg.Retry.MaxRetries = c.Detector.MaxRetries
	return cfg
}

// LoadConfigOrDefault loads configuration from configFile (or searches standard
// locations when configFile is empty). If loading fails, it returns defaults
// with environment overrides that still validate.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err == nil {
		return cfg
	}
	if cfg, err = LoadConfig(""); err == nil {
		return cfg
	}
	return defaultConfig()
}
