// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// ConfigDirEnv overrides the configuration directory on every platform
const ConfigDirEnv = "PII_REDACT_CONFIG_DIR"

// GetConfigDir returns the pii-redact configuration directory. The user
// config directory is APPDATA on Windows and XDG_CONFIG_HOME (or ~/.config)
// elsewhere.
func GetConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return NormalizePath(dir)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pii-redact")
	}
	return ".pii-redact"
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// GetSessionFile returns the default path of the persisted session store
func GetSessionFile() string {
	return filepath.Join(GetConfigDir(), "session.db")
}

// GetAllowListFile returns the default path of the allow list
func GetAllowListFile() string {
	return filepath.Join(GetConfigDir(), "allowlist.yaml")
}

// NormalizePath expands a leading ~ and cleans the path for the current platform
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(path)
}
