// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package suppressions keeps an allow list of values that are never
// redacted, such as a public company name the detector keeps flagging.
package suppressions

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"pii-redact/internal/paths"
	"pii-redact/internal/redactors"
)

// SuppressionRule keeps one value from being redacted. Only a hash of the
// value is stored. An empty Type matches every type.
type SuppressionRule struct {
	ID         string     `yaml:"id"`
	Hash       string     `yaml:"hash"`
	Type       string     `yaml:"type,omitempty"`
	Reason     string     `yaml:"reason"`
	Enabled    bool       `yaml:"enabled"`
	CreatedBy  string     `yaml:"created_by,omitempty"`
	CreatedAt  time.Time  `yaml:"created_at"`
	LastSeenAt *time.Time `yaml:"last_seen_at,omitempty"`
	ExpiresAt  *time.Time `yaml:"expires_at,omitempty"`
}

// SuppressionConfig represents the allow list file
type SuppressionConfig struct {
	Version string            `yaml:"version"`
	Rules   []SuppressionRule `yaml:"rules"`
}

// SuppressionManager handles the allow list. It is safe for concurrent use.
type SuppressionManager struct {
	mu         sync.Mutex
	configPath string
	config     *SuppressionConfig
	enabled    bool
	now        func() time.Time
}

// NewSuppressionManager loads the allow list at configPath, or the default
// file when configPath is empty. A missing file is an empty list.
func NewSuppressionManager(configPath string) (*SuppressionManager, error) {
	if configPath == "" {
		configPath = paths.GetAllowListFile()
	}

	manager := &SuppressionManager{
		configPath: configPath,
		config:     emptyConfig(),
		enabled:    true,
		now:        time.Now,
	}
	if err := manager.loadConfig(); err != nil {
		return nil, err
	}
	return manager, nil
}

func emptyConfig() *SuppressionConfig {
	return &SuppressionConfig{Version: "1.0", Rules: []SuppressionRule{}}
}

func (sm *SuppressionManager) loadConfig() error {
	data, err := os.ReadFile(filepath.Clean(sm.configPath))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read allow list: %w", err)
	}

	var config SuppressionConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse allow list %s: %w", sm.configPath, err)
	}
	if config.Rules == nil {
		config.Rules = []SuppressionRule{}
	}
	sm.config = &config
	return nil
}

// HashValue hashes a value after folding case and collapsing whitespace, so
// "Acme  Corp" and "acme corp" share a rule
func HashValue(value string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(value), " "))
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hash)
}

// IsSuppressed reports whether an enabled, unexpired rule covers the
// candidate and returns that rule
func (sm *SuppressionManager) IsSuppressed(c redactors.Candidate) (bool, *SuppressionRule) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.enabled {
		return false, nil
	}

	hash := HashValue(c.Value)
	now := sm.now()
	for i := range sm.config.Rules {
		rule := &sm.config.Rules[i]
		if rule.Hash != hash || !rule.Enabled {
			continue
		}
		if rule.Type != "" && redactors.PIIType(rule.Type) != c.Type {
			continue
		}
		if rule.ExpiresAt != nil && now.After(*rule.ExpiresAt) {
			continue
		}
		rule.LastSeenAt = &now
		found := *rule
		return true, &found
	}
	return false, nil
}

// Suppresses is IsSuppressed without the rule
func (sm *SuppressionManager) Suppresses(c redactors.Candidate) bool {
	ok, _ := sm.IsSuppressed(c)
	return ok
}

// AddSuppression allows value for type t (every type when t is empty) and
// saves the list. A nil expiresAt never expires.
func (sm *SuppressionManager) AddSuppression(t redactors.PIIType, value, reason, createdBy string, expiresAt *time.Time) (SuppressionRule, error) {
	if strings.TrimSpace(value) == "" {
		return SuppressionRule{}, fmt.Errorf("allow list value cannot be empty")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	hash := HashValue(value)
	for _, rule := range sm.config.Rules {
		if rule.Hash == hash && rule.Type == string(t) {
			return rule, fmt.Errorf("value is already allowed by %s", rule.ID)
		}
	}

	// ids are sequential
	maxID := 0
	for _, existing := range sm.config.Rules {
		var num int
		if _, err := fmt.Sscanf(existing.ID, "ALLOW-%06d", &num); err == nil && num > maxID {
			maxID = num
		}
	}

	rule := SuppressionRule{
		ID:        fmt.Sprintf("ALLOW-%06d", maxID+1),
		Hash:      hash,
		Type:      string(t),
		Reason:    reason,
		Enabled:   true,
		CreatedBy: createdBy,
		CreatedAt: sm.now().UTC().Round(time.Second),
		ExpiresAt: expiresAt,
	}
	sm.config.Rules = append(sm.config.Rules, rule)
	return rule, sm.saveConfig()
}

// RemoveSuppression removes a rule by ID
func (sm *SuppressionManager) RemoveSuppression(id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i, rule := range sm.config.Rules {
		if rule.ID == id {
			sm.config.Rules = append(sm.config.Rules[:i], sm.config.Rules[i+1:]...)
			return sm.saveConfig()
		}
	}
	return fmt.Errorf("allow list rule %s not found", id)
}

// ListSuppressions returns a copy of every rule
func (sm *SuppressionManager) ListSuppressions() []SuppressionRule {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return append([]SuppressionRule(nil), sm.config.Rules...)
}

// CleanupExpired removes expired rules and returns how many were removed
func (sm *SuppressionManager) CleanupExpired() (int, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	active := make([]SuppressionRule, 0, len(sm.config.Rules))
	for _, rule := range sm.config.Rules {
		if rule.ExpiresAt == nil || now.Before(*rule.ExpiresAt) {
			active = append(active, rule)
		}
	}

	removed := len(sm.config.Rules) - len(active)
	sm.config.Rules = active
	if removed == 0 {
		return 0, nil
	}
	return removed, sm.saveConfig()
}

// SetEnabled turns the allow list on or off without touching the file
func (sm *SuppressionManager) SetEnabled(enabled bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.enabled = enabled
}

// IsEnabled reports whether rules are applied
func (sm *SuppressionManager) IsEnabled() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.enabled
}

// GetConfigPath returns the allow list file path
func (sm *SuppressionManager) GetConfigPath() string {
	return sm.configPath
}

// saveConfig writes the list with owner-only permissions; caller holds mu
func (sm *SuppressionManager) saveConfig() error {
	data, err := yaml.Marshal(sm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal allow list: %w", err)
	}

	if dir := filepath.Dir(sm.configPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(sm.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write allow list: %w", err)
	}
	return nil
}
