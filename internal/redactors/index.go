// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RedactionAuditLog records what a session did to a text without retaining
// any original value. Safe for concurrent use.
type RedactionAuditLog struct {
	mu sync.Mutex

	// SessionID identifies the session that produced the entries
	SessionID string `json:"session_id"`

	// StartedAt is when the log was created
	StartedAt time.Time `json:"started_at"`

	// ToolVersion is the version of the binary that wrote the log
	ToolVersion string `json:"tool_version"`

	// Summary contains aggregate counts
	Summary RedactionSummary `json:"summary"`

	// Entries holds one record per rewrite applied to the host text
	Entries []AuditEntry `json:"entries"`
}

// RedactionSummary contains summary statistics about a session
type RedactionSummary struct {
	TotalRedactions int      `json:"total_redactions"`
	TotalFills      int      `json:"total_fills"`
	TotalReverts    int      `json:"total_reverts"`
	DataTypes       []string `json:"data_types"`
}

// AuditEntry is a single rewrite. Offsets refer to the text before the rewrite.
type AuditEntry struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	DataType    string    `json:"data_type"`
	Replacement string    `json:"replacement,omitempty"`
	Start       int       `json:"start"`
	Length      int       `json:"length"`
	Algorithm   string    `json:"algorithm,omitempty"`
	ContextHash string    `json:"context_hash,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Audit operations
const (
	AuditRedact = "redact"
	AuditFill   = "fill"
	AuditRevert = "revert"
)

// NewRedactionAuditLog creates an empty audit log
func NewRedactionAuditLog(sessionID, toolVersion string) *RedactionAuditLog {
	return &RedactionAuditLog{
		SessionID:   sessionID,
		StartedAt:   time.Now(),
		ToolVersion: toolVersion,
		Summary:     RedactionSummary{DataTypes: []string{}},
		Entries:     make([]AuditEntry, 0),
	}
}

// AddEntry appends an entry and updates the summary
func (al *RedactionAuditLog) AddEntry(entry AuditEntry) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if entry.ID == "" {
		entry.ID = al.generateEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	al.Entries = append(al.Entries, entry)

	switch entry.Operation {
	case AuditRedact:
		al.Summary.TotalRedactions++
	case AuditFill:
		al.Summary.TotalFills++
	case AuditRevert:
		al.Summary.TotalReverts++
	}

	if entry.DataType == "" {
		return
	}
	for _, dt := range al.Summary.DataTypes {
		if dt == entry.DataType {
			return
		}
	}
	al.Summary.DataTypes = append(al.Summary.DataTypes, entry.DataType)
}

// RecordResult adds one entry per edit of an applied request
func (al *RedactionAuditLog) RecordResult(operation string, algorithm Algorithm, req RedactionRequest) {
	text := []rune(req.Text)
	for _, e := range req.Edits {
		al.AddEntry(AuditEntry{
			Operation:   operation,
			DataType:    string(e.Span.Type),
			Replacement: auditReplacement(operation, e.Replacement),
			Start:       e.Span.Start,
			Length:      e.Span.Len(),
			Algorithm:   algorithm.String(),
			ContextHash: GenerateContextHash(surrounding(text, e.Span, 16)),
		})
	}
}

// Count returns the number of entries
func (al *RedactionAuditLog) Count() int {
	al.mu.Lock()
	defer al.mu.Unlock()
	return len(al.Entries)
}

// EntriesByDataType returns all entries for a specific data type
func (al *RedactionAuditLog) EntriesByDataType(dataType string) []AuditEntry {
	al.mu.Lock()
	defer al.mu.Unlock()
	var result []AuditEntry
	for _, e := range al.Entries {
		if e.DataType == dataType {
			result = append(result, e)
		}
	}
	return result
}

// generateEntryID generates a unique ID for an entry; caller holds mu
func (al *RedactionAuditLog) generateEntryID() string {
	data := fmt.Sprintf("%s-%d-%d", al.SessionID, time.Now().UnixNano(), len(al.Entries))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

// ToJSON converts the audit log to JSON
func (al *RedactionAuditLog) ToJSON() ([]byte, error) {
	al.mu.Lock()
	defer al.mu.Unlock()
	return json.MarshalIndent(al, "", "  ")
}

// FromJSON creates a RedactionAuditLog from JSON data
func FromJSON(data []byte) (*RedactionAuditLog, error) {
	var log RedactionAuditLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit log: %w", err)
	}
	return &log, nil
}

// Save writes the audit log to path with owner-only permissions
func (al *RedactionAuditLog) Save(path string) error {
	data, err := al.ToJSON()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// LoadAuditLog reads an audit log from path
func LoadAuditLog(path string) (*RedactionAuditLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return FromJSON(data)
}

// Validate validates the audit log for completeness and consistency
func (al *RedactionAuditLog) Validate() error {
	if al.SessionID == "" {
		return fmt.Errorf("session_id cannot be empty")
	}
	if al.StartedAt.IsZero() {
		return fmt.Errorf("started_at cannot be zero")
	}
	for i, e := range al.Entries {
		if e.ID == "" {
			return fmt.Errorf("entries[%d].id cannot be empty", i)
		}
		if e.Operation == "" {
			return fmt.Errorf("entries[%d].operation cannot be empty", i)
		}
		if e.Start < 0 || e.Length < 0 {
			return fmt.Errorf("entries[%d] has a negative position", i)
		}
	}
	return nil
}

// GenerateContextHash generates a hash for surrounding context
func GenerateContextHash(context string) string {
	hash := sha256.Sum256([]byte(context))
	return hex.EncodeToString(hash[:8])
}

// auditReplacement keeps labels but never writes the value a revert restored
func auditReplacement(operation, replacement string) string {
	if operation == AuditRevert {
		return ""
	}
	return replacement
}

func surrounding(text []rune, s Span, width int) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return ""
	}
	from := max(s.Start-width, 0)
	to := min(s.End+width, len(text))
	return string(text[from:s.Start]) + string(text[s.End:to])
}
