// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package detector talks to PII detection services and turns their entities
// into candidates for the span resolver. Detector positions are treated as
// hints only; the resolver re-verifies every candidate against the text.
package detector

import (
	"context"
	"strings"

	"pii-redact/internal/redactors"
)

// DefaultConfidenceThreshold drops entities the detector is unsure about
const DefaultConfidenceThreshold = 0.6

// Detector finds PII candidates in a text
type Detector interface {
	Detect(ctx context.Context, text string) ([]redactors.Candidate, error)
	Name() string
}

// Entity is one detected entity as reported on the wire. Start and End are
// code point offsets.
type Entity struct {
	Type       string  `json:"type" yaml:"type"`
	Start      int     `json:"start" yaml:"start"`
	End        int     `json:"end" yaml:"end"`
	Value      string  `json:"value" yaml:"value"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// DetectRequest is the body of POST /detect-pii
type DetectRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
}

// DetectResponse is the body returned by POST /detect-pii
type DetectResponse struct {
	HasPII              bool     `json:"has_pii"`
	DetectedEntities    []Entity `json:"detected_entities"`
	TotalEntities       int      `json:"total_entities"`
	ModelUsed           string   `json:"model_used"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

// HealthStatus is the body returned by GET /health
type HealthStatus struct {
	Status              string `json:"status"`
	PresidioInitialized bool   `json:"presidio_initialized"`
}

// Healthy reports whether the service is up and its analyzer is loaded
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy" && h.PresidioInitialized
}

// Candidates converts entities to candidates, normalising types and dropping
// entities that are empty or under threshold. The detector's offsets become
// the candidate's hint.
func Candidates(entities []Entity, threshold float64) []redactors.Candidate {
	out := make([]redactors.Candidate, 0, len(entities))
	for _, e := range entities {
		if strings.TrimSpace(e.Value) == "" || e.Confidence < threshold {
			continue
		}
		c := redactors.Candidate{
			Value:      e.Value,
			Type:       redactors.NormalizeType(e.Type),
			Confidence: e.Confidence,
		}
		if e.End > e.Start && e.Start >= 0 {
			c.Hint = &redactors.Hint{Start: e.Start, End: e.End}
		}
		out = append(out, c)
	}
	return out
}
