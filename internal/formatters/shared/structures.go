// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package shared

import (
	"strings"
	"time"

	"pii-redact/internal/formatters"
	"pii-redact/internal/redactors"
)

// Mask replaces an original value when originals are hidden
const Mask = "[HIDDEN]"

// Response is the top-level structure for JSON/YAML output
type Response struct {
	Operation   string                 `json:"operation" yaml:"operation"`
	SessionID   string                 `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Report      *redactors.BatchReport `json:"report,omitempty" yaml:"report,omitempty"`
	Text        *string                `json:"text,omitempty" yaml:"text,omitempty"`
	Annotations []Annotation           `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Records     []Record               `json:"records,omitempty" yaml:"records,omitempty"`
}

// Annotation is a pending span in JSON/YAML form
type Annotation struct {
	ID              string  `json:"id" yaml:"id"`
	Type            string  `json:"type" yaml:"type"`
	Value           string  `json:"value" yaml:"value"`
	Start           int     `json:"start" yaml:"start"`
	End             int     `json:"end" yaml:"end"`
	Confidence      float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	ConfidenceLevel string  `json:"confidence_level,omitempty" yaml:"confidence_level,omitempty"`
}

// Record is a provenance record in JSON/YAML form
type Record struct {
	ID        string     `json:"id" yaml:"id"`
	Type      string     `json:"type" yaml:"type"`
	Original  string     `json:"original" yaml:"original"`
	Masked    string     `json:"masked" yaml:"masked"`
	Fake      string     `json:"fake,omitempty" yaml:"fake,omitempty"`
	Position  int        `json:"position" yaml:"position"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	FilledAt  *time.Time `json:"filled_at,omitempty" yaml:"filled_at,omitempty"`
}

// GetConfidenceLevel returns the confidence level of a 0..1 score
func GetConfidenceLevel(confidence float64) string {
	switch {
	case confidence <= 0:
		return ""
	case confidence >= 0.9:
		return "HIGH"
	case confidence >= 0.6:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Original returns value, or Mask when originals are hidden
func Original(value string, options formatters.FormatterOptions) string {
	if options.ShowOriginals {
		return value
	}
	return Mask
}

// Flatten collapses newlines and tabs for single-line output
func Flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
}

// ConvertReport converts a report to its JSON/YAML structure
func ConvertReport(report formatters.Report, options formatters.FormatterOptions) Response {
	resp := Response{
		Operation: report.Operation,
		SessionID: report.SessionID,
		Report:    report.Batch,
	}
	if report.Text != "" {
		text := report.Text
		resp.Text = &text
	}

	for _, a := range report.Annotations {
		resp.Annotations = append(resp.Annotations, Annotation{
			ID:              a.ID,
			Type:            string(a.Span.Type),
			Value:           Original(a.Span.Value, options),
			Start:           a.Span.Start,
			End:             a.Span.End,
			Confidence:      a.Confidence,
			ConfidenceLevel: GetConfidenceLevel(a.Confidence),
		})
	}

	for _, r := range report.Records {
		resp.Records = append(resp.Records, Record{
			ID:        r.ID,
			Type:      string(r.Type),
			Original:  Original(r.Original, options),
			Masked:    r.Masked,
			Fake:      r.Fake,
			Position:  r.Position,
			CreatedAt: r.CreatedAt,
			FilledAt:  r.FilledAt,
		})
	}
	return resp
}
