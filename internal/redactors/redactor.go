// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"fmt"
	"strings"
)

// PIIType is the category of a detected entity after normalisation
type PIIType string

const (
	TypePerson       PIIType = "PERSON"
	TypeLocation     PIIType = "LOCATION"
	TypeAddress      PIIType = "ADDRESS"
	TypeEmail        PIIType = "EMAIL"
	TypePhone        PIIType = "PHONE"
	TypeOrganization PIIType = "ORGANIZATION"
	TypeSSN          PIIType = "SSN"
	TypeCreditCard   PIIType = "CREDIT_CARD"
	TypeIPAddress    PIIType = "IP_ADDRESS"
	TypeDateTime     PIIType = "DATE_TIME"
	TypeURL          PIIType = "URL"
	TypeID           PIIType = "ID"
	TypeBankAccount  PIIType = "BANK_ACCOUNT"
)

// Algorithm selects how the redaction engine walks the span list
type Algorithm int

const (
	// AlgorithmAscending walks spans start to end carrying a cumulative length delta
	AlgorithmAscending Algorithm = iota
	// AlgorithmDescending splices from the end of the text so earlier offsets stay valid
	AlgorithmDescending
)

// String returns the string representation of the algorithm
func (a Algorithm) String() string {
	switch a {
	case AlgorithmAscending:
		return "ascending"
	case AlgorithmDescending:
		return "descending"
	default:
		return "unknown"
	}
}

// ParseAlgorithm converts a string to Algorithm
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending":
		return AlgorithmAscending, nil
	case "descending":
		return AlgorithmDescending, nil
	default:
		return AlgorithmAscending, fmt.Errorf("unknown redaction algorithm %q", s)
	}
}

// Span is a half-open range [Start, End) of Unicode code points in a text.
// Value is the literal text found at the range.
type Span struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Type  PIIType `json:"type"`
	Value string  `json:"value"`
}

// Len returns the span length in code points
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two half-open ranges intersect
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Hint is a detector-supplied position for a candidate, in code points
type Hint struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Candidate is a detected entity whose position in the text is not yet trusted
type Candidate struct {
	Value      string  `json:"value"`
	Type       PIIType `json:"type"`
	Hint       *Hint   `json:"hint,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Edit pairs a span with the text that will replace it
type Edit struct {
	Span        Span
	Replacement string
}

// RedactionRequest is a text and the ordered, non-overlapping edits to apply to it
type RedactionRequest struct {
	Text  string
	Edits []Edit
}

// RedactionResult is the rewritten text plus the position of every replacement in it.
// Spans[i].Value holds the replacement text for Edits[i].
type RedactionResult struct {
	Text  string
	Spans []Span
}

// LabelFunc maps an entity type to the text that replaces it
type LabelFunc func(PIIType) string

// BatchReport summarises a multi-item operation as "N of M"
type BatchReport struct {
	Operation string   `json:"operation"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Skip records an item that was not processed
func (r *BatchReport) Skip(reason string) {
	r.Skipped = append(r.Skipped, reason)
}

// String renders the report in its human-readable form
func (r BatchReport) String() string {
	return fmt.Sprintf("%s: %d of %d processed", r.Operation, r.Processed, r.Total)
}
