// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ssn

import (
	"regexp"
	"strings"

	"pii-redact/internal/detector"
)

// EntityType is the detection service name for SSNs
const EntityType = "US_SSN"

// Validator detects US Social Security Numbers with regex patterns, the
// issuance rules and nearby keywords
type Validator struct {
	regex *regexp.Regexp

	// Keywords that suggest an SSN context
	positiveKeywords []string

	// Keywords that suggest this is not an SSN
	negativeKeywords []string
}

// NewValidator creates an SSN validator
func NewValidator() *Validator {
	return &Validator{
		// XXX-XX-XXXX, XXX XX XXXX or nine bare digits
		regex: regexp.MustCompile(`\b(?:\d{3}-\d{2}-\d{4}|\d{3} \d{2} \d{4}|\d{9})\b`),
		positiveKeywords: []string{
			"ssn", "social security", "taxpayer", "tax id", "w-2", "w2", "1099",
			"payroll", "employee", "medicare", "benefits",
		},
		negativeKeywords: []string{
			"phone", "tel", "fax", "zip", "postal", "routing", "account", "order",
			"serial", "invoice", "tracking", "example", "sample", "test",
		},
	}
}

// Name returns the validator name
func (v *Validator) Name() string {
	return "ssn"
}

// ValidateContent returns every plausible SSN in content
func (v *Validator) ValidateContent(content string) []detector.Entity {
	return detector.FindPattern(v.regex, content, EntityType, v.score)
}

func (v *Validator) score(value string, context detector.ContextInfo) (float64, bool) {
	digits := strings.NewReplacer("-", "", " ", "").Replace(value)
	if !IsValid(digits) {
		return 0, false
	}

	var confidence float64
	switch {
	case strings.Contains(value, "-"):
		confidence = 0.85
	case strings.Contains(value, " "):
		confidence = 0.7
	default:
		// bare digits need a keyword to clear the default threshold
		confidence = 0.45
	}
	return confidence + detector.KeywordImpact(context, v.positiveKeywords, v.negativeKeywords, 0.2, 0.3), true
}

// IsValid applies the issuance rules to nine digits: area not 000, 666 or
// 900-999, group not 00, serial not 0000, and not a well-known sample
func IsValid(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	area, group, serial := digits[:3], digits[3:5], digits[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" || serial == "0000" {
		return false
	}
	switch digits {
	case "123456789", "078051120", "219099999":
		return false
	}
	return strings.Count(digits, digits[:1]) != 9
}
