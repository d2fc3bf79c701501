// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package phone

import (
	"regexp"
	"strings"

	"pii-redact/internal/detector"
)

// EntityType is the detection service name for phone numbers
const EntityType = "PHONE_NUMBER"

// pattern is one phone number format with its base confidence
type pattern struct {
	name       string
	regex      *regexp.Regexp
	confidence float64
}

// Validator detects phone numbers in North American and international
// formats. The 555-01xx block reserved for fiction is skipped.
type Validator struct {
	patterns []pattern

	positiveKeywords []string
	negativeKeywords []string
}

// NewValidator creates a phone validator
func NewValidator() *Validator {
	return &Validator{
		patterns: []pattern{
			{
				name:       "us_parentheses",
				regex:      regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]\d{4}\b`),
				confidence: 0.8,
			},
			{
				name:       "us_separated",
				regex:      regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`),
				confidence: 0.7,
			},
			{
				name:       "international",
				regex:      regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}\b`),
				confidence: 0.8,
			},
		},
		positiveKeywords: []string{"phone", "tel", "call", "mobile", "cell", "fax", "contact", "text me"},
		negativeKeywords: []string{"ssn", "social security", "order", "invoice", "serial", "version"},
	}
}

// Name returns the validator name
func (v *Validator) Name() string {
	return "phone"
}

// ValidateContent returns every phone number in content. Where formats
// overlap the first pattern's match wins.
func (v *Validator) ValidateContent(content string) []detector.Entity {
	var out []detector.Entity
	for _, p := range v.patterns {
		base := p.confidence
		for _, e := range detector.FindPattern(p.regex, content, EntityType, func(value string, context detector.ContextInfo) (float64, bool) {
			if isFictional(value) {
				return 0, false
			}
			return base + detector.KeywordImpact(context, v.positiveKeywords, v.negativeKeywords, 0.15, 0.3), true
		}) {
			if !overlapsAny(out, e) {
				out = append(out, e)
			}
		}
	}
	return out
}

// isFictional reports numbers in the 555-0100..555-0199 block
func isFictional(value string) bool {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 10 {
		return false
	}
	local := d[len(d)-7:]
	return strings.HasPrefix(local, "55501")
}

func overlapsAny(entities []detector.Entity, e detector.Entity) bool {
	for _, o := range entities {
		if e.Start < o.End && o.Start < e.End {
			return true
		}
	}
	return false
}
