// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"pii-redact/internal/observability"
	"pii-redact/internal/redactors"
)

// contextChars is how much text on each side of a match feeds keyword checks
const contextChars = 40

// ContextInfo is the text around a match
type ContextInfo struct {
	BeforeText string
	AfterText  string
}

// Validator finds one kind of structured PII in text without a detection
// service. Entity types use the detection service vocabulary.
type Validator interface {
	Name() string
	ValidateContent(content string) []Entity
}

// ScoreFunc returns the confidence for a match, or ok=false to drop it
type ScoreFunc func(value string, context ContextInfo) (confidence float64, ok bool)

// FindPattern returns an entity for every match of re in content that score
// accepts. Offsets are converted from bytes to code points.
func FindPattern(re *regexp.Regexp, content, entityType string, score ScoreFunc) []Entity {
	var entities []Entity
	for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
		start, end := loc[0], loc[1]
		// a capture group narrows the match past its delimiters
		if len(loc) >= 4 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
		}
		value := content[start:end]
		confidence, ok := score(value, contextAround(content, start, end))
		if !ok {
			continue
		}
		runeStart := utf8.RuneCountInString(content[:start])
		entities = append(entities, Entity{
			Type:       entityType,
			Start:      runeStart,
			End:        runeStart + utf8.RuneCountInString(value),
			Value:      value,
			Confidence: clamp(confidence),
		})
	}
	return entities
}

func contextAround(content string, start, end int) ContextInfo {
	from := max(0, start-contextChars)
	for from > 0 && !utf8.RuneStart(content[from]) {
		from--
	}
	to := min(len(content), end+contextChars)
	for to < len(content) && !utf8.RuneStart(content[to]) {
		to++
	}
	return ContextInfo{
		BeforeText: strings.ToLower(content[from:start]),
		AfterText:  strings.ToLower(content[end:to]),
	}
}

// KeywordImpact adds boost when a positive keyword is near the match and
// subtracts penalty when a negative one is
func KeywordImpact(context ContextInfo, positive, negative []string, boost, penalty float64) float64 {
	around := context.BeforeText + " " + context.AfterText
	impact := 0.0
	for _, k := range positive {
		if strings.Contains(around, k) {
			impact += boost
			break
		}
	}
	for _, k := range negative {
		if strings.Contains(around, k) {
			impact -= penalty
			break
		}
	}
	return impact
}

func clamp(v float64) float64 {
	return min(1, max(0, v))
}

// ValidatorDetector runs local validators over the text. It needs no network
// and finds only structured types; names and places need a detection service.
type ValidatorDetector struct {
	validators []Validator
	threshold  float64
	observer   *observability.StandardObserver
}

// NewValidatorDetector creates a detector over the given validators
func NewValidatorDetector(threshold float64, observer *observability.StandardObserver, validators ...Validator) *ValidatorDetector {
	return &ValidatorDetector{validators: validators, threshold: threshold, observer: observer}
}

// Name identifies the detector in reports
func (d *ValidatorDetector) Name() string {
	return "validators"
}

// Detect runs every validator and returns the candidates above threshold
func (d *ValidatorDetector) Detect(ctx context.Context, text string) ([]redactors.Candidate, error) {
	finishTiming := d.observer.StartTiming("validator_detector", "detect", "")

	var entities []Entity
	counts := make(map[string]interface{}, len(d.validators))
	for _, v := range d.validators {
		if err := ctx.Err(); err != nil {
			finishTiming(false, map[string]interface{}{"error": err.Error()})
			return nil, err
		}
		found := v.ValidateContent(text)
		counts[v.Name()] = len(found)
		entities = append(entities, found...)
	}

	finishTiming(true, counts)
	return Candidates(entities, d.threshold), nil
}
