// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package creditcard

import (
	"regexp"
	"strings"

	"pii-redact/internal/detector"
)

// EntityType is the detection service name for card numbers
const EntityType = "CREDIT_CARD"

// Validator detects payment card numbers. A match must pass the Luhn check
// and must not be a published test number.
type Validator struct {
	regex *regexp.Regexp

	// Known test numbers, matched against the digits only
	testPatterns []*regexp.Regexp

	positiveKeywords []string
	negativeKeywords []string
}

// NewValidator creates a card number validator
func NewValidator() *Validator {
	return &Validator{
		// 13-19 digits, optionally grouped by single spaces or hyphens
		regex: regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`),
		testPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^4000\d{12}$`),
			regexp.MustCompile(`^4111111111111111$`),
			regexp.MustCompile(`^4242424242424242$`),
			regexp.MustCompile(`^5555555555554444$`),
			regexp.MustCompile(`^5105105105105100$`),
			regexp.MustCompile(`^378282246310005$`),
			regexp.MustCompile(`^6011111111111117$`),
		},
		positiveKeywords: []string{"card", "visa", "mastercard", "amex", "payment", "credit", "debit", "expir", "cvv"},
		negativeKeywords: []string{"order", "tracking", "invoice", "serial", "isbn", "phone"},
	}
}

// Name returns the validator name
func (v *Validator) Name() string {
	return "creditcard"
}

// ValidateContent returns every plausible card number in content
func (v *Validator) ValidateContent(content string) []detector.Entity {
	return detector.FindPattern(v.regex, content, EntityType, v.score)
}

func (v *Validator) score(value string, context detector.ContextInfo) (float64, bool) {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(value)
	if len(digits) < 13 || len(digits) > 19 || !LuhnCheck(digits) || strings.Count(digits, digits[:1]) == len(digits) {
		return 0, false
	}
	for _, p := range v.testPatterns {
		if p.MatchString(digits) {
			return 0, false
		}
	}

	confidence := 0.7
	if Vendor(digits) != "" {
		confidence = 0.9
	}
	return confidence + detector.KeywordImpact(context, v.positiveKeywords, v.negativeKeywords, 0.1, 0.3), true
}

// LuhnCheck reports whether the digits carry a valid Luhn check digit
func LuhnCheck(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Vendor names the card network for a number, or "" when the prefix is not
// one of the major networks
func Vendor(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "VISA"
	case prefixBetween(digits, 2, 51, 55), prefixBetween(digits, 4, 2221, 2720):
		return "MASTERCARD"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "AMEX"
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return "DISCOVER"
	case prefixBetween(digits, 4, 3528, 3589):
		return "JCB"
	}
	return ""
}

func prefixBetween(digits string, n, lo, hi int) bool {
	if len(digits) < n {
		return false
	}
	p := 0
	for _, c := range digits[:n] {
		p = p*10 + int(c-'0')
	}
	return p >= lo && p <= hi
}
