// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package email

import (
	"regexp"
	"strings"

	"pii-redact/internal/detector"
)

// EntityType is the detection service name for email addresses
const EntityType = "EMAIL_ADDRESS"

// Validator detects email addresses. Reserved and test domains are skipped,
// which also keeps filled synthetic addresses from being detected again.
type Validator struct {
	regex *regexp.Regexp

	testDomains      []string
	consumerDomains  []string
	negativeKeywords []string
}

// NewValidator creates an email validator
func NewValidator() *Validator {
	return &Validator{
		regex: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		testDomains: []string{
			"example.com", "example.org", "example.net", "test.com", "localhost",
		},
		consumerDomains: []string{
			"gmail.com", "yahoo.com", "outlook.com", "hotmail.com", "icloud.com", "proton.me", "aol.com",
		},
		negativeKeywords: []string{"noreply", "no-reply", "placeholder"},
	}
}

// Name returns the validator name
func (v *Validator) Name() string {
	return "email"
}

// ValidateContent returns every email address in content
func (v *Validator) ValidateContent(content string) []detector.Entity {
	return detector.FindPattern(v.regex, content, EntityType, v.score)
}

func (v *Validator) score(value string, context detector.ContextInfo) (float64, bool) {
	at := strings.LastIndex(value, "@")
	local, domain := value[:at], strings.ToLower(value[at+1:])
	if !isValidFormat(local, domain) || v.isTestDomain(domain) {
		return 0, false
	}

	confidence := 0.9
	for _, d := range v.consumerDomains {
		if domain == d {
			confidence = 0.95
			break
		}
	}
	return confidence + detector.KeywordImpact(context, nil, v.negativeKeywords, 0, 0.2), true
}

func (v *Validator) isTestDomain(domain string) bool {
	if strings.HasSuffix(domain, ".test") || strings.HasSuffix(domain, ".invalid") || strings.HasSuffix(domain, ".example") {
		return true
	}
	for _, d := range v.testDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func isValidFormat(local, domain string) bool {
	if len(local) == 0 || len(local) > 64 || len(domain) > 253 {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasPrefix(domain, "-") || strings.Contains(domain, "..") {
		return false
	}
	return true
}
