// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ipaddress

import (
	"net/netip"
	"regexp"

	"pii-redact/internal/detector"
)

// EntityType is the detection service name for IP addresses
const EntityType = "IP_ADDRESS"

// documentation holds the RFC 5737 and RFC 3849 ranges, which never identify
// a real host
var documentation = []netip.Prefix{
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// Validator detects IPv4 and IPv6 addresses
type Validator struct {
	ipv4 *regexp.Regexp

	// compressed form first so "a:b::c" is read whole
	ipv6 *regexp.Regexp

	negativeKeywords []string
}

// NewValidator creates an IP address validator
func NewValidator() *Validator {
	return &Validator{
		ipv4:             regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		ipv6:             regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){1,7}:(?:[0-9A-Fa-f]{1,4}:){0,6}[0-9A-Fa-f]{1,4}\b|\b(?:[0-9A-Fa-f]{1,4}:){7}[0-9A-Fa-f]{1,4}\b`),
		negativeKeywords: []string{"version", "ver.", "release", "build", "oid", "section"},
	}
}

// Name returns the validator name
func (v *Validator) Name() string {
	return "ipaddress"
}

// ValidateContent returns every routable-looking address in content
func (v *Validator) ValidateContent(content string) []detector.Entity {
	out := detector.FindPattern(v.ipv4, content, EntityType, v.score)
	return append(out, detector.FindPattern(v.ipv6, content, EntityType, v.score)...)
}

func (v *Validator) score(value string, context detector.ContextInfo) (float64, bool) {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return 0, false
	}
	if addr.IsUnspecified() || addr.IsLoopback() || addr.IsMulticast() || IsDocumentation(addr) {
		return 0, false
	}

	confidence := 0.85
	if addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		confidence = 0.65
	}
	return confidence + detector.KeywordImpact(context, nil, v.negativeKeywords, 0, 0.4), true
}

// IsDocumentation reports addresses reserved for documentation
func IsDocumentation(addr netip.Addr) bool {
	for _, p := range documentation {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
