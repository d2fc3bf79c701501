// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"

	"pii-redact/internal/redactors"
)

// Generator produces fake values shaped like a PII category
type Generator interface {
	// Generate returns a fake value for the type
	Generate(t redactors.PIIType) string
	// GenerateLike returns a fake value that also follows the structure of
	// original, e.g. a title prefix or the number of name tokens
	GenerateLike(t redactors.PIIType, original string) string
}

// RandomSource yields integers in [0, n)
type RandomSource interface {
	Intn(n int) int
}

// secureSource draws from crypto/rand
type secureSource struct{}

func (secureSource) Intn(n int) int {
	v, err := generateSecureRandom(0, int64(n))
	if err != nil {
		return mrand.IntN(n)
	}
	return int(v)
}

// generateSecureRandom generates a cryptographically secure random number in the given range
func generateSecureRandom(min, max int64) (int64, error) {
	if min >= max {
		return 0, fmt.Errorf("invalid range: min (%d) must be less than max (%d)", min, max)
	}

	randomBig, err := rand.Int(rand.Reader, big.NewInt(max-min))
	if err != nil {
		return 0, fmt.Errorf("failed to generate secure random number: %w", err)
	}

	return randomBig.Int64() + min, nil
}

// calculateLuhnCheckDigit returns the digit that makes digits pass the Luhn check
func calculateLuhnCheckDigit(digits []int) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// isValidLuhn reports whether a digit string passes the Luhn check
func isValidLuhn(number string) bool {
	var digits []int
	for _, c := range number {
		if c >= '0' && c <= '9' {
			digits = append(digits, int(c-'0'))
		}
	}
	if len(digits) < 2 {
		return false
	}
	return calculateLuhnCheckDigit(digits[:len(digits)-1]) == digits[len(digits)-1]
}
