// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package position

import (
	"fmt"
	"strings"

	"pii-redact/internal/redactors"
)

const validatorComponent = "position_validator"

// ValidateSpan checks a single span against a text of the given code points
func ValidateSpan(text []rune, s redactors.Span) error {
	if s.Start >= s.End {
		return invalid(fmt.Sprintf("empty span [%d,%d)", s.Start, s.End))
	}
	if s.Start < 0 || s.End > len(text) {
		return invalid(fmt.Sprintf("span [%d,%d) outside text of length %d", s.Start, s.End, len(text)))
	}
	if s.Value != "" && !strings.EqualFold(string(text[s.Start:s.End]), s.Value) {
		return invalid(fmt.Sprintf("span [%d,%d) does not hold its value", s.Start, s.End))
	}
	return nil
}

// ValidateSpans checks that spans are individually valid, sorted by start and
// pairwise non-overlapping
func ValidateSpans(text []rune, spans []redactors.Span) error {
	for i, s := range spans {
		if err := ValidateSpan(text, s); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := spans[i-1]
		if s.Start < prev.Start {
			return invalid(fmt.Sprintf("span %d starts before span %d", i, i-1))
		}
		if s.Overlaps(prev) {
			return invalid(fmt.Sprintf("span %d overlaps span %d", i, i-1))
		}
	}
	return nil
}

func invalid(msg string) error {
	return redactors.NewRedactionError(redactors.ErrorInvalidSpan, msg, validatorComponent, nil)
}
