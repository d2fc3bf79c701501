// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package position

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pii-redact/internal/redactors"
)

// projection is a derived view of a text together with the index, in the
// original text, of the rune each projected rune came from
type projection struct {
	runes  []rune
	origin []int
}

// stripWhitespace drops whitespace and folds case
func stripWhitespace(text []rune) projection {
	p := projection{runes: make([]rune, 0, len(text)), origin: make([]int, 0, len(text))}
	for i, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		p.runes = append(p.runes, unicode.ToLower(r))
		p.origin = append(p.origin, i)
	}
	return p
}

// stripMarks decomposes each rune, drops combining marks and folds case.
// One original rune can yield zero or several projected runes.
func stripMarks(text []rune) projection {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	p := projection{runes: make([]rune, 0, len(text)), origin: make([]int, 0, len(text))}
	for i, r := range text {
		base, _, err := transform.String(t, string(r))
		if err != nil {
			base = string(r)
		}
		for _, b := range base {
			p.runes = append(p.runes, unicode.ToLower(b))
			p.origin = append(p.origin, i)
		}
	}
	return p
}

// matches maps every occurrence of needle in the projection back to original offsets
func (p projection) matches(needle []rune) [][2]int {
	var out [][2]int
	for _, at := range findAllOccurrences(needle, p.runes) {
		start := p.origin[at]
		end := p.origin[at+len(needle)-1] + 1
		out = append(out, [2]int{start, end})
	}
	return out
}

// whitespaceStrategy finds values whose spacing differs from the text,
// e.g. a phone number written with different grouping
type whitespaceStrategy struct{}

func (whitespaceStrategy) Method() ResolutionMethod { return MethodWhitespace }

func (whitespaceStrategy) Find(text []rune, c redactors.Candidate, guard *Guard) []redactors.Span {
	needle := stripWhitespace([]rune(c.Value)).runes
	if len(needle) == 0 {
		return nil
	}
	return collect(text, stripWhitespace(text).matches(needle), c, guard)
}

// diacriticStrategy finds values whose accents differ from the text
type diacriticStrategy struct{}

func (diacriticStrategy) Method() ResolutionMethod { return MethodDiacritic }

func (diacriticStrategy) Find(text []rune, c redactors.Candidate, guard *Guard) []redactors.Span {
	needle := stripMarks([]rune(c.Value)).runes
	if len(needle) == 0 {
		return nil
	}
	return collect(text, stripMarks(text).matches(needle), c, guard)
}

// collect applies the guard and, when the candidate carries a hint, keeps
// only the occurrence nearest to it
func collect(text []rune, ranges [][2]int, c redactors.Candidate, guard *Guard) []redactors.Span {
	var spans []redactors.Span
	for _, r := range ranges {
		if guard.Allows(r[0], r[1]) {
			spans = append(spans, span(text, r[0], r[1], c.Type))
		}
	}
	if c.Hint == nil || len(spans) < 2 {
		return spans
	}

	best := spans[0]
	for _, s := range spans[1:] {
		if distance(s.Start, c.Hint.Start) < distance(best.Start, c.Hint.Start) {
			best = s
		}
	}
	return []redactors.Span{best}
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
