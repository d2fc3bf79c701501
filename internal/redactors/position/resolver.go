// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package position

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"pii-redact/internal/observability"
	"pii-redact/internal/redactors"
)

// ResolutionMethod identifies the strategy that produced a span
type ResolutionMethod int

const (
	// MethodExact is a case-insensitive literal search
	MethodExact ResolutionMethod = iota
	// MethodPattern is an escaped case-insensitive regular expression
	MethodPattern
	// MethodHint trusts the detector offsets after checking them
	MethodHint
	// MethodWhitespace ignores whitespace differences
	MethodWhitespace
	// MethodDiacritic ignores combining marks
	MethodDiacritic
)

// String returns the string representation of the method
func (m ResolutionMethod) String() string {
	switch m {
	case MethodExact:
		return "exact"
	case MethodPattern:
		return "pattern"
	case MethodHint:
		return "hint"
	case MethodWhitespace:
		return "whitespace"
	case MethodDiacritic:
		return "diacritic"
	default:
		return "unknown"
	}
}

// Strategy locates a candidate value in text. Returned spans are in code point
// offsets and have already passed the guard.
type Strategy interface {
	Method() ResolutionMethod
	Find(text []rune, c redactors.Candidate, guard *Guard) []redactors.Span
}

// Guard rejects ranges that touch a label already present in the text
type Guard struct {
	labels []redactors.Span
}

// NewGuard indexes the labels of text
func NewGuard(text string) *Guard {
	return &Guard{labels: redactors.FindLabels(text)}
}

// Allows reports whether [start, end) is clear of every label
func (g *Guard) Allows(start, end int) bool {
	if g == nil {
		return true
	}
	r := redactors.Span{Start: start, End: end}
	for _, l := range g.labels {
		if l.Overlaps(r) {
			return false
		}
	}
	return true
}

// Resolver turns candidates into verified spans by trying strategies in order.
// The first strategy that yields at least one span wins.
type Resolver struct {
	strategies []Strategy
	observer   *observability.StandardObserver
}

// NewResolver creates a resolver with the default strategy chain
func NewResolver(observer *observability.StandardObserver) *Resolver {
	return NewResolverWithStrategies(observer,
		exactStrategy{},
		patternStrategy{},
		hintStrategy{},
		whitespaceStrategy{},
		diacriticStrategy{},
	)
}

// NewResolverWithStrategies creates a resolver with a custom chain
func NewResolverWithStrategies(observer *observability.StandardObserver, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, observer: observer}
}

// Resolve returns every verified occurrence of c in text. An empty result means
// the candidate was not found; that is not an error.
func (r *Resolver) Resolve(text string, c redactors.Candidate) []redactors.Span {
	spans, _ := r.resolve([]rune(text), c, NewGuard(text))
	return spans
}

// ResolveAll resolves a batch of candidates against the same text
func (r *Resolver) ResolveAll(text string, candidates []redactors.Candidate) ([]redactors.Span, redactors.BatchReport) {
	finishTiming := r.observer.StartTiming("position_resolver", "resolve_all", "")

	runes := []rune(text)
	guard := NewGuard(text)
	report := redactors.BatchReport{Operation: "resolve", Total: len(candidates)}
	methods := make(map[string]int)

	var spans []redactors.Span
	for _, c := range candidates {
		found, method := r.resolve(runes, c, guard)
		if len(found) == 0 {
			report.Skip(string(c.Type) + " not found")
			continue
		}
		report.Processed++
		methods[method.String()]++
		spans = append(spans, found...)
	}

	finishTiming(true, map[string]interface{}{
		"candidates": len(candidates),
		"located":    report.Processed,
		"spans":      len(spans),
		"methods":    methods,
	})
	return spans, report
}

func (r *Resolver) resolve(text []rune, c redactors.Candidate, guard *Guard) ([]redactors.Span, ResolutionMethod) {
	if strings.TrimSpace(c.Value) == "" {
		return nil, MethodExact
	}
	for _, s := range r.strategies {
		if found := s.Find(text, c, guard); len(found) > 0 {
			return found, s.Method()
		}
	}
	return nil, MethodExact
}

type exactStrategy struct{}

func (exactStrategy) Method() ResolutionMethod { return MethodExact }

func (exactStrategy) Find(text []rune, c redactors.Candidate, guard *Guard) []redactors.Span {
	hay := foldRunes(text)
	needle := foldRunes([]rune(c.Value))

	var spans []redactors.Span
	for _, at := range findAllOccurrences(needle, hay) {
		end := at + len(needle)
		if guard.Allows(at, end) {
			spans = append(spans, span(text, at, end, c.Type))
		}
	}
	return spans
}

type patternStrategy struct{}

func (patternStrategy) Method() ResolutionMethod { return MethodPattern }

func (patternStrategy) Find(text []rune, c redactors.Candidate, guard *Guard) []redactors.Span {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(c.Value))
	if err != nil {
		return nil
	}
	s := string(text)

	var spans []redactors.Span
	for _, loc := range re.FindAllStringIndex(s, -1) {
		start := utf8.RuneCountInString(s[:loc[0]])
		end := start + utf8.RuneCountInString(s[loc[0]:loc[1]])
		if start < end && guard.Allows(start, end) {
			spans = append(spans, span(text, start, end, c.Type))
		}
	}
	return spans
}

type hintStrategy struct{}

func (hintStrategy) Method() ResolutionMethod { return MethodHint }

func (hintStrategy) Find(text []rune, c redactors.Candidate, guard *Guard) []redactors.Span {
	if c.Hint == nil {
		return nil
	}
	start, end := c.Hint.Start, c.Hint.End
	if start < 0 || end > len(text) || start >= end {
		return nil
	}
	if !strings.EqualFold(string(text[start:end]), c.Value) || !guard.Allows(start, end) {
		return nil
	}
	return []redactors.Span{span(text, start, end, c.Type)}
}

// foldRunes lower-cases rune by rune so offsets are preserved
func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// findAllOccurrences returns the start of every non-overlapping occurrence of needle
func findAllOccurrences(needle, hay []rune) []int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return nil
	}
	var out []int
	for i := 0; i+len(needle) <= len(hay); {
		if runesEqual(hay[i:i+len(needle)], needle) {
			out = append(out, i)
			i += len(needle)
			continue
		}
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func span(text []rune, start, end int, t redactors.PIIType) redactors.Span {
	return redactors.Span{Start: start, End: end, Type: t, Value: string(text[start:end])}
}
