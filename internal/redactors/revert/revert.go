// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package revert restores original values in text that quotes fake values
// produced earlier in the session. Matching is conservative: a missed
// substitution is preferred over a wrong one.
package revert

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"pii-redact/internal/observability"
	"pii-redact/internal/provenance"
	"pii-redact/internal/redactors"
	"pii-redact/internal/redactors/plaintext"
	"pii-redact/internal/redactors/strategies"
)

// Matcher maps fake values back to originals
type Matcher struct {
	engine   *plaintext.PlainTextRedactor
	observer *observability.StandardObserver
}

// NewMatcher creates a matcher
func NewMatcher(observer *observability.StandardObserver) *Matcher {
	return &Matcher{
		engine:   plaintext.NewPlainTextRedactor(redactors.AlgorithmAscending, observer),
		observer: observer,
	}
}

// Result describes one revert pass
type Result struct {
	Text string

	// Substitutions counts replaced occurrences
	Substitutions int

	// Request holds the edits applied to the input text, for auditing
	Request redactors.RedactionRequest

	// Report counts filled records located at least once out of all filled records
	Report redactors.BatchReport
}

// Revert returns text with every located fake value replaced by its original,
// plus the number of substitutions. Text is returned unchanged when nothing
// matches.
func (m *Matcher) Revert(text string, records []provenance.MappingRecord) (string, int) {
	r := m.RevertDetailed(text, records)
	return r.Text, r.Substitutions
}

// RevertDetailed is Revert with the applied edits and a per-record report
func (m *Matcher) RevertDetailed(text string, records []provenance.MappingRecord) Result {
	finishTiming := m.observer.StartTiming("revert_matcher", "revert", "")

	candidates := make([]provenance.MappingRecord, 0, len(records))
	for _, r := range records {
		if r.IsFilled() && strings.TrimSpace(r.Fake) != "" {
			candidates = append(candidates, r)
		}
	}
	// longest fake first so a fake that contains a shorter one claims its text
	sort.SliceStable(candidates, func(i, j int) bool {
		return utf8.RuneCountInString(candidates[i].Fake) > utf8.RuneCountInString(candidates[j].Fake)
	})

	result := Result{
		Text:    text,
		Request: redactors.RedactionRequest{Text: text},
		Report:  redactors.BatchReport{Operation: "revert", Total: len(candidates)},
	}

	c := &claims{text: text, runes: []rune(text)}
	matched := make([]bool, len(candidates))
	present := make([]bool, len(candidates))

	// every full fake claims its text before any bare name is tried, so a
	// name never lands inside another record's fake
	for i, r := range candidates {
		present[i], matched[i] = c.revertFull(r)
	}

	names := indexNames(candidates)
	for i, r := range candidates {
		if !present[i] && c.revertNames(r, names) {
			matched[i] = true
		}
	}

	for i, r := range candidates {
		if matched[i] {
			result.Report.Processed++
		} else {
			result.Report.Skip(string(r.Type) + " not found")
		}
	}

	if len(c.edits) == 0 {
		finishTiming(true, map[string]interface{}{"records": len(candidates), "substitutions": 0})
		return result
	}

	sort.Slice(c.edits, func(i, j int) bool { return c.edits[i].Span.Start < c.edits[j].Span.Start })
	req := redactors.RedactionRequest{Text: text, Edits: c.edits}
	applied, err := m.engine.Apply(req)
	if err != nil {
		// claims never overlap, so this only happens on a matcher bug
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		result.Report.Processed = 0
		return result
	}

	result.Text = applied.Text
	result.Substitutions = len(c.edits)
	result.Request = req
	finishTiming(true, map[string]interface{}{
		"records":       len(candidates),
		"matched":       result.Report.Processed,
		"substitutions": result.Substitutions,
	})
	return result
}

// Revert is a convenience wrapper around a matcher without observability
func Revert(text string, records []provenance.MappingRecord) string {
	out, _ := NewMatcher(nil).Revert(text, records)
	return out
}

// claims tracks the ranges already assigned to a record
type claims struct {
	text    string
	runes   []rune
	claimed []redactors.Span
	edits   []redactors.Edit
}

// revertFull claims every occurrence of the full fake. present reports
// whether the fake occurs at all, matched whether any occurrence was claimed.
func (c *claims) revertFull(r provenance.MappingRecord) (present, matched bool) {
	full := c.find(r.Fake)
	for _, s := range full {
		if c.claim(s, r.Type, matchCase(c.slice(s), r.Fake, r.Original)) {
			matched = true
		}
	}
	return len(full) > 0, matched
}

// revertNames tries the first and last name of a record whose full fake is
// absent. A name shared by records with different originals is left alone.
func (c *claims) revertNames(r provenance.MappingRecord, names nameIndex) bool {
	added := 0
	for _, p := range namePairs(r) {
		if utf8.RuneCountInString(p[0]) < 2 || names.ambiguous(p[0]) {
			continue
		}
		for _, s := range c.find(p[0]) {
			if c.claim(s, r.Type, matchCase(c.slice(s), p[0], p[1])) {
				added++
			}
		}
	}
	return added > 0
}

// namePairs returns the (fake, original) first and last names of a
// multi-token record, or nil when both names do not have the same shape
func namePairs(r provenance.MappingRecord) [][2]string {
	if !redactors.IsMultiToken(r.Type) {
		return nil
	}
	_, fakeParts := strategies.SplitTitle(r.Fake)
	_, origParts := strategies.SplitTitle(r.Original)
	if len(fakeParts) < 2 || len(fakeParts) != len(origParts) {
		return nil
	}
	return [][2]string{
		{fakeParts[0], origParts[0]},
		{fakeParts[len(fakeParts)-1], origParts[len(origParts)-1]},
	}
}

// nameIndex maps a case-folded fake name to the case-folded originals it
// stands for
type nameIndex map[string]map[string]struct{}

func indexNames(records []provenance.MappingRecord) nameIndex {
	names := nameIndex{}
	for _, r := range records {
		if !redactors.IsMultiToken(r.Type) {
			continue
		}
		if pairs := namePairs(r); pairs != nil {
			for _, p := range pairs {
				names.add(p[0], strings.ToLower(p[1]))
			}
			continue
		}
		// a name that cannot be reverted still makes the fake name ambiguous
		_, fakeParts := strategies.SplitTitle(r.Fake)
		for _, part := range fakeParts {
			names.add(part, "\x00"+strings.ToLower(r.Original))
		}
	}
	return names
}

func (n nameIndex) add(fakeName, original string) {
	key := strings.ToLower(fakeName)
	if n[key] == nil {
		n[key] = map[string]struct{}{}
	}
	n[key][original] = struct{}{}
}

func (n nameIndex) ambiguous(name string) bool {
	return len(n[strings.ToLower(name)]) > 1
}

// find returns the word-bounded, case-insensitive occurrences of value with
// any run of whitespace in value matching any run of whitespace in the text
func (c *claims) find(value string) []redactors.Span {
	tokens := strings.Fields(value)
	if len(tokens) == 0 {
		return nil
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(quoted, `\s+`))
	if err != nil {
		return nil
	}

	valueRunes := []rune(strings.TrimSpace(value))
	needLeft := isWordRune(valueRunes[0])
	needRight := isWordRune(valueRunes[len(valueRunes)-1])

	var spans []redactors.Span
	for _, loc := range re.FindAllStringIndex(c.text, -1) {
		start := utf8.RuneCountInString(c.text[:loc[0]])
		end := start + utf8.RuneCountInString(c.text[loc[0]:loc[1]])
		if needLeft && start > 0 && isWordRune(c.runes[start-1]) {
			continue
		}
		if needRight && end < len(c.runes) && isWordRune(c.runes[end]) {
			continue
		}
		spans = append(spans, redactors.Span{Start: start, End: end})
	}
	return spans
}

func (c *claims) claim(s redactors.Span, t redactors.PIIType, replacement string) bool {
	for _, other := range c.claimed {
		if other.Overlaps(s) {
			return false
		}
	}
	s.Type = t
	c.claimed = append(c.claimed, s)
	c.edits = append(c.edits, redactors.Edit{Span: s, Replacement: replacement})
	return true
}

func (c *claims) slice(s redactors.Span) string {
	return string(c.runes[s.Start:s.End])
}

// matchCase adjusts the first letter of original when the matched text and
// the stored fake disagree on the case of their first letter
func matchCase(matched, fake, original string) string {
	m, _ := utf8.DecodeRuneInString(matched)
	f, _ := utf8.DecodeRuneInString(fake)
	o, size := utf8.DecodeRuneInString(original)
	if size == 0 || !unicode.IsLetter(m) || !unicode.IsLetter(o) {
		return original
	}
	if unicode.IsUpper(m) == unicode.IsUpper(f) {
		return original
	}
	if unicode.IsUpper(m) {
		return string(unicode.ToUpper(o)) + original[size:]
	}
	return string(unicode.ToLower(o)) + original[size:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
