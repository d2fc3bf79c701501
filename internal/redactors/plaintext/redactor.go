// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plaintext

import (
	"sort"

	"pii-redact/internal/observability"
	"pii-redact/internal/redactors"
	"pii-redact/internal/redactors/position"
)

// PlainTextRedactor rewrites ranges of a text with replacement strings while
// keeping every range's position in the output. It holds no per-call state.
type PlainTextRedactor struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver

	// algorithm selects the walk order
	algorithm redactors.Algorithm
}

// NewPlainTextRedactor creates a new PlainTextRedactor
func NewPlainTextRedactor(algorithm redactors.Algorithm, observer *observability.StandardObserver) *PlainTextRedactor {
	return &PlainTextRedactor{
		observer:  observer,
		algorithm: algorithm,
	}
}

// Algorithm returns the configured walk order
func (ptr *PlainTextRedactor) Algorithm() redactors.Algorithm {
	return ptr.algorithm
}

// Redact replaces every span with labelFor(span.Type). Spans must be sorted
// and non-overlapping.
func (ptr *PlainTextRedactor) Redact(text string, spans []redactors.Span, labelFor redactors.LabelFunc) (redactors.RedactionResult, error) {
	if labelFor == nil {
		labelFor = redactors.LabelFor
	}
	req := redactors.RedactionRequest{Text: text, Edits: make([]redactors.Edit, len(spans))}
	for i, s := range spans {
		req.Edits[i] = redactors.Edit{Span: s, Replacement: labelFor(s.Type)}
	}
	return ptr.Apply(req)
}

// Apply performs the edits of req. Any invalid span rejects the whole request
// and leaves the text untouched.
func (ptr *PlainTextRedactor) Apply(req redactors.RedactionRequest) (redactors.RedactionResult, error) {
	finishTiming := ptr.observer.StartTiming("plaintext_redactor", "apply", "")

	text := []rune(req.Text)
	spans := make([]redactors.Span, len(req.Edits))
	for i, e := range req.Edits {
		spans[i] = e.Span
	}
	if err := position.ValidateSpans(text, spans); err != nil {
		finishTiming(false, map[string]interface{}{"edits": len(req.Edits), "error": err.Error()})
		return redactors.RedactionResult{}, err
	}

	if len(req.Edits) == 0 {
		finishTiming(true, map[string]interface{}{"edits": 0})
		return redactors.RedactionResult{Text: req.Text, Spans: []redactors.Span{}}, nil
	}

	var result redactors.RedactionResult
	switch ptr.algorithm {
	case redactors.AlgorithmDescending:
		result = applyDescending(text, req.Edits)
	default:
		result = applyAscending(text, req.Edits)
	}

	finishTiming(true, map[string]interface{}{
		"edits":       len(req.Edits),
		"algorithm":   ptr.algorithm.String(),
		"length_in":   len(text),
		"length_diff": len([]rune(result.Text)) - len(text),
	})
	return result, nil
}

// applyAscending walks edits start to end. delta is the total length change of
// the edits already applied, so edit i lands at its original offset plus delta.
func applyAscending(text []rune, edits []redactors.Edit) redactors.RedactionResult {
	out := make([]rune, 0, len(text))
	spans := make([]redactors.Span, len(edits))

	delta := 0
	cursor := 0
	for i, e := range edits {
		replacement := []rune(e.Replacement)
		out = append(out, text[cursor:e.Span.Start]...)
		out = append(out, replacement...)
		cursor = e.Span.End

		adjustedStart := e.Span.Start + delta
		spans[i] = redactors.Span{
			Start: adjustedStart,
			End:   adjustedStart + len(replacement),
			Type:  e.Span.Type,
			Value: e.Replacement,
		}
		delta += len(replacement) - e.Span.Len()
	}
	out = append(out, text[cursor:]...)

	return redactors.RedactionResult{Text: string(out), Spans: spans}
}

// applyDescending splices from the end backward so the offsets of edits not yet
// applied stay valid, then recomputes the output positions front to back.
func applyDescending(text []rune, edits []redactors.Edit) redactors.RedactionResult {
	order := make([]int, len(edits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return edits[order[a]].Span.Start > edits[order[b]].Span.Start
	})

	out := append([]rune(nil), text...)
	for _, idx := range order {
		e := edits[idx]
		tail := append([]rune(e.Replacement), out[e.Span.End:]...)
		out = append(out[:e.Span.Start], tail...)
	}

	spans := make([]redactors.Span, len(edits))
	shift := 0
	for i, e := range edits {
		n := len([]rune(e.Replacement))
		spans[i] = redactors.Span{
			Start: e.Span.Start + shift,
			End:   e.Span.Start + shift + n,
			Type:  e.Span.Type,
			Value: e.Replacement,
		}
		shift += n - e.Span.Len()
	}

	return redactors.RedactionResult{Text: string(out), Spans: spans}
}
