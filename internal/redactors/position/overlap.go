// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package position

import (
	"sort"

	"pii-redact/internal/redactors"
)

// Reduce returns a maximal non-overlapping subset of spans, sorted by start.
// At equal starts the longer span wins; otherwise the earlier span wins.
func Reduce(spans []redactors.Span) []redactors.Span {
	kept, _ := ReduceWithDropped(spans)
	return kept
}

// ReduceWithDropped is Reduce that also returns the spans it discarded
func ReduceWithDropped(spans []redactors.Span) (kept, dropped []redactors.Span) {
	sorted := make([]redactors.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Value < b.Value
	})

	// kept is sorted with increasing ends, so only the last end matters
	lastEnd := -1
	for _, s := range sorted {
		if s.Start < lastEnd {
			dropped = append(dropped, s)
			continue
		}
		kept = append(kept, s)
		lastEnd = s.End
	}
	return kept, dropped
}
