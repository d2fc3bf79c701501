// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package position

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-redact/internal/redactors"
)

func sp(start, end int) redactors.Span {
	return redactors.Span{Start: start, End: end, Type: redactors.TypePerson}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name string
		in   []redactors.Span
		want []redactors.Span
	}{
		{name: "empty", in: nil, want: nil},
		{name: "contained span dropped", in: []redactors.Span{sp(0, 10), sp(5, 8)}, want: []redactors.Span{sp(0, 10)}},
		{name: "same start longer wins", in: []redactors.Span{sp(3, 5), sp(3, 9)}, want: []redactors.Span{sp(3, 9)}},
		{name: "earlier start wins over longer", in: []redactors.Span{sp(4, 20), sp(2, 6)}, want: []redactors.Span{sp(2, 6)}},
		{name: "touching spans both kept", in: []redactors.Span{sp(5, 8), sp(0, 5)}, want: []redactors.Span{sp(0, 5), sp(5, 8)}},
		{name: "duplicates collapse", in: []redactors.Span{sp(1, 4), sp(1, 4)}, want: []redactors.Span{sp(1, 4)}},
		{name: "chain", in: []redactors.Span{sp(0, 4), sp(3, 7), sp(6, 9)}, want: []redactors.Span{sp(0, 4), sp(6, 9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.in))
		})
	}
}

func TestReduce_OrderIndependentAndDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var spans []redactors.Span
		for i := 0; i < 12; i++ {
			start := rng.Intn(40)
			spans = append(spans, redactors.Span{Start: start, End: start + 1 + rng.Intn(8), Type: redactors.TypeEmail})
		}
		want := Reduce(spans)

		shuffled := append([]redactors.Span(nil), spans...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.Equal(t, want, Reduce(shuffled))

		for i := range want {
			for j := i + 1; j < len(want); j++ {
				require.False(t, want[i].Overlaps(want[j]), "kept spans %v and %v overlap", want[i], want[j])
			}
		}
	}
}

func TestReduceWithDropped(t *testing.T) {
	kept, dropped := ReduceWithDropped([]redactors.Span{sp(0, 10), sp(5, 8), sp(12, 14)})
	assert.Equal(t, []redactors.Span{sp(0, 10), sp(12, 14)}, kept)
	assert.Equal(t, []redactors.Span{sp(5, 8)}, dropped)
}

func TestValidateSpans(t *testing.T) {
	text := []rune("Email me at a@b.com please")

	tests := []struct {
		name    string
		spans   []redactors.Span
		wantErr bool
	}{
		{name: "valid", spans: []redactors.Span{{Start: 12, End: 19, Type: redactors.TypeEmail, Value: "a@b.com"}}},
		{name: "empty list", spans: nil},
		{name: "start equals end", spans: []redactors.Span{{Start: 3, End: 3}}, wantErr: true},
		{name: "negative start", spans: []redactors.Span{{Start: -1, End: 3}}, wantErr: true},
		{name: "past end", spans: []redactors.Span{{Start: 20, End: 40}}, wantErr: true},
		{name: "value mismatch", spans: []redactors.Span{{Start: 12, End: 17, Value: "a@b.com"}}, wantErr: true},
		{name: "unsorted", spans: []redactors.Span{{Start: 12, End: 19}, {Start: 0, End: 5}}, wantErr: true},
		{name: "overlapping", spans: []redactors.Span{{Start: 0, End: 8}, {Start: 6, End: 10}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpans(text, tt.spans)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, redactors.IsInvalidSpan(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
