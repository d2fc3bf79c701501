// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelFor(t *testing.T) {
	tests := []struct {
		typ  PIIType
		want string
	}{
		{TypePerson, LabelName},
		{TypeLocation, LabelLocation},
		{TypeEmail, LabelEmail},
		{TypePhone, LabelPhone},
		{TypeOrganization, LabelOrganization},
		{TypeSSN, LabelRedacted},
		{TypeCreditCard, LabelRedacted},
		{PIIType("SOMETHING_NEW"), LabelRedacted},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, LabelFor(tt.typ))
		})
	}
}

func TestIsLabelAndTypeForLabel(t *testing.T) {
	for _, label := range Labels() {
		assert.True(t, IsLabel(label), label)
	}
	assert.False(t, IsLabel("[name]"))
	assert.False(t, IsLabel("[NAME] "))
	assert.False(t, IsLabel("NAME"))

	typ, ok := TypeForLabel(LabelEmail)
	assert.True(t, ok)
	assert.Equal(t, TypeEmail, typ)

	_, ok = TypeForLabel(LabelRedacted)
	assert.False(t, ok)
}

func TestLabels_LongestFirst(t *testing.T) {
	labels := Labels()
	assert.Len(t, labels, 6)
	for i := 1; i < len(labels); i++ {
		assert.GreaterOrEqual(t, len(labels[i-1]), len(labels[i]))
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want PIIType
	}{
		{"PERSON", TypePerson},
		{" per ", TypePerson},
		{"GPE", TypeLocation},
		{"email_address", TypeEmail},
		{"US_SSN", TypeSSN},
		{"IBAN_CODE", TypeBankAccount},
		{"crypto", PIIType("CRYPTO")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeType(tt.in))
		})
	}
}

func TestFindLabels(t *testing.T) {
	text := "Dear [NAME], ünïcode [EMAIL] and [REDACTED] but not [NAME"
	spans := FindLabels(text)

	assert.Equal(t, []Span{
		{Start: 5, End: 11, Type: TypePerson, Value: LabelName},
		{Start: 21, End: 28, Type: TypeEmail, Value: LabelEmail},
		{Start: 33, End: 43, Value: LabelRedacted},
	}, spans)

	runes := []rune(text)
	for _, s := range spans {
		assert.Equal(t, s.Value, string(runes[s.Start:s.End]))
	}
	assert.Empty(t, FindLabels("no labels [here]"))
}

func TestIsMultiToken(t *testing.T) {
	assert.True(t, IsMultiToken(TypePerson))
	assert.False(t, IsMultiToken(TypeEmail))
}

func TestDetectorNames(t *testing.T) {
	assert.Equal(t, []string{"NAME", "PER", "PERSON"}, DetectorNames(TypePerson))
	assert.Equal(t, []string{"CREDIT_CARD"}, DetectorNames(TypeCreditCard))

	for _, typ := range KnownTypes() {
		assert.NotEmpty(t, DetectorNames(typ), typ)
	}
}
