// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package creditcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuhnCheck(t *testing.T) {
	assert.True(t, LuhnCheck("5500000000000004"))
	assert.True(t, LuhnCheck("371449635398431"))
	assert.False(t, LuhnCheck("5500000000000005"))
	assert.False(t, LuhnCheck("55000000000x0004"))
}

func TestVendor(t *testing.T) {
	tests := []struct {
		digits string
		want   string
	}{
		{"4916000000000000", "VISA"},
		{"5500000000000004", "MASTERCARD"},
		{"2221000000000009", "MASTERCARD"},
		{"371449635398431", "AMEX"},
		{"6011000990139424", "DISCOVER"},
		{"3530111333300000", "JCB"},
		{"9999000000000000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.digits, func(t *testing.T) {
			assert.Equal(t, tt.want, Vendor(tt.digits))
		})
	}
}

func TestValidateContent(t *testing.T) {
	v := NewValidator()

	found := v.ValidateContent("Paid with card 5500-0000-0000-0004 yesterday")
	require.Len(t, found, 1)
	assert.Equal(t, "5500-0000-0000-0004", found[0].Value)
	assert.Equal(t, 15, found[0].Start)
	assert.Equal(t, 34, found[0].End)
	assert.InDelta(t, 1.0, found[0].Confidence, 1e-9)

	for _, content := range []string{
		"test card 4111 1111 1111 1111",
		"bad checksum 5500 0000 0000 0005",
		"generated 4000 1234 5678 9010",
		"zeros 0000000000000000",
	} {
		assert.Empty(t, v.ValidateContent(content), content)
	}
}
