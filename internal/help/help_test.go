// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package help

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"pii-redact/internal/redactors"
)

func TestTypes_CoverEveryKnownType(t *testing.T) {
	types := Types()
	assert.Len(t, types, len(redactors.KnownTypes()))
	for _, info := range types {
		assert.NotEmpty(t, info.FakeShape, info.Type)
		assert.True(t, redactors.IsLabel(info.Label), info.Type)
	}
}

func TestShowGeneralHelp(t *testing.T) {
	var buf bytes.Buffer
	NewSystem(&buf, true).ShowGeneralHelp()
	for _, cmd := range []string{"scan", "redact", "fill", "revert", "clear", "serve", "-mock", "-algorithm"} {
		assert.Contains(t, buf.String(), cmd)
	}
}

func TestShowTypeHelp(t *testing.T) {
	tests := []struct {
		name  string
		found bool
		want  string
	}{
		{"PERSON", true, "[NAME]"},
		{"email_address", true, "EMAIL_ADDRESS"},
		{"US_SSN", true, "9xx-xx-xxxx"},
		{"CRYPTO", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.found, NewSystem(&buf, true).ShowTypeHelp(tt.name))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	var buf bytes.Buffer
	NewSystem(&buf, true).ShowTypesHelp()
	assert.Contains(t, buf.String(), "BANK_ACCOUNT")
}
