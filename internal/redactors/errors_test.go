// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactionError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	withCause := NewRedactionError(ErrorDetector, "detection failed", "http", cause)
	assert.Equal(t, "[detector] detection failed (component: http): connection refused", withCause.Error())
	assert.ErrorIs(t, withCause, cause)
	assert.True(t, withCause.Recoverable)

	bare := NewRedactionError(ErrorInvalidSpan, "span 4..2 is unordered", "position", nil)
	assert.Equal(t, "[invalid_span] span 4..2 is unordered (component: position)", bare.Error())
	assert.Nil(t, bare.Unwrap())
	assert.False(t, bare.Recoverable)
}

func TestIsErrorType(t *testing.T) {
	err := fmt.Errorf("fill: %w", NewRedactionError(ErrorProvenanceMiss, "no record for [NAME]", "provenance", nil))

	assert.True(t, IsProvenanceMiss(err))
	assert.False(t, IsInvalidSpan(err))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorProvenanceMiss))
}

func TestRedactionErrorType_String(t *testing.T) {
	tests := []struct {
		typ  RedactionErrorType
		want string
	}{
		{ErrorNotFound, "not_found"},
		{ErrorOverlapConflict, "overlap_conflict"},
		{ErrorRevertNoMatch, "revert_no_match"},
		{ErrorSurface, "surface"},
		{RedactionErrorType(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestRedactionErrorCollection(t *testing.T) {
	rec := NewRedactionErrorCollection()
	assert.False(t, rec.HasErrors())

	rec.AddError(ErrorNotFound, "Ann not found", "resolver", nil)
	rec.AddError(ErrorOverlapConflict, "EMAIL overlaps PERSON", "resolver", nil)
	rec.AddError(ErrorNotFound, "Bob not found", "resolver", nil)

	assert.True(t, rec.HasErrors())
	assert.Equal(t, 3, rec.Count())
	assert.Len(t, rec.GetErrorsByType(ErrorNotFound), 2)
	assert.Equal(t, []string{"Ann not found", "EMAIL overlaps PERSON", "Bob not found"}, rec.Messages())
}
