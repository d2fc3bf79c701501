// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"errors"
	"fmt"
	"time"
)

// RedactionErrorType defines the type of redaction error
type RedactionErrorType int

const (
	// ErrorNotFound indicates a candidate value could not be located in the text
	ErrorNotFound RedactionErrorType = iota

	// ErrorOverlapConflict indicates a span was dropped because it intersects a kept span
	ErrorOverlapConflict

	// ErrorInvalidSpan indicates an empty, out-of-bounds, unordered or mismatched span
	ErrorInvalidSpan

	// ErrorProvenanceMiss indicates no unfilled record matched a label
	ErrorProvenanceMiss

	// ErrorRevertNoMatch indicates a fake value was absent from the response
	ErrorRevertNoMatch

	// ErrorDetector indicates the detection service failed or returned bad data
	ErrorDetector

	// ErrorConfiguration indicates a configuration error
	ErrorConfiguration

	// ErrorSurface indicates reading or writing the host text failed
	ErrorSurface
)

// String returns the string representation of the error type
func (ret RedactionErrorType) String() string {
	switch ret {
	case ErrorNotFound:
		return "not_found"
	case ErrorOverlapConflict:
		return "overlap_conflict"
	case ErrorInvalidSpan:
		return "invalid_span"
	case ErrorProvenanceMiss:
		return "provenance_miss"
	case ErrorRevertNoMatch:
		return "revert_no_match"
	case ErrorDetector:
		return "detector"
	case ErrorConfiguration:
		return "configuration"
	case ErrorSurface:
		return "surface"
	default:
		return "unknown"
	}
}

// RedactionError represents an error that occurred during redaction
type RedactionError struct {
	// Type is the type of error
	Type RedactionErrorType

	// Message is the error message
	Message string

	// Component is the component that generated the error
	Component string

	// Recoverable indicates whether the operation can continue past this error
	Recoverable bool

	// Timestamp is when the error occurred
	Timestamp time.Time

	// Cause is the underlying error that caused this error
	Cause error
}

// Error implements the error interface
func (re *RedactionError) Error() string {
	if re.Cause != nil {
		return fmt.Sprintf("[%s] %s (component: %s): %s",
			re.Type.String(), re.Message, re.Component, re.Cause.Error())
	}
	return fmt.Sprintf("[%s] %s (component: %s)", re.Type.String(), re.Message, re.Component)
}

// Unwrap returns the underlying error for error unwrapping
func (re *RedactionError) Unwrap() error {
	return re.Cause
}

// NewRedactionError creates a new RedactionError
func NewRedactionError(errorType RedactionErrorType, message, component string, cause error) *RedactionError {
	return &RedactionError{
		Type:        errorType,
		Message:     message,
		Component:   component,
		Recoverable: isRecoverable(errorType),
		Timestamp:   time.Now(),
		Cause:       cause,
	}
}

// isRecoverable determines if an error type is recoverable
func isRecoverable(errorType RedactionErrorType) bool {
	switch errorType {
	case ErrorNotFound, ErrorOverlapConflict, ErrorProvenanceMiss, ErrorRevertNoMatch:
		return true
	case ErrorDetector:
		return true
	default:
		return false
	}
}

// IsErrorType reports whether err wraps a RedactionError of the given type
func IsErrorType(err error, errorType RedactionErrorType) bool {
	var re *RedactionError
	if errors.As(err, &re) {
		return re.Type == errorType
	}
	return false
}

// IsInvalidSpan reports whether err is an invalid span rejection
func IsInvalidSpan(err error) bool {
	return IsErrorType(err, ErrorInvalidSpan)
}

// IsProvenanceMiss reports whether err is a provenance lookup miss
func IsProvenanceMiss(err error) bool {
	return IsErrorType(err, ErrorProvenanceMiss)
}

// RedactionErrorCollection collects the non-fatal errors of a batch operation
type RedactionErrorCollection struct {
	errors []RedactionError
}

// NewRedactionErrorCollection creates a new error collection
func NewRedactionErrorCollection() *RedactionErrorCollection {
	return &RedactionErrorCollection{
		errors: make([]RedactionError, 0),
	}
}

// Add adds an error to the collection
func (rec *RedactionErrorCollection) Add(err RedactionError) {
	rec.errors = append(rec.errors, err)
}

// AddError adds an error with the specified parameters
func (rec *RedactionErrorCollection) AddError(errorType RedactionErrorType, message, component string, cause error) {
	rec.Add(*NewRedactionError(errorType, message, component, cause))
}

// GetErrors returns all errors in the collection
func (rec *RedactionErrorCollection) GetErrors() []RedactionError {
	return rec.errors
}

// HasErrors returns true if the collection contains any errors
func (rec *RedactionErrorCollection) HasErrors() bool {
	return len(rec.errors) > 0
}

// GetErrorsByType returns all errors of the specified type
func (rec *RedactionErrorCollection) GetErrorsByType(errorType RedactionErrorType) []RedactionError {
	var result []RedactionError
	for _, err := range rec.errors {
		if err.Type == errorType {
			result = append(result, err)
		}
	}
	return result
}

// Count returns the number of errors in the collection
func (rec *RedactionErrorCollection) Count() int {
	return len(rec.errors)
}

// Messages returns one line per collected error
func (rec *RedactionErrorCollection) Messages() []string {
	out := make([]string, 0, len(rec.errors))
	for _, err := range rec.errors {
		out = append(out, err.Message)
	}
	return out
}
