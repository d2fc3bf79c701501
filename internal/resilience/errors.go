// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType represents different types of errors for handling strategies
type ErrorType int

const (
	ErrorTypeUnknown            ErrorType = iota
	ErrorTypeTransient                    // Temporary network issues
	ErrorTypePermanent                    // Rejected by the server, will not change on retry
	ErrorTypeTimeout                      // Request timeouts
	ErrorTypeRateLimit                    // 429 from the detector
	ErrorTypeServiceUnavailable           // 5xx from the detector
	ErrorTypeInvalidInput                 // Malformed request or response
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknown:
		return "Unknown"
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypePermanent:
		return "Permanent"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeRateLimit:
		return "RateLimit"
	case ErrorTypeServiceUnavailable:
		return "ServiceUnavailable"
	case ErrorTypeInvalidInput:
		return "InvalidInput"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(et))
	}
}

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original   error
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int // HTTP status when the error came from a response
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original != nil {
		return e.Original.Error()
	}
	return e.Type.String()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError categorizes an error for appropriate handling. Errors that
// are already classified anywhere in the chain are returned as is.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	// a cancelled caller is never retried
	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{Original: err, Type: ErrorTypePermanent, Message: err.Error()}
	}

	if isTimeoutError(err) {
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTimeout,
			Message:   fmt.Sprintf("Timeout error: %v", err),
			Retryable: true,
		}
	}

	if isNetworkError(err) {
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTransient,
			Message:   fmt.Sprintf("Network error: %v", err),
			Retryable: true,
		}
	}

	return &ClassifiedError{
		Original:  err,
		Type:      ErrorTypeUnknown,
		Message:   fmt.Sprintf("Unknown error: %v", err),
		Retryable: false,
	}
}

// ClassifyHTTPStatus turns a non-2xx response into a classified error.
// 429 and 5xx are retryable, other 4xx are not.
func ClassifyHTTPStatus(status int, body string) *ClassifiedError {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}
	msg := fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	if body != "" {
		msg += ": " + body
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &ClassifiedError{Type: ErrorTypeRateLimit, Message: msg, Retryable: true, StatusCode: status}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ClassifiedError{Type: ErrorTypeTimeout, Message: msg, Retryable: true, StatusCode: status}
	case status >= 500:
		return &ClassifiedError{Type: ErrorTypeServiceUnavailable, Message: msg, Retryable: true, StatusCode: status}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &ClassifiedError{Type: ErrorTypeInvalidInput, Message: msg, StatusCode: status}
	default:
		return &ClassifiedError{Type: ErrorTypePermanent, Message: msg, StatusCode: status}
	}
}

// isNetworkError checks if an error is network-related
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// isTimeoutError checks if an error is timeout-related
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}
