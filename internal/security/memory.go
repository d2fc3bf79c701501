// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"crypto/subtle"
	"fmt"
)

// masked is what a SecureString prints as
const masked = "[secure]"

// SecureString holds an original PII value. Formatting it with fmt, zap or
// encoding/json prints a mask; Reveal is the only way to read the value.
//
// Clear zeroes the internal buffer. The Go runtime may still hold copies made
// by Reveal, so this narrows exposure rather than guaranteeing erasure.
type SecureString struct {
	data []byte
}

// NewSecureString copies s into a buffer owned by the SecureString
func NewSecureString(s string) *SecureString {
	data := make([]byte, len(s))
	copy(data, s)
	return &SecureString{data: data}
}

// Reveal returns the held value. Each call creates an immutable copy.
func (ss *SecureString) Reveal() string {
	if ss == nil {
		return ""
	}
	return string(ss.data)
}

// Len returns the length of the held value in bytes
func (ss *SecureString) Len() int {
	if ss == nil {
		return 0
	}
	return len(ss.data)
}

// Equal compares the held value with s in constant time
func (ss *SecureString) Equal(s string) bool {
	if ss == nil {
		return s == ""
	}
	return subtle.ConstantTimeCompare(ss.data, []byte(s)) == 1
}

// Cleared reports whether Clear has released the value
func (ss *SecureString) Cleared() bool {
	return ss == nil || ss.data == nil
}

// Clear overwrites the buffer with zeros and releases it
func (ss *SecureString) Clear() {
	if ss == nil || ss.data == nil {
		return
	}
	clear(ss.data)
	ss.data = nil
}

func (ss *SecureString) String() string { return masked }

func (ss *SecureString) GoString() string { return masked }

// Format keeps %v, %s, %q and %#v from printing the value
func (ss *SecureString) Format(f fmt.State, verb rune) {
	if verb == 'q' {
		fmt.Fprintf(f, "%q", masked)
		return
	}
	fmt.Fprint(f, masked)
}

func (ss *SecureString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + masked + `"`), nil
}
