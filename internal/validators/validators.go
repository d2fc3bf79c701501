// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package validators bundles the local pattern validators into an offline
// detector for structured PII.
package validators

import (
	"pii-redact/internal/detector"
	"pii-redact/internal/observability"
	"pii-redact/internal/validators/creditcard"
	"pii-redact/internal/validators/email"
	"pii-redact/internal/validators/ipaddress"
	"pii-redact/internal/validators/phone"
	"pii-redact/internal/validators/ssn"
)

// All returns one instance of every validator
func All() []detector.Validator {
	return []detector.Validator{
		email.NewValidator(),
		creditcard.NewValidator(),
		ssn.NewValidator(),
		phone.NewValidator(),
		ipaddress.NewValidator(),
	}
}

// NewDetector returns a detector running every validator
func NewDetector(threshold float64, observer *observability.StandardObserver) *detector.ValidatorDetector {
	return detector.NewValidatorDetector(threshold, observer, All()...)
}
