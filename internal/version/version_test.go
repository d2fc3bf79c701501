// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	assert.Contains(t, Info(), "pii-redact "+Version)
	assert.Equal(t, Version, Short())

	full := Full()
	assert.Equal(t, Version, full["version"])
	assert.Equal(t, Platform, full["platform"])
}
