// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDir_Override(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)

	assert.Equal(t, filepath.Clean(dir), GetConfigDir())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), GetConfigFile())
	assert.Equal(t, filepath.Join(dir, "session.db"), GetSessionFile())
}

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", NormalizePath(""))
	assert.Equal(t, filepath.Join(home, "notes", "a.txt"), NormalizePath("~/notes/a.txt"))
	assert.Equal(t, filepath.Clean("a/b"), NormalizePath("a/./b/"))
}
