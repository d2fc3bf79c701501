// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package surface abstracts the editable text a session redacts in place.
package surface

import "sync"

// Surface is the host-owned text buffer. Implementations must tolerate the
// text changing between a read and a later write; callers re-read before
// every mutation.
type Surface interface {
	CurrentText() (string, error)
	SetCurrentText(text string) error
}

// MemorySurface keeps the text in memory. Safe for concurrent use.
type MemorySurface struct {
	mu   sync.RWMutex
	text string
}

// NewMemorySurface creates a surface holding text
func NewMemorySurface(text string) *MemorySurface {
	return &MemorySurface{text: text}
}

func (m *MemorySurface) CurrentText() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text, nil
}

func (m *MemorySurface) SetCurrentText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}
