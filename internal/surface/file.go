// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package surface

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pii-redact/internal/redactors"
)

const fileComponent = "file_surface"

// FileSurface reads its text from a file and writes edits to an output file.
// PDF sources are read through text extraction and can never be written
// back; their edits go to a sibling .txt file unless an output is set.
type FileSurface struct {
	mu     sync.Mutex
	path   string
	output string
	isPDF  bool

	// pdfText caches the extracted text so repeated reads agree
	pdfText *string
}

// NewFileSurface creates a surface over path. An empty output writes back to
// path, or for PDFs to path with a .txt extension.
func NewFileSurface(path, output string) *FileSurface {
	isPDF := strings.EqualFold(filepath.Ext(path), ".pdf")
	if output == "" {
		output = path
		if isPDF {
			output = strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
		}
	}
	return &FileSurface{path: path, output: output, isPDF: isPDF}
}

// Path returns the source path
func (f *FileSurface) Path() string { return f.path }

// OutputPath returns where SetCurrentText writes
func (f *FileSurface) OutputPath() string { return f.output }

// CurrentText returns the output file's contents once it exists, so a chain
// of commands keeps working on the latest text; otherwise the source's.
func (f *FileSurface) CurrentText() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.output != f.path {
		if data, err := os.ReadFile(f.output); err == nil {
			return string(data), nil
		}
	}

	if f.isPDF {
		if f.pdfText == nil {
			content, err := ExtractPDFText(f.path)
			if err != nil {
				return "", redactors.NewRedactionError(redactors.ErrorSurface,
					"failed to extract PDF text", fileComponent, err)
			}
			f.pdfText = &content.Text
		}
		return *f.pdfText, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", redactors.NewRedactionError(redactors.ErrorSurface,
			fmt.Sprintf("failed to read %s", f.path), fileComponent, err)
	}
	return string(data), nil
}

// SetCurrentText writes text to the output path
func (f *FileSurface) SetCurrentText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	mode := os.FileMode(0600)
	if info, err := os.Stat(f.output); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(f.output, []byte(text), mode); err != nil {
		return redactors.NewRedactionError(redactors.ErrorSurface,
			fmt.Sprintf("failed to write %s", f.output), fileComponent, err)
	}
	return nil
}
