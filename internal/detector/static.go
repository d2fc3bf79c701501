// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pii-redact/internal/redactors"
)

// Fixture is the YAML layout read by LoadFixture
type Fixture struct {
	Threshold float64  `yaml:"threshold"`
	Entities  []Entity `yaml:"entities"`
}

// StaticDetector reports a fixed entity list. Used offline and in tests.
type StaticDetector struct {
	entities  []Entity
	threshold float64
}

// NewStaticDetector creates a detector that always knows about entities
func NewStaticDetector(entities []Entity, threshold float64) *StaticDetector {
	return &StaticDetector{entities: entities, threshold: threshold}
}

// LoadFixture reads a static detector from a YAML file
func LoadFixture(path string) (*StaticDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read detector fixture: %w", err)
	}

	fixture := Fixture{Threshold: DefaultConfidenceThreshold}
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse detector fixture: %w", err)
	}
	for i, e := range fixture.Entities {
		if strings.TrimSpace(e.Type) == "" || strings.TrimSpace(e.Value) == "" {
			return nil, fmt.Errorf("fixture entity %d needs a type and a value", i)
		}
		// entries without a score count as certain
		if e.Confidence == 0 {
			fixture.Entities[i].Confidence = 1
		}
	}
	return NewStaticDetector(fixture.Entities, fixture.Threshold), nil
}

// Name identifies the detector in reports
func (d *StaticDetector) Name() string {
	return "static"
}

// Detect returns the fixture entities whose value occurs in text
func (d *StaticDetector) Detect(ctx context.Context, text string) ([]redactors.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)
	var present []Entity
	for _, e := range d.entities {
		if strings.Contains(lower, strings.ToLower(e.Value)) {
			present = append(present, e)
		}
	}
	return Candidates(present, d.threshold), nil
}
