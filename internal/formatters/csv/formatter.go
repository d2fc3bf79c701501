// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package csv

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"pii-redact/internal/formatters"
	"pii-redact/internal/formatters/shared"
)

// Formatter implements CSV output formatting. Annotations and records share
// one table; the Kind column tells them apart.
type Formatter struct{}

// NewFormatter creates a new CSV formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "csv"
}

func (f *Formatter) Description() string {
	return "Comma-separated values for spreadsheet import"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

var headers = []string{"Kind", "ID", "Type", "Value", "Start", "End", "Confidence", "Masked", "Fake", "Filled"}

func (f *Formatter) Format(report formatters.Report, options formatters.FormatterOptions) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	rows := [][]string{headers}
	for _, a := range report.Annotations {
		rows = append(rows, []string{
			"annotation",
			a.ID,
			string(a.Span.Type),
			shared.Flatten(shared.Original(a.Span.Value, options)),
			strconv.Itoa(a.Span.Start),
			strconv.Itoa(a.Span.End),
			strconv.FormatFloat(a.Confidence, 'f', 2, 64),
			"", "", "",
		})
	}
	for _, r := range report.Records {
		rows = append(rows, []string{
			"record",
			r.ID,
			string(r.Type),
			shared.Flatten(shared.Original(r.Original, options)),
			strconv.Itoa(r.Position),
			"",
			"",
			r.Masked,
			r.Fake,
			strconv.FormatBool(r.IsFilled()),
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return b.String(), nil
}

func init() {
	formatters.Register(NewFormatter())
}
