// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"pii-redact/internal/formatters"
	"pii-redact/internal/formatters/shared"
	"pii-redact/internal/provenance"
	"pii-redact/internal/session"
)

// Formatter implements text-based output formatting
type Formatter struct {
	colors map[string]*color.Color
}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed),
			"cyan":   color.New(color.FgCyan),
			"white":  color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable text output with colors and tables"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(report formatters.Report, options formatters.FormatterOptions) (string, error) {
	if options.NoColor {
		color.NoColor = true
	}

	var b strings.Builder

	if report.Batch != nil {
		f.appendBatch(&b, report, options)
	}
	if len(report.Annotations) > 0 {
		f.appendAnnotations(&b, report.Annotations, options)
	} else if report.Operation == "scan" {
		b.WriteString("No PII found.\n")
	}
	if len(report.Records) > 0 {
		f.appendRecords(&b, report.Records, options)
	}
	if report.Text != "" && options.Verbose {
		b.WriteString("\n")
		b.WriteString(f.paint("white", "TEXT", options))
		b.WriteString("\n")
		b.WriteString(report.Text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (f *Formatter) paint(name, s string, options formatters.FormatterOptions) string {
	if options.NoColor {
		return s
	}
	return f.colors[name].Sprint(s)
}

func (f *Formatter) appendBatch(b *strings.Builder, report formatters.Report, options formatters.FormatterOptions) {
	batch := report.Batch
	status := "green"
	if batch.Processed < batch.Total {
		status = "yellow"
	}
	b.WriteString(f.paint(status, batch.String(), options))
	b.WriteString("\n")
	for _, reason := range batch.Skipped {
		b.WriteString("  skipped: ")
		b.WriteString(f.paint("yellow", shared.Flatten(reason), options))
		b.WriteString("\n")
	}
}

// appendAnnotations prints one row per pending span
func (f *Formatter) appendAnnotations(b *strings.Builder, annotations []session.Annotation, options formatters.FormatterOptions) {
	width := valueWidth(len(shared.Mask), options.ShowOriginals, func(yield func(string)) {
		for _, a := range annotations {
			yield(a.Span.Value)
		}
	})

	header := fmt.Sprintf("%-8s %-14s %-8s %-12s %-*s %s\n", "LEVEL", "TYPE", "CONF%", "RANGE", width, "VALUE", "ID")
	b.WriteString(f.paint("white", header, options))
	b.WriteString(f.paint("white", strings.Repeat("-", 8+1+14+1+8+1+12+1+width+1+36)+"\n", options))

	for _, a := range annotations {
		level := shared.GetConfidenceLevel(a.Confidence)
		levelColor := "cyan"
		switch level {
		case "HIGH":
			levelColor = "red"
		case "MEDIUM":
			levelColor = "yellow"
		}
		conf := "-"
		if a.Confidence > 0 {
			conf = fmt.Sprintf("%.0f", a.Confidence*100)
		}
		b.WriteString(f.paint(levelColor, fmt.Sprintf("%-8s", orDash(level)), options))
		fmt.Fprintf(b, " %-14s %-8s %-12s %-*s %s\n",
			a.Span.Type,
			conf,
			fmt.Sprintf("%d-%d", a.Span.Start, a.Span.End),
			width, truncate(shared.Flatten(shared.Original(a.Span.Value, options)), width),
			a.ID)
	}
}

// appendRecords prints the provenance table
func (f *Formatter) appendRecords(b *strings.Builder, records []provenance.MappingRecord, options formatters.FormatterOptions) {
	width := valueWidth(len(shared.Mask), options.ShowOriginals, func(yield func(string)) {
		for _, r := range records {
			yield(r.Original)
		}
	})

	header := fmt.Sprintf("%-14s %-*s %-14s %s\n", "TYPE", width, "ORIGINAL", "LABEL", "FAKE")
	b.WriteString(f.paint("white", header, options))
	b.WriteString(f.paint("white", strings.Repeat("-", 14+1+width+1+14+1+20)+"\n", options))

	for _, r := range records {
		fake := f.paint("yellow", "(unfilled)", options)
		if r.IsFilled() {
			fake = f.paint("green", r.Fake, options)
		}
		fmt.Fprintf(b, "%-14s %-*s %-14s %s\n",
			r.Type,
			width, truncate(shared.Flatten(shared.Original(r.Original, options)), width),
			r.Masked,
			fake)
		if options.Verbose {
			fmt.Fprintf(b, "  id=%s position=%d created=%s\n", r.ID, r.Position, r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	}
}

// valueWidth sizes the value column, capped at 30 runes
func valueWidth(floor int, show bool, values func(yield func(string))) int {
	width := floor
	if !show {
		return width
	}
	values(func(v string) {
		if n := len([]rune(shared.Flatten(v))); n > width {
			width = n
		}
	})
	if width > 30 {
		width = 30
	}
	return width
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
