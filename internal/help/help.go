// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package help

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"pii-redact/internal/redactors"
)

// TypeInfo describes how one PII type is labelled and filled
type TypeInfo struct {
	Type          redactors.PIIType
	Label         string
	FakeShape     string
	DetectorNames []string
	MultiToken    bool
}

// fakeShapes describes the synthetic values each type is filled with
var fakeShapes = map[redactors.PIIType]string{
	redactors.TypePerson:       "first [+ last] name from a fictitious pool, title kept",
	redactors.TypeLocation:     "fictitious town",
	redactors.TypeAddress:      "fictitious street address",
	redactors.TypeEmail:        "word+digits@example.com",
	redactors.TypePhone:        "555-prefixed number",
	redactors.TypeOrganization: "fictitious company name with suffix",
	redactors.TypeSSN:          "9xx-xx-xxxx (never issued)",
	redactors.TypeCreditCard:   "test-prefix number with valid Luhn digit",
	redactors.TypeIPAddress:    "RFC 5737 documentation address",
	redactors.TypeDateTime:     "YYYY-MM-DD",
	redactors.TypeURL:          "https://example.<tld>/path",
	redactors.TypeID:           "two letters + 7 digits",
	redactors.TypeBankAccount:  "digit groups",
}

// Types returns help entries for every known type
func Types() []TypeInfo {
	var out []TypeInfo
	for _, t := range redactors.KnownTypes() {
		out = append(out, typeInfo(t))
	}
	return out
}

func typeInfo(t redactors.PIIType) TypeInfo {
	return TypeInfo{
		Type:          t,
		Label:         redactors.LabelFor(t),
		FakeShape:     fakeShapes[t],
		DetectorNames: redactors.DetectorNames(t),
		MultiToken:    redactors.IsMultiToken(t),
	}
}

// System renders help content
type System struct {
	out    io.Writer
	colors map[string]*color.Color
}

// NewSystem creates a help system writing to out
func NewSystem(out io.Writer, noColor bool) *System {
	if noColor {
		color.NoColor = true
	}
	return &System{
		out: out,
		colors: map[string]*color.Color{
			"title":   color.New(color.FgWhite, color.Bold),
			"header":  color.New(color.FgBlue, color.Bold),
			"item":    color.New(color.FgCyan),
			"example": color.New(color.FgMagenta),
		},
	}
}

// ShowGeneralHelp displays usage, commands and flags
func (h *System) ShowGeneralHelp() {
	h.colors["title"].Fprintln(h.out, "pii-redact - PII redaction and re-identification")
	fmt.Fprintln(h.out, "================================================")
	fmt.Fprintln(h.out)
	h.colors["header"].Fprintln(h.out, "USAGE:")
	fmt.Fprintln(h.out, "  pii-redact <command> [options]")
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "COMMANDS:")
	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  scan\tDetect and locate PII in the input, print the spans")
	fmt.Fprintln(w, "  redact\tReplace every located span with its type label")
	fmt.Fprintln(w, "  fill\tReplace labels with synthetic values")
	fmt.Fprintln(w, "  revert\tRestore original values in text that quotes the synthetic ones")
	fmt.Fprintln(w, "  records\tList the session's provenance records")
	fmt.Fprintln(w, "  clear\tEnd the session and drop every record")
	fmt.Fprintln(w, "  allow [-type T] VALUE\tNever redact VALUE (-list, -remove ID, -cleanup)")
	fmt.Fprintln(w, "  serve\tExpose the session over a local HTTP API")
	fmt.Fprintln(w, "  version\tShow version information")
	fmt.Fprintln(w, "  help [types|<TYPE>]\tShow this help, the type table or one type")
	w.Flush()
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "OPTIONS:")
	w = tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  -file\t<path>\tInput file, text or PDF (default: stdin)")
	fmt.Fprintln(w, "  -output\t<path>\tWhere rewritten text goes (default: the input file, or stdout)")
	fmt.Fprintln(w, "  -config\t<path>\tPath to configuration file (YAML)")
	fmt.Fprintln(w, "  -mock\t<path>\tUse a static detector fixture instead of the detection service")
	fmt.Fprintln(w, "  -local\t\tDetect structured PII offline with pattern validators (no names or places)")
	fmt.Fprintln(w, "  -algorithm\t<name>\tRedaction algorithm: ascending or descending")
	fmt.Fprintln(w, "  -format\t<format>\tReport format: text, json, yaml, csv (default: text)")
	fmt.Fprintln(w, "  -session-store\t<path>\tSession database shared between invocations")
	fmt.Fprintln(w, "  -no-persist\t\tKeep the session in memory only")
	fmt.Fprintln(w, "  -allow-list\t<path>\tAllow list of values never redacted (YAML)")
	fmt.Fprintln(w, "  -audit-log\t<path>\tWrite the redaction audit log (JSON)")
	fmt.Fprintln(w, "  -show-originals\t\tPrint original values in reports (otherwise [HIDDEN])")
	fmt.Fprintln(w, "  -listen\t<addr>\tAddress for serve (default: 127.0.0.1:8080)")
	fmt.Fprintln(w, "  -verbose\t\tInclude ids, timestamps and the rewritten text in reports")
	fmt.Fprintln(w, "  -debug\t\tTrace each step on stderr")
	fmt.Fprintln(w, "  -no-color\t\tDisable colored output")
	w.Flush()
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "EXAMPLES:")
	h.colors["example"].Fprintln(h.out, "  pii-redact redact -file prompt.txt -output prompt.redacted.txt")
	h.colors["example"].Fprintln(h.out, "  pii-redact fill -file prompt.redacted.txt")
	h.colors["example"].Fprintln(h.out, "  pii-redact revert -file answer.txt")
	h.colors["example"].Fprintln(h.out, "  echo 'Mail Ann at ann@corp.com' | pii-redact redact -mock fixture.yaml -no-persist")
	h.colors["example"].Fprintln(h.out, "  pii-redact redact -local -file notes.txt")
	h.colors["example"].Fprintln(h.out, "  pii-redact allow -type ORGANIZATION -reason 'public company' 'Acme Corp'")
	h.colors["example"].Fprintln(h.out, "  pii-redact serve -listen 127.0.0.1:8080")
}

// ShowTypesHelp lists every type with its label and fake shape
func (h *System) ShowTypesHelp() {
	h.colors["header"].Fprintln(h.out, "PII TYPES:")
	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TYPE\tLABEL\tFILLED WITH")
	for _, info := range Types() {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", info.Type, info.Label, info.FakeShape)
	}
	w.Flush()
	fmt.Fprintln(h.out)
	fmt.Fprintf(h.out, "Other detector types receive %s and an 8-character token.\n", redactors.LabelRedacted)
}

// ShowTypeHelp shows one type. The name may be a type or a detector entity
// name; it returns false for names that map to no known type.
func (h *System) ShowTypeHelp(name string) bool {
	t := redactors.NormalizeType(name)
	known := false
	for _, k := range redactors.KnownTypes() {
		if k == t {
			known = true
			break
		}
	}
	if !known {
		return false
	}

	info := typeInfo(t)
	h.colors["title"].Fprintln(h.out, string(info.Type))
	fmt.Fprintf(h.out, "  Label:       %s\n", info.Label)
	fmt.Fprintf(h.out, "  Filled with: %s\n", info.FakeShape)
	if len(info.DetectorNames) > 0 {
		fmt.Fprintf(h.out, "  Detector:    %s\n", strings.Join(info.DetectorNames, ", "))
	}
	if info.MultiToken {
		h.colors["item"].Fprintln(h.out, "  Revert also matches the first or last name of a filled value on its own.")
	}
	return true
}
