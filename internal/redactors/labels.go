// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"sort"
	"strings"
)

// Label strings written into redacted text. The set is closed.
const (
	LabelName         = "[NAME]"
	LabelLocation     = "[LOCATION]"
	LabelEmail        = "[EMAIL]"
	LabelPhone        = "[PHONE]"
	LabelOrganization = "[ORGANIZATION]"
	LabelRedacted     = "[REDACTED]"
)

var typeLabels = map[PIIType]string{
	TypePerson:       LabelName,
	TypeLocation:     LabelLocation,
	TypeEmail:        LabelEmail,
	TypePhone:        LabelPhone,
	TypeOrganization: LabelOrganization,
}

var labelTypes = map[string]PIIType{
	LabelName:         TypePerson,
	LabelLocation:     TypeLocation,
	LabelEmail:        TypeEmail,
	LabelPhone:        TypePhone,
	LabelOrganization: TypeOrganization,
}

// detectorTypes maps entity names emitted by detection services onto PIIType
var detectorTypes = map[string]PIIType{
	"PERSON":            TypePerson,
	"PER":               TypePerson,
	"NAME":              TypePerson,
	"LOCATION":          TypeLocation,
	"LOC":               TypeLocation,
	"GPE":               TypeLocation,
	"ADDRESS":           TypeAddress,
	"EMAIL":             TypeEmail,
	"EMAIL_ADDRESS":     TypeEmail,
	"PHONE":             TypePhone,
	"PHONE_NUMBER":      TypePhone,
	"ORGANIZATION":      TypeOrganization,
	"ORG":               TypeOrganization,
	"NRP":               TypeOrganization,
	"SSN":               TypeSSN,
	"US_SSN":            TypeSSN,
	"CREDIT_CARD":       TypeCreditCard,
	"IP_ADDRESS":        TypeIPAddress,
	"DATE_TIME":         TypeDateTime,
	"URL":               TypeURL,
	"US_DRIVER_LICENSE": TypeID,
	"US_PASSPORT":       TypeID,
	"MEDICAL_LICENSE":   TypeID,
	"NPI":               TypeID,
	"US_BANK_NUMBER":    TypeBankAccount,
	"IBAN_CODE":         TypeBankAccount,
}

// LabelFor returns the label for an entity type. Types without a dedicated
// label get [REDACTED].
func LabelFor(t PIIType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return LabelRedacted
}

// Labels returns the closed label set, longest first
func Labels() []string {
	labels := []string{LabelName, LabelLocation, LabelEmail, LabelPhone, LabelOrganization, LabelRedacted}
	sort.SliceStable(labels, func(i, j int) bool {
		return len(labels[i]) > len(labels[j])
	})
	return labels
}

// IsLabel reports whether s is exactly one of the closed label strings
func IsLabel(s string) bool {
	if s == LabelRedacted {
		return true
	}
	_, ok := labelTypes[s]
	return ok
}

// TypeForLabel returns the type a label was produced for. [REDACTED] is shared
// by many types and returns ok=false.
func TypeForLabel(label string) (PIIType, bool) {
	t, ok := labelTypes[label]
	return t, ok
}

// NormalizeType maps a detector entity name onto PIIType. Unknown names pass
// through upper-cased and later receive the [REDACTED] label.
func NormalizeType(name string) PIIType {
	key := strings.ToUpper(strings.TrimSpace(name))
	if t, ok := detectorTypes[key]; ok {
		return t
	}
	return PIIType(key)
}

// IsMultiToken reports whether values of this type are usually several words
// whose parts may be quoted on their own
func IsMultiToken(t PIIType) bool {
	return t == TypePerson
}

// FindLabels returns every label occurrence in text, in code point offsets and
// ascending order. Span.Type is empty for [REDACTED].
func FindLabels(text string) []Span {
	runes := []rune(text)
	labels := Labels()
	var spans []Span
	for i := 0; i < len(runes); i++ {
		if runes[i] != '[' {
			continue
		}
		for _, label := range labels {
			lr := []rune(label)
			if i+len(lr) > len(runes) || string(runes[i:i+len(lr)]) != label {
				continue
			}
			t, _ := TypeForLabel(label)
			spans = append(spans, Span{Start: i, End: i + len(lr), Type: t, Value: label})
			i += len(lr) - 1
			break
		}
	}
	return spans
}

// KnownTypes returns every type the system has a dedicated shape for
func KnownTypes() []PIIType {
	return []PIIType{
		TypePerson, TypeLocation, TypeAddress, TypeEmail, TypePhone, TypeOrganization,
		TypeSSN, TypeCreditCard, TypeIPAddress, TypeDateTime, TypeURL, TypeID, TypeBankAccount,
	}
}

// DetectorNames returns the detector entity names that normalise to t, sorted
func DetectorNames(t PIIType) []string {
	var names []string
	for name, mapped := range detectorTypes {
		if mapped == t {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
