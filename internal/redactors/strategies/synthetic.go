// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"fmt"
	"strings"

	"pii-redact/internal/redactors"
)

// Closed pools of invented words. Nothing here is drawn from a census or
// directory, so a generated value cannot name a real person or place.
var (
	firstNames = []string{
		"Zendric", "Quilla", "Morvane", "Tessaly", "Orwynn", "Vexalie", "Brannoch", "Ilsabet",
		"Kestrin", "Yvaine", "Doralith", "Fenwyck", "Savrin", "Elowick", "Maelis", "Jorvessa",
	}
	lastNames = []string{
		"Ashvane", "Vantreth", "Morrowick", "Quillfeather", "Drennick", "Larkspire", "Oakenvale", "Brisbec",
		"Fallowmere", "Cindervale", "Wexlowe", "Embervell", "Gravenholt", "Stillwyn", "Pennridge", "Tarrowby",
	}
	towns = []string{
		"Larkspire Hollow", "Oakenvale", "Fallowmere", "Cinderbrook", "Gravenholt", "Wexlowe Cross",
		"Stillwyn Bay", "Embervell", "Morrow Fen", "Quenhaven",
	}
	streetSuffixes = []string{"Lane", "Road", "Row", "Crescent", "Way"}
	orgWords       = []string{
		"Vantreth", "Brisbec", "Oakenvale", "Quillfeather", "Stillwyn", "Embervell", "Larkspire", "Cindervale",
	}
	orgSuffixes = []string{"Holdings", "Labs", "Group", "Works", "Collective", "Partners"}
	emailWords  = []string{"user", "sample", "demo", "placeholder", "guest", "member", "reader", "contact"}
	urlTLDs     = []string{"com", "org", "net"}
	ipRanges    = []string{"192.0.2", "198.51.100", "203.0.113"}
)

const tokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SyntheticGenerator builds fake values per PIIType
type SyntheticGenerator struct {
	rnd        RandomSource
	generators map[redactors.PIIType]func(original string) string
}

// NewSyntheticGenerator creates a generator backed by crypto/rand
func NewSyntheticGenerator() *SyntheticGenerator {
	return NewSyntheticGeneratorWithSource(secureSource{})
}

// NewSyntheticGeneratorWithSource creates a generator with a custom source
func NewSyntheticGeneratorWithSource(rnd RandomSource) *SyntheticGenerator {
	g := &SyntheticGenerator{rnd: rnd}
	g.generators = map[redactors.PIIType]func(string) string{
		redactors.TypePerson:       g.generatePersonName,
		redactors.TypeEmail:        func(string) string { return g.generateEmail() },
		redactors.TypePhone:        func(string) string { return g.generatePhone() },
		redactors.TypeLocation:     func(string) string { return g.pick(towns) },
		redactors.TypeAddress:      func(string) string { return g.generateAddress() },
		redactors.TypeOrganization: func(string) string { return g.generateOrganization() },
		redactors.TypeSSN:          func(string) string { return g.generateSSN() },
		redactors.TypeCreditCard:   func(string) string { return g.generateCreditCard() },
		redactors.TypeID:           func(string) string { return g.generateID() },
		redactors.TypeURL:          func(string) string { return g.generateURL() },
		redactors.TypeDateTime:     func(string) string { return g.generateDate() },
		redactors.TypeIPAddress:    func(string) string { return g.generateIPAddress() },
		redactors.TypeBankAccount:  func(string) string { return g.digitGroups(4, 4, 4) },
	}
	return g
}

// Generate returns a fake value for the type
func (g *SyntheticGenerator) Generate(t redactors.PIIType) string {
	return g.GenerateLike(t, "")
}

// GenerateLike returns a fake value for the type that follows the structure of original
func (g *SyntheticGenerator) GenerateLike(t redactors.PIIType, original string) string {
	if gen, ok := g.generators[t]; ok {
		return gen(original)
	}
	return g.token(8)
}

// generatePersonName keeps a title prefix (Dr., Ms.) and the number of name
// tokens of original. With no original it returns "First Last".
func (g *SyntheticGenerator) generatePersonName(original string) string {
	title, parts := SplitTitle(original)
	if len(parts) == 0 {
		parts = []string{"", ""}
	}

	first := g.pick(firstNames)
	last := g.pick(lastNames)

	var name string
	switch len(parts) {
	case 1:
		name = first
	case 2:
		name = first + " " + last
	default:
		mid := g.pick(firstNames)[:1] + "."
		name = first + " " + mid + " " + last
	}
	if title != "" {
		return title + " " + name
	}
	return name
}

func (g *SyntheticGenerator) generateEmail() string {
	return fmt.Sprintf("%s%d@example.com", g.pick(emailWords), 100+g.rnd.Intn(9900))
}

// generatePhone uses the 555-01xx block reserved for fiction
func (g *SyntheticGenerator) generatePhone() string {
	return fmt.Sprintf("(%03d) 555-01%02d", 200+g.rnd.Intn(800), g.rnd.Intn(100))
}

func (g *SyntheticGenerator) generateAddress() string {
	return fmt.Sprintf("%d %s %s, %s", 1+g.rnd.Intn(998), g.pick(lastNames), g.pick(streetSuffixes), g.pick(towns))
}

func (g *SyntheticGenerator) generateOrganization() string {
	return g.pick(orgWords) + " " + g.pick(orgSuffixes)
}

// generateSSN uses the 900-999 area range, which is never issued
func (g *SyntheticGenerator) generateSSN() string {
	return fmt.Sprintf("%03d-%02d-%04d", 900+g.rnd.Intn(100), 1+g.rnd.Intn(99), 1+g.rnd.Intn(9999))
}

// generateCreditCard uses a test-card prefix and a valid Luhn check digit
func (g *SyntheticGenerator) generateCreditCard() string {
	digits := []int{4, 0, 0, 0}
	for len(digits) < 15 {
		digits = append(digits, g.rnd.Intn(10))
	}
	digits = append(digits, calculateLuhnCheckDigit(digits))

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

func (g *SyntheticGenerator) generateID() string {
	letters := "ABCDEFGHJKLMNPRSTUVWXYZ"
	return fmt.Sprintf("%c%c%07d", letters[g.rnd.Intn(len(letters))], letters[g.rnd.Intn(len(letters))], g.rnd.Intn(10000000))
}

func (g *SyntheticGenerator) generateURL() string {
	return fmt.Sprintf("https://example.%s/%s%d", g.pick(urlTLDs), g.pick(emailWords), g.rnd.Intn(1000))
}

func (g *SyntheticGenerator) generateDate() string {
	return fmt.Sprintf("%04d-%02d-%02d", 1990+g.rnd.Intn(30), 1+g.rnd.Intn(12), 1+g.rnd.Intn(28))
}

// generateIPAddress draws from the documentation ranges
func (g *SyntheticGenerator) generateIPAddress() string {
	return fmt.Sprintf("%s.%d", g.pick(ipRanges), 1+g.rnd.Intn(254))
}

func (g *SyntheticGenerator) digitGroups(groups ...int) string {
	parts := make([]string, len(groups))
	for i, n := range groups {
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(byte('0' + g.rnd.Intn(10)))
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}

func (g *SyntheticGenerator) token(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[g.rnd.Intn(len(tokenAlphabet))]
	}
	return string(b)
}

func (g *SyntheticGenerator) pick(pool []string) string {
	return pool[g.rnd.Intn(len(pool))]
}

// SplitTitle separates a leading honorific such as "Dr." from the name tokens
func SplitTitle(name string) (title string, parts []string) {
	parts = strings.Fields(name)
	if len(parts) > 1 && strings.HasSuffix(parts[0], ".") && len(parts[0]) <= 5 {
		return parts[0], parts[1:]
	}
	return "", parts
}
