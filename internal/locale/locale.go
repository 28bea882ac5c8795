// Package locale reconciles the raw locale codes of an extraction batch into
// canonical codes and maps them onto destination locales.
package locale

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Sentinels names the codes the reconciliation table is keyed on.
type Sentinels struct {
	NoLanguage      string `yaml:"no_language" mapstructure:"no_language"`
	English         string `yaml:"english" mapstructure:"english"`
	EnglishRegional string `yaml:"english_regional" mapstructure:"english_regional"`
}

// DefaultSentinels are the codes used by the legacy CMS.
func DefaultSentinels() Sentinels {
	return Sentinels{NoLanguage: "und", English: "en", EnglishRegional: "en-us"}
}

// Normalize lower-cases and trims a locale code.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Reconcile decides, once per batch, the canonical code for each distinct raw
// code. Only the no-language sentinel is ever remapped:
//
//	en and en-us present -> und stays und
//	only en-us present   -> und becomes en
//	only en present      -> und becomes en-us
//	neither present      -> und becomes en-us
//
// Every other code maps to itself.
func Reconcile(codes []string, s Sentinels) map[string]string {
	noLang := Normalize(s.NoLanguage)
	english := Normalize(s.English)
	regional := Normalize(s.EnglishRegional)

	present := make(map[string]bool, len(codes))
	for _, c := range codes {
		present[Normalize(c)] = true
	}

	out := make(map[string]string, len(present))
	for c := range present {
		out[c] = c
	}
	if !present[noLang] {
		return out
	}

	switch {
	case present[english] && present[regional]:
		out[noLang] = noLang
	case present[regional]:
		out[noLang] = english
	default:
		out[noLang] = regional
	}
	return out
}

// Mapper maps canonical codes onto destination locales.
type Mapper struct {
	Mapping map[string]string
	Master  string
	noLang  string
}

// NewMapper creates a Mapper. Mapping keys are matched case-insensitively.
func NewMapper(mapping map[string]string, master string, s Sentinels) *Mapper {
	m := &Mapper{
		Mapping: make(map[string]string, len(mapping)),
		Master:  Normalize(master),
		noLang:  Normalize(s.NoLanguage),
	}
	for k, v := range mapping {
		m.Mapping[Normalize(k)] = Normalize(v)
	}
	return m
}

// Destination returns the destination locale for a canonical code. Unmapped
// codes keep their canonical value, except the no-language sentinel, which
// falls back to the master locale.
func (m *Mapper) Destination(canonical string) string {
	c := Normalize(canonical)
	if dest, ok := m.Mapping[c]; ok && dest != "" {
		return dest
	}
	if c == m.noLang && m.Master != "" {
		return m.Master
	}
	return c
}

// Plan is the batch-level locale decision.
type Plan struct {
	// Canonical maps each normalized raw code to its reconciled code.
	Canonical map[string]string
	// Destination maps each normalized raw code to its final destination locale.
	Destination map[string]string
	// Groups lists the raw codes merged into each destination locale.
	Groups map[string][]string
}

// NewPlan reconciles codes and maps them through m.
func NewPlan(codes []string, s Sentinels, m *Mapper) Plan {
	p := Plan{
		Canonical:   Reconcile(codes, s),
		Destination: make(map[string]string),
		Groups:      make(map[string][]string),
	}
	for raw, canonical := range p.Canonical {
		dest := m.Destination(canonical)
		p.Destination[raw] = dest
		p.Groups[dest] = append(p.Groups[dest], raw)
	}
	for dest := range p.Groups {
		sort.Strings(p.Groups[dest])
	}
	return p
}

// Locales returns the destination locales in sorted order.
func (p Plan) Locales() []string {
	out := make([]string, 0, len(p.Groups))
	for dest := range p.Groups {
		out = append(out, dest)
	}
	sort.Strings(out)
	return out
}

// ValidateMapping returns the destination codes that are not well-formed
// BCP 47 tags, sorted.
func ValidateMapping(mapping map[string]string) []string {
	var bad []string
	for _, dest := range mapping {
		if _, err := language.Parse(dest); err != nil {
			bad = append(bad, dest)
		}
	}
	sort.Strings(bad)
	return bad
}
