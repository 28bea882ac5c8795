// Package refindex holds the read-only lookup tables that map legacy
// identifiers from the source CMS to their destination counterparts.
package refindex

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrFrozen is returned when adding to a builder that has already been frozen.
var ErrFrozen = eris.New("refindex: builder is frozen")

// AssetDescriptor describes a migrated asset in the destination CMS.
type AssetDescriptor struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	FileName    string `json:"filename"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

// EntryReference points at a migrated entry in the destination CMS.
type EntryReference struct {
	UID            string `json:"uid"`
	ContentTypeUID string `json:"_content_type_uid"`
	Locale         string `json:"locale,omitempty"`
}

// TermMapping identifies a taxonomy term in the destination CMS.
type TermMapping struct {
	TaxonomyUID string `json:"taxonomy_uid"`
	TermUID     string `json:"term_uid"`
}

// Stats reports table sizes.
type Stats struct {
	Assets  int            `json:"assets"`
	Entries map[string]int `json:"entries"`
	Terms   int            `json:"terms"`
}

// Builder accumulates index tables. It is safe for concurrent use until
// Freeze is called.
type Builder struct {
	mu      sync.Mutex
	frozen  bool
	assets  map[string]AssetDescriptor
	entries map[string]map[string]EntryReference
	terms   map[string]TermMapping
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		assets:  make(map[string]AssetDescriptor),
		entries: make(map[string]map[string]EntryReference),
		terms:   make(map[string]TermMapping),
	}
}

// AddAsset registers an asset under its legacy id.
func (b *Builder) AddAsset(legacyID string, a AssetDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrFrozen
	}
	b.assets[normalizeID(legacyID)] = a
	return nil
}

// AddEntry registers an entry reference for one locale.
func (b *Builder) AddEntry(locale, legacyID string, ref EntryReference) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrFrozen
	}
	loc := normalizeLocale(locale)
	tbl, ok := b.entries[loc]
	if !ok {
		tbl = make(map[string]EntryReference)
		b.entries[loc] = tbl
	}
	if ref.Locale == "" {
		ref.Locale = loc
	}
	tbl[normalizeID(legacyID)] = ref
	return nil
}

// AddTerm registers a taxonomy term mapping.
func (b *Builder) AddTerm(legacyID string, t TermMapping) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrFrozen
	}
	b.terms[normalizeID(legacyID)] = t
	return nil
}

// Freeze returns the immutable Index. The builder rejects further adds.
func (b *Builder) Freeze() *Index {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
	return &Index{assets: b.assets, entries: b.entries, terms: b.terms}
}

// Index is the frozen Reference Index. All methods are safe for concurrent use.
// A missing key is an expected outcome and is reported through the bool result.
type Index struct {
	assets  map[string]AssetDescriptor
	entries map[string]map[string]EntryReference
	terms   map[string]TermMapping
}

// Empty returns an index with no tables.
func Empty() *Index {
	return NewBuilder().Freeze()
}

// Asset looks up an asset by legacy id.
func (ix *Index) Asset(legacyID string) (AssetDescriptor, bool) {
	if ix == nil {
		return AssetDescriptor{}, false
	}
	a, ok := ix.assets[normalizeID(legacyID)]
	return a, ok
}

// Entry looks up an entry reference by locale and legacy id.
func (ix *Index) Entry(locale, legacyID string) (EntryReference, bool) {
	if ix == nil {
		return EntryReference{}, false
	}
	tbl, ok := ix.entries[normalizeLocale(locale)]
	if !ok {
		return EntryReference{}, false
	}
	ref, ok := tbl[normalizeID(legacyID)]
	return ref, ok
}

// Term looks up a taxonomy term mapping by legacy term id.
func (ix *Index) Term(legacyID string) (TermMapping, bool) {
	if ix == nil {
		return TermMapping{}, false
	}
	t, ok := ix.terms[normalizeID(legacyID)]
	return t, ok
}

// Stats returns the number of rows in each table.
func (ix *Index) Stats() Stats {
	s := Stats{Entries: make(map[string]int)}
	if ix == nil {
		return s
	}
	s.Assets = len(ix.assets)
	s.Terms = len(ix.terms)
	for loc, tbl := range ix.entries {
		s.Entries[loc] = len(tbl)
	}
	return s
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func normalizeLocale(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
