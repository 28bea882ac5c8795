// Package pipeline assembles legacy source records into destination entries
// and runs whole batches of them concurrently.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/convert"
	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/refindex"
	"github.com/sells-group/migrate-cli/internal/richtext"
	"github.com/sells-group/migrate-cli/internal/schema"
)

// Skip reasons.
const (
	ReasonMissingID          = "missing legacy id"
	ReasonMissingContentType = "missing content type"
)

// Options configures the record keys and uid rule of an Assembler.
type Options struct {
	IDKey     string
	TitleKey  string
	TypeKey   string
	LocaleKey string
	// UIDAffix prefixes uids that would start with a digit. Defaults to
	// the content type uid.
	UIDAffix string
}

// RecordContext carries the batch-level decisions a record is assembled under.
type RecordContext struct {
	ContentType string
	// RawLocale is the record's source locale code.
	RawLocale string
	// Locale is the destination locale chosen by the batch locale plan.
	Locale string
	// FallbackLocale is tried for entry references missing in Locale.
	FallbackLocale string
}

// Outcome is the result of assembling one record: either an entry or a skip.
type Outcome struct {
	Entry *model.DestinationEntry
	Skip  *model.Skip
}

// Assembler turns one source record into one destination entry. It holds only
// read-only state and is safe for concurrent use.
type Assembler struct {
	index     *refindex.Index
	fields    *schema.FieldRegistry
	schemas   *schema.Registry
	converter *convert.Converter
	opts      Options
}

// NewAssembler creates an Assembler. fields and schemas may be nil.
func NewAssembler(ix *refindex.Index, fields *schema.FieldRegistry, schemas *schema.Registry, opts Options) *Assembler {
	if opts.IDKey == "" {
		opts.IDKey = "nid"
	}
	if opts.TitleKey == "" {
		opts.TitleKey = model.KeyTitle
	}
	if opts.TypeKey == "" {
		opts.TypeKey = "type"
	}
	if opts.LocaleKey == "" {
		opts.LocaleKey = "langcode"
	}
	return &Assembler{
		index:     ix,
		fields:    fields,
		schemas:   schemas,
		converter: convert.New(ix),
		opts:      opts,
	}
}

// assembly is the working state of one Assemble call.
type assembly struct {
	rec       model.SourceRecord
	rc        RecordContext
	legacyID  string
	log       *zap.Logger
	claimed   map[string]bool
	resolved  map[string]bool
	canonical map[string]any
	derived   map[string]any
	// derivedRank holds the suffix precedence each derived value came from.
	derivedRank map[string]int
	terms       []refindex.TermMapping
}

func (a *assembly) claim(key string) { a.claimed[key] = true }

// claimCompanions claims base and its companion keys (alt text, sizes,
// revision ids). A companion key that is itself a configured source field is
// left for its own pass.
func (as *Assembler) claimCompanions(a *assembly, base string) {
	if _, ok := a.rec[base]; ok {
		a.claim(base)
	}
	for _, s := range companionSuffixes {
		k := base + s
		if _, ok := a.rec[k]; !ok || as.fields.ByName(k) != nil {
			continue
		}
		a.claim(k)
	}
}

// put stores a value under its destination name. Unsuffixed keys land in the
// canonical set, values stripped from a suffixed key in the derived set. Among
// derived values the suffix precedence of valueSuffixes decides, and a blank
// value never displaces a non-blank one.
func (a *assembly) put(key, name string, v any) {
	if key == name {
		a.canonical[name] = v
		return
	}
	rank := suffixRank(key)
	if cur, dup := a.derivedRank[name]; dup {
		held := a.derived[name]
		switch {
		case blank(v) && !blank(held):
			return
		case !blank(held) && cur <= rank:
			return
		}
	}
	a.derived[name] = v
	a.derivedRank[name] = rank
}

// Assemble converts rec into a destination entry for rc.Locale. A record
// without a legacy id or content type is skipped.
func (as *Assembler) Assemble(rec model.SourceRecord, rc RecordContext) Outcome {
	legacyID := rec.String(as.opts.IDKey)
	if rc.ContentType == "" {
		rc.ContentType = rec.String(as.opts.TypeKey)
	}
	if legacyID == "" || rc.ContentType == "" {
		reason := ReasonMissingID
		if legacyID != "" {
			reason = ReasonMissingContentType
		}
		zap.L().Warn("pipeline: record skipped",
			zap.String("kind", "record_skipped"),
			zap.String("content_type", rc.ContentType),
			zap.String("locale", rc.RawLocale),
			zap.String("reason", reason),
		)
		return Outcome{Skip: &model.Skip{
			ContentType: rc.ContentType,
			LegacyID:    legacyID,
			Locale:      rc.RawLocale,
			Reason:      reason,
		}}
	}

	a := &assembly{
		rec:      rec,
		rc:       rc,
		legacyID: legacyID,
		log: zap.L().With(
			zap.String("component", "assembler"),
			zap.String("content_type", rc.ContentType),
			zap.String("legacy_id", legacyID),
			zap.String("locale", rc.Locale),
		),
		claimed:     map[string]bool{as.opts.IDKey: true, as.opts.TypeKey: true, as.opts.LocaleKey: true},
		resolved:    make(map[string]bool),
		canonical:   make(map[string]any),
		derived:     make(map[string]any),
		derivedRank: make(map[string]int),
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	as.claimRelations(a, keys)
	as.claimScalars(a, keys)
	fields := mergeFields(a)
	as.applySchema(a, fields)

	for k, v := range fields {
		if blank(v) {
			delete(fields, k)
		}
	}

	uidAffix := as.opts.UIDAffix
	if uidAffix == "" {
		uidAffix = rc.ContentType
	}
	entry := &model.DestinationEntry{
		UID:         DestinationUID(uidAffix, legacyID),
		Locale:      rc.Locale,
		ContentType: rc.ContentType,
		LegacyID:    legacyID,
		Fields:      fields,
		Taxonomies:  consolidateTerms(a.terms),
	}
	if t, ok := fields[as.opts.TitleKey]; ok {
		entry.Title = strings.TrimSpace(fmt.Sprint(t))
		delete(fields, as.opts.TitleKey)
	}
	if entry.Title == "" {
		entry.Title = entry.UID
	}
	return Outcome{Entry: entry}
}

// claimRelations resolves asset, entry reference and taxonomy fields. Each
// relation claims its companion keys so alt text, widths and revision ids
// never leak into the entry; other keys sharing the name prefix stay
// unclaimed for the scalar pass.
func (as *Assembler) claimRelations(a *assembly, keys []string) {
	for _, key := range keys {
		if a.claimed[key] {
			continue
		}
		base, suffix, _ := splitSuffix(key)
		if suffix != "" && suffix != SuffixTargetID {
			continue
		}
		switch as.fields.Role(base) {
		case schema.RoleTaxonomy:
			as.claimCompanions(a, base)
			a.claim(key)
			a.resolved[base] = true
			a.terms = append(a.terms, resolveTerms(as.index, a.log, base, a.rec[key])...)
		case schema.RoleAsset:
			as.claimCompanions(a, base)
			a.claim(key)
			as.resolveRelation(a, key, base, convert.TargetFile)
		case schema.RoleReference:
			as.claimCompanions(a, base)
			a.claim(key)
			as.resolveRelation(a, key, base, convert.TargetReference)
		}
	}
}

func (as *Assembler) resolveRelation(a *assembly, key, base string, typ convert.TargetType) {
	v := a.rec[key]
	spec := convert.TargetSpec{Type: typ, Multiple: len(convert.LegacyIDs(v)) > 1}
	if _, isList := v.([]any); isList {
		spec.Multiple = true
	}
	if f, ok := as.schemas.Field(a.rc.ContentType, base); ok {
		spec.Multiple = f.Multiple
	}
	a.resolved[base] = true
	out, ok := as.converter.Convert(as.convertContext(a, base), v, convert.Classify(v), spec)
	if ok {
		a.put(key, base, out)
	}
}

// claimScalars handles every key the relation pass left: suffix stripping,
// link pairs, discarded metadata and role-driven coercion.
func (as *Assembler) claimScalars(a *assembly, keys []string) {
	for _, key := range keys {
		if a.claimed[key] {
			continue
		}
		a.claim(key)
		if isDiscarded(key) {
			continue
		}
		if base, ok := linkBase(key); ok {
			a.put(key, base, linkValue(a.rec, base))
			a.claim(base + SuffixTitle)
			continue
		}
		if base, found := strings.CutSuffix(key, SuffixTitle); found && base != "" {
			if _, paired := a.rec[base+SuffixURI]; paired {
				continue
			}
		}
		name := baseName(key)
		a.put(key, name, as.coerce(a, name, a.rec[key]))
	}
}

func linkValue(rec model.SourceRecord, base string) map[string]any {
	return map[string]any{
		"title": rec.String(base + SuffixTitle),
		"href":  rec.String(base + SuffixURI),
	}
}

// coerce converts values of date, boolean and numeric fields. Values the
// policy refuses or cannot parse keep their source form or are dropped, as
// the converter decides.
func (as *Assembler) coerce(a *assembly, name string, v any) any {
	var typ convert.TargetType
	switch as.fields.Role(name) {
	case schema.RoleDate:
		typ = convert.TargetDate
	case schema.RoleBoolean:
		typ = convert.TargetBoolean
	case schema.RoleNumber, schema.RoleComment:
		typ = convert.TargetNumber
	default:
		return v
	}
	out, ok := as.converter.Convert(as.convertContext(a, name), v, convert.Classify(v), convert.TargetSpec{Type: typ})
	if !ok {
		return nil
	}
	return out
}

// mergeFields combines both value sets. A value under the canonical name
// always wins over one derived from a suffixed key, whatever the key order.
// An empty canonical value does not shadow a derived one.
func mergeFields(a *assembly) map[string]any {
	out := make(map[string]any, len(a.canonical)+len(a.derived))
	for k, v := range a.canonical {
		out[k] = v
	}
	for k, v := range a.derived {
		if cur, ok := out[k]; ok && !blank(cur) {
			continue
		}
		out[k] = v
	}
	return out
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// applySchema converts each field into the destination schema's type. A
// content type with no schema keeps every field in its source form, except
// structured-text trees, which are always rebuilt as destination documents.
func (as *Assembler) applySchema(a *assembly, fields map[string]any) {
	handled := make(map[string]bool)
	if ct, ok := as.schemas.ContentType(a.rc.ContentType); ok {
		for _, f := range ct.Schema {
			if a.resolved[f.UID] {
				continue
			}
			spec, ok := convert.SpecFor(&f)
			if !ok {
				continue
			}
			handled[f.UID] = true
			v, present := fields[f.UID]
			if !present {
				if spec.Default != nil {
					fields[f.UID] = spec.Default
				}
				continue
			}
			tag := convert.Classify(v)
			if natural := convert.NaturalTarget(tag); natural == spec.Type && !needsBuild(v, tag) {
				continue
			}
			as.convertField(a, fields, f.UID, v, tag, spec)
		}
	} else {
		a.log.Debug("pipeline: no destination schema", zap.String("kind", "missing_schema"))
	}

	for name, v := range fields {
		if handled[name] || a.resolved[name] {
			continue
		}
		if tag := convert.Classify(v); needsBuild(v, tag) {
			as.convertField(a, fields, name, v, tag, convert.TargetSpec{Type: convert.TargetRichDocument})
		}
	}
}

// needsBuild reports whether a rich_document value is still in a foreign or
// malformed shape rather than a destination document.
func needsBuild(v any, tag convert.FieldTypeTag) bool {
	return tag == convert.TagRichDocument && !richtext.IsCanonicalDoc(v)
}

func (as *Assembler) convertField(a *assembly, fields map[string]any, name string, v any, tag convert.FieldTypeTag, spec convert.TargetSpec) {
	out, ok := as.converter.Convert(as.convertContext(a, name), v, tag, spec)
	if !ok {
		delete(fields, name)
		return
	}
	fields[name] = out
}

func (as *Assembler) convertContext(a *assembly, field string) convert.Context {
	return convert.Context{
		ContentType:    a.rc.ContentType,
		LegacyID:       a.legacyID,
		Field:          field,
		Locale:         a.rc.Locale,
		FallbackLocale: a.rc.FallbackLocale,
	}
}
