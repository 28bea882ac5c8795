package convert

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/refindex"
	"github.com/sells-group/migrate-cli/internal/richtext"
)

// ISOLayout is the instant format written to date fields.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Context correlates a conversion with the record and field it belongs to.
type Context struct {
	ContentType    string
	LegacyID       string
	Field          string
	Locale         string
	FallbackLocale string
}

func (c Context) logger() *zap.Logger {
	return zap.L().With(
		zap.String("content_type", c.ContentType),
		zap.String("legacy_id", c.LegacyID),
		zap.String("field", c.Field),
		zap.String("locale", c.Locale),
	)
}

// Converter converts classified values into destination field values.
// It is stateless apart from the read-only Reference Index.
type Converter struct {
	index *refindex.Index
}

// New creates a Converter that resolves files and references against ix.
func New(ix *refindex.Index) *Converter {
	return &Converter{index: ix}
}

// Convert converts v (tagged tag) into the destination type in spec. The
// second result is false when the field should be omitted. A conversion the
// policy denies returns v unchanged and logs a warning.
func (c *Converter) Convert(ctx Context, v any, tag FieldTypeTag, spec TargetSpec) (any, bool) {
	if isEmpty(v) {
		if spec.Default != nil {
			return spec.Default, true
		}
		return nil, false
	}

	log := ctx.logger()
	if !Allowed(tag, spec.Type) {
		log.Warn("convert: conversion denied",
			zap.String("kind", "conversion_denied"),
			zap.String("from", string(tag)),
			zap.String("to", string(spec.Type)),
		)
		return v, true
	}

	switch spec.Type {
	case TargetSingleLine, TargetMultiLine:
		return v, true
	case TargetHTML:
		return c.toHTML(ctx, log, v, tag)
	case TargetRichDocument:
		doc, ok := c.toDoc(ctx, log, v, tag)
		if !ok {
			return nil, false
		}
		return doc, true
	case TargetMarkdown:
		return c.toMarkdown(ctx, log, v, tag)
	case TargetFile:
		return c.resolveAssets(log, v, spec.Multiple)
	case TargetReference:
		return c.resolveEntries(ctx, log, v, spec.Multiple)
	case TargetNumber:
		return ToNumber(v), true
	case TargetBoolean:
		return ToBoolean(v), true
	case TargetDate:
		iso, ok := ToISODate(v)
		if !ok {
			log.Warn("convert: unparseable date",
				zap.String("kind", "coercion_failed"),
				zap.Any("value", v),
			)
		}
		return iso, ok
	}
	return v, true
}

func (c *Converter) toHTML(ctx Context, log *zap.Logger, v any, tag FieldTypeTag) (any, bool) {
	switch tag {
	case TagSingleLine, TagMultiLine:
		return TextToHTML(v.(string)), true
	case TagHTML:
		return v, true
	}
	doc, ok := c.toDoc(ctx, log, v, tag)
	if !ok {
		return nil, false
	}
	return richtext.ToHTML(doc), true
}

func (c *Converter) toMarkdown(ctx Context, log *zap.Logger, v any, tag FieldTypeTag) (any, bool) {
	var src string
	switch tag {
	case TagSingleLine, TagMultiLine:
		return v, true
	case TagHTML:
		src = v.(string)
	default:
		doc, ok := c.toDoc(ctx, log, v, tag)
		if !ok {
			return nil, false
		}
		src = richtext.ToHTML(doc)
	}
	md, err := richtext.HTMLToMarkdown(src)
	if err != nil {
		log.Warn("convert: markdown conversion failed", zap.String("kind", "coercion_failed"), zap.Error(err))
		return v, true
	}
	return md, true
}

// toDoc produces a destination document from any text-family value.
func (c *Converter) toDoc(ctx Context, log *zap.Logger, v any, tag FieldTypeTag) (*richtext.Node, bool) {
	switch tag {
	case TagSingleLine, TagMultiLine:
		return richtext.FromPlainText(v.(string)), true
	case TagHTML:
		doc, err := richtext.FromHTML(v.(string))
		if err != nil {
			log.Warn("convert: html parse failed", zap.String("kind", "malformed_rich_text"), zap.Error(err))
			return nil, false
		}
		return doc, true
	}

	switch t := v.(type) {
	case *richtext.Node:
		return t, true
	case map[string]any:
		if richtext.IsCanonicalDoc(t) {
			doc, err := richtext.FromMap(t)
			if err != nil {
				log.Error("convert: malformed document", zap.String("kind", "malformed_rich_text"), zap.Error(err))
				return nil, false
			}
			return doc, true
		}
		doc, err := richtext.Build(t, richtext.Resolution{Locale: ctx.Locale, Index: c.index, Log: log})
		if err != nil {
			log.Error("convert: malformed structured text", zap.String("kind", "malformed_rich_text"), zap.Error(err))
			return nil, false
		}
		return doc, true
	}
	return nil, false
}

func (c *Converter) resolveAssets(log *zap.Logger, v any, multiple bool) (any, bool) {
	var out []refindex.AssetDescriptor
	for _, id := range LegacyIDs(v) {
		a, ok := c.index.Asset(id)
		if !ok {
			log.Warn("convert: unresolved asset", zap.String("kind", "unresolved_asset"), zap.String("target_id", id))
			if !multiple {
				return nil, false
			}
			continue
		}
		if !multiple {
			return a, true
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func (c *Converter) resolveEntries(ctx Context, log *zap.Logger, v any, multiple bool) (any, bool) {
	var out []refindex.EntryReference
	for _, id := range LegacyIDs(v) {
		ref, ok := c.lookupEntry(ctx, id)
		if !ok {
			log.Warn("convert: unresolved reference", zap.String("kind", "unresolved_reference"), zap.String("target_id", id))
			if !multiple {
				return nil, false
			}
			continue
		}
		if !multiple {
			return ref, true
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func (c *Converter) lookupEntry(ctx Context, id string) (refindex.EntryReference, bool) {
	if ref, ok := c.index.Entry(ctx.Locale, id); ok {
		return ref, true
	}
	if ctx.FallbackLocale != "" && ctx.FallbackLocale != ctx.Locale {
		return c.index.Entry(ctx.FallbackLocale, id)
	}
	return refindex.EntryReference{}, false
}

// TextToHTML renders plain text as paragraphs, one per blank-line separated
// block, with single newlines as line breaks.
func TextToHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var sb strings.Builder
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		sb.WriteString("</p>")
	}
	return sb.String()
}

// LegacyIDs extracts legacy ids from a comma-joined string, a list, or a
// single number. Blank ids are skipped.
func LegacyIDs(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, LegacyIDs(item)...)
		}
	case nil:
	default:
		raw = []string{scalarString(t)}
	}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ToNumber coerces v to an integer; non-numeric values become 0.
func ToNumber(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return int64(f)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
	}
	return 0
}

// ToBoolean treats "1" and "true" (any case), true, and non-zero numbers as true.
func ToBoolean(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "1" || s == "true"
	case int, int64, float64, json.Number:
		return ToNumber(t) != 0
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToISODate converts epoch seconds or a recognizable date string to an
// ISO-8601 UTC instant.
func ToISODate(v any) (string, bool) {
	switch t := v.(type) {
	case int, int64, float64, json.Number:
		return time.Unix(ToNumber(t), 0).UTC().Format(ISOLayout), true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(n, 0).UTC().Format(ISOLayout), true
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC().Format(ISOLayout), true
			}
		}
	}
	return "", false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
