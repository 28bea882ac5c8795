package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/refindex"
	"github.com/sells-group/migrate-cli/internal/richtext"
)

var articleCtx = RecordContext{ContentType: "article", RawLocale: "en", Locale: "en-us", FallbackLocale: "en-us"}

func assemble(t *testing.T, rec model.SourceRecord, rc RecordContext) *model.DestinationEntry {
	t.Helper()
	out := testAssembler(t).Assemble(rec, rc)
	require.Nil(t, out.Skip)
	require.NotNil(t, out.Entry)
	return out.Entry
}

func TestAssemble_TaxonomyResolvesEachIDIndependently(t *testing.T) {
	logs := observeLogs(t)

	e := assemble(t, model.SourceRecord{"nid": "1", "field_tags": "12,45,99"}, articleCtx)

	assert.Equal(t, []refindex.TermMapping{
		{TaxonomyUID: "tags", TermUID: "news"},
		{TaxonomyUID: "tags", TermUID: "sports"},
	}, e.Taxonomies)
	assert.NotContains(t, e.Fields, "field_tags")

	warned := logs.FilterField(zap.String("kind", "unresolved_taxonomy"))
	require.Equal(t, 1, warned.Len())
	assert.Equal(t, "45", warned.All()[0].ContextMap()["target_id"])
}

func TestAssemble_TaxonomiesDeduplicatedAcrossFields(t *testing.T) {
	observeLogs(t)

	e := assemble(t, model.SourceRecord{
		"nid":                    "1",
		"field_tags":             "12",
		"field_topics_target_id": "12,99",
	}, articleCtx)

	assert.Equal(t, []refindex.TermMapping{
		{TaxonomyUID: "tags", TermUID: "news"},
		{TaxonomyUID: "tags", TermUID: "sports"},
	}, e.Taxonomies)
	assert.NotContains(t, e.Fields, "field_topics")
	assert.NotContains(t, e.Fields, "field_topics_target_id")
}

func TestAssemble_CanonicalWinsOverSuffixed(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{
		"nid":         "1",
		"body":        "canonical",
		"body_value":  "suffixed",
		"body_format": "full_html",
	}, rc)

	assert.Equal(t, "canonical", e.Fields["body"])
	assert.NotContains(t, e.Fields, "body_value")
	assert.NotContains(t, e.Fields, "body_format")
}

func TestAssemble_EmptyCanonicalDoesNotShadowSuffixed(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{"nid": "1", "body": "", "body_value": "suffixed"}, rc)

	assert.Equal(t, "suffixed", e.Fields["body"])
}

func TestAssemble_SuffixesStripped(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{
		"nid":                    "1",
		"langcode":               "en",
		"type":                   "page",
		"field_subtitle_value":   "Sub",
		"field_note_status":      "open",
		"field_body_revision_id": "44",
		"field_link_uri":         "https://example.com",
		"field_link_title":       "Example",
	}, rc)

	assert.Equal(t, map[string]any{
		"field_subtitle": "Sub",
		"field_note":     "open",
		"field_link":     map[string]any{"title": "Example", "href": "https://example.com"},
	}, e.Fields)
}

func TestAssemble_AssetsClaimCompanionKeys(t *testing.T) {
	observeLogs(t)

	e := assemble(t, model.SourceRecord{
		"nid":                   "1",
		"field_image_target_id": "10",
		"field_image_alt":       "alt text",
		"field_image_width":     640,
	}, articleCtx)

	assets, ok := e.Fields["field_image"].([]refindex.AssetDescriptor)
	require.True(t, ok, "schema declares field_image as multiple")
	require.Len(t, assets, 1)
	assert.Equal(t, "blt10", assets[0].UID)
	assert.NotContains(t, e.Fields, "field_image_alt")
	assert.NotContains(t, e.Fields, "field_image_width")
}

func TestAssemble_UnresolvedAssetOmitted(t *testing.T) {
	logs := observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{"nid": "1", "field_image_target_id": "404"}, rc)

	assert.NotContains(t, e.Fields, "field_image")
	assert.Equal(t, 1, logs.FilterField(zap.String("kind", "unresolved_asset")).Len())
}

func TestAssemble_ReferenceFallsBackToMasterLocale(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", RawLocale: "fr", Locale: "fr-fr", FallbackLocale: "en-us"}

	e := assemble(t, model.SourceRecord{"nid": "1", "field_related_target_id": "5"}, rc)

	ref, ok := e.Fields["field_related"].(refindex.EntryReference)
	require.True(t, ok)
	assert.Equal(t, "page_5", ref.UID)
	assert.Equal(t, "page", ref.ContentTypeUID)
	assert.Equal(t, "fr-fr", e.Locale)
}

func TestAssemble_RoleCoercions(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{
		"nid":                  "1",
		"created":              "1700000000",
		"field_featured_value": "1",
		"field_weight_value":   "7",
	}, rc)

	assert.Equal(t, "2023-11-14T22:13:20.000Z", e.Fields["created"])
	assert.Equal(t, true, e.Fields["field_featured"])
	assert.Equal(t, int64(7), e.Fields["field_weight"])
}

func TestAssemble_UnparseableDateDropped(t *testing.T) {
	logs := observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{"nid": "1", "created": "last tuesday"}, rc)

	assert.NotContains(t, e.Fields, "created")
	assert.Equal(t, 1, logs.FilterField(zap.String("kind", "coercion_failed")).Len())
}

func TestAssemble_SchemaOverride(t *testing.T) {
	logs := observeLogs(t)

	e := assemble(t, model.SourceRecord{
		"nid":                "1",
		"body_value":         "<p>Hi <strong>there</strong></p>",
		"summary":            "line1\nline2",
		"headline":           "two\nlines",
		"field_weight_value": "7",
	}, articleCtx)

	doc, ok := e.Fields["body"].(*richtext.Node)
	require.True(t, ok)
	assert.Equal(t, richtext.TypeDoc, doc.Type)
	assert.Equal(t, "line1\nline2", e.Fields["summary"])
	assert.Equal(t, int64(7), e.Fields["field_weight"])
	assert.Equal(t, false, e.Fields["promoted"], "schema default fills absent fields")

	// multi-line into single-line is denied: value kept, one warning.
	assert.Equal(t, "two\nlines", e.Fields["headline"])
	denied := logs.FilterField(zap.String("kind", "conversion_denied"))
	require.Equal(t, 1, denied.Len())
	assert.Equal(t, "headline", denied.All()[0].ContextMap()["field"])
}

func TestAssemble_SystemFields(t *testing.T) {
	observeLogs(t)

	e := assemble(t, model.SourceRecord{"nid": 12.0, "title": "Hello", "field_empty": "", "field_nil": nil}, articleCtx)

	assert.Equal(t, "article_12", e.UID)
	assert.Equal(t, "Hello", e.Title)
	assert.Equal(t, "en-us", e.Locale)
	assert.Equal(t, "12", e.LegacyID)
	assert.NotContains(t, e.Fields, "title")
	assert.NotContains(t, e.Fields, "field_empty")
	assert.NotContains(t, e.Fields, "field_nil")
	assert.NotContains(t, e.Fields, "nid")
}

func TestAssemble_TitleFallsBackToUID(t *testing.T) {
	observeLogs(t)

	e := assemble(t, model.SourceRecord{"nid": "about-us"}, articleCtx)

	assert.Equal(t, "about_us", e.UID)
	assert.Equal(t, "about_us", e.Title)
}

func TestAssemble_ContentTypeFromRecord(t *testing.T) {
	observeLogs(t)

	e := assemble(t, model.SourceRecord{"nid": "3", "type": "article"}, RecordContext{Locale: "en-us"})

	assert.Equal(t, "article", e.ContentType)
	assert.Equal(t, "article_3", e.UID)
}

func TestAssemble_Skips(t *testing.T) {
	logs := observeLogs(t)
	as := testAssembler(t)

	out := as.Assemble(model.SourceRecord{"title": "orphan"}, articleCtx)
	require.NotNil(t, out.Skip)
	assert.Nil(t, out.Entry)
	assert.Equal(t, ReasonMissingID, out.Skip.Reason)
	assert.Equal(t, "en", out.Skip.Locale)

	out = as.Assemble(model.SourceRecord{"nid": "7"}, RecordContext{Locale: "en-us"})
	require.NotNil(t, out.Skip)
	assert.Equal(t, ReasonMissingContentType, out.Skip.Reason)
	assert.Equal(t, "7", out.Skip.LegacyID)

	assert.Equal(t, 2, logs.FilterField(zap.String("kind", "record_skipped")).Len())
}

func TestAssemble_DoesNotMutateRecord(t *testing.T) {
	observeLogs(t)
	rec := model.SourceRecord{"nid": "1", "body_value": "x", "field_tags": "12"}
	before := rec.Clone()

	assemble(t, rec, articleCtx)

	assert.Equal(t, before, rec)
}

func foreignBody(targetID string) map[string]any {
	return map[string]any{
		"nodeType": "document",
		"content": []any{
			map[string]any{"nodeType": "paragraph", "content": []any{
				map[string]any{"nodeType": "text", "value": "intro"},
			}},
			map[string]any{"nodeType": "embedded-entry-block", "data": map[string]any{
				"target": map[string]any{"sys": map[string]any{"id": targetID}},
			}},
		},
	}
}

func TestAssemble_ForeignTreeBuiltIntoSchemaField(t *testing.T) {
	logs := observeLogs(t)

	e := assemble(t, model.SourceRecord{"nid": "1", "body_value": foreignBody("777")}, articleCtx)

	doc, ok := e.Fields["body"].(*richtext.Node)
	require.True(t, ok, "foreign tree must be rebuilt, got %T", e.Fields["body"])
	assert.Equal(t, richtext.TypeDoc, doc.Type)
	require.Len(t, doc.Children, 3)
	assert.Equal(t, richtext.TypeParagraph, doc.Children[0].Type)
	assert.Equal(t, "intro", richtext.PlainText(doc.Children[1]))

	placeholder := doc.Children[2]
	assert.Equal(t, richtext.TypeReference, placeholder.Type)
	assert.Empty(t, placeholder.Attrs)

	unresolved := logs.FilterField(zap.String("kind", "unresolved_reference"))
	require.Equal(t, 1, unresolved.Len())
	assert.Equal(t, "777", unresolved.All()[0].ContextMap()["target_id"])
}

func TestAssemble_ForeignTreeBuiltWithoutSchema(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	e := assemble(t, model.SourceRecord{"nid": "1", "body": foreignBody("5")}, rc)

	doc, ok := e.Fields["body"].(*richtext.Node)
	require.True(t, ok, "got %T", e.Fields["body"])
	require.Len(t, doc.Children, 3)
	assert.Equal(t, "page_5", doc.Children[2].Attrs["entry-uid"])
}

func TestAssemble_MalformedTreeOmitted(t *testing.T) {
	logs := observeLogs(t)

	e := assemble(t, model.SourceRecord{
		"nid":        "1",
		"body_value": map[string]any{"content": []any{map[string]any{"nodeType": "paragraph"}}},
	}, articleCtx)

	assert.NotContains(t, e.Fields, "body")
	assert.Equal(t, 1, logs.FilterField(zap.String("kind", "malformed_rich_text")).Len())
}

func TestAssemble_RelationsLeaveSiblingFields(t *testing.T) {
	observeLogs(t)

	e := assemble(t, model.SourceRecord{
		"nid":                      "1",
		"field_tags":               "12",
		"field_tags_note_value":    "editor note",
		"field_image_target_id":    "10",
		"field_image_alt":          "alt text",
		"field_image_credit_value": "Photo: AP",
	}, articleCtx)

	assert.Equal(t, "editor note", e.Fields["field_tags_note"])
	assert.Equal(t, "Photo: AP", e.Fields["field_image_credit"])
	assert.Contains(t, e.Fields, "field_image")
	assert.NotContains(t, e.Fields, "field_image_alt")
	assert.Equal(t, []refindex.TermMapping{{TaxonomyUID: "tags", TermUID: "news"}}, e.Taxonomies)
}

func TestAssemble_ValueSuffixPrecedence(t *testing.T) {
	observeLogs(t)
	rc := RecordContext{ContentType: "page", Locale: "en-us"}

	tests := []struct {
		name string
		rec  model.SourceRecord
		want any
	}{
		{"value beats status", model.SourceRecord{"nid": "1", "field_note_status": "open", "field_note_value": "text"}, "text"},
		{"blank value keeps status", model.SourceRecord{"nid": "1", "field_note_status": "open", "field_note_value": ""}, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := assemble(t, tt.rec, rc)
			assert.Equal(t, tt.want, e.Fields["field_note"])
		})
	}
}
