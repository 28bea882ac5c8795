package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/migrate-cli/internal/refindex"
	"github.com/sells-group/migrate-cli/internal/schema"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	return logs
}

func testIndex(t *testing.T) *refindex.Index {
	t.Helper()
	b := refindex.NewBuilder()
	require.NoError(t, b.AddAsset("10", refindex.AssetDescriptor{UID: "blt10", FileName: "a.png", URL: "https://cdn/a.png"}))
	require.NoError(t, b.AddAsset("11", refindex.AssetDescriptor{UID: "blt11", FileName: "b.png", URL: "https://cdn/b.png"}))
	require.NoError(t, b.AddEntry("en-us", "5", refindex.EntryReference{UID: "page_5", ContentTypeUID: "page"}))
	require.NoError(t, b.AddTerm("12", refindex.TermMapping{TaxonomyUID: "tags", TermUID: "news"}))
	require.NoError(t, b.AddTerm("99", refindex.TermMapping{TaxonomyUID: "tags", TermUID: "sports"}))
	return b.Freeze()
}

func testFields() *schema.FieldRegistry {
	return schema.NewFieldRegistry([]schema.FieldConfig{
		{Name: "field_tags", Type: "taxonomy_term_reference"},
		{Name: "field_topics", Type: "entity_reference", Settings: map[string]any{"target_type": "taxonomy_term"}},
		{Name: "field_image", Type: "image"},
		{Name: "field_related", Type: "entity_reference", Settings: map[string]any{"target_type": "node"}},
		{Name: "created", Type: "created"},
		{Name: "field_featured", Type: "boolean"},
		{Name: "field_weight", Type: "integer"},
	})
}

func testSchemas() *schema.Registry {
	return schema.NewRegistry([]schema.ContentType{
		{
			UID:   "article",
			Title: "Article",
			Schema: []schema.Field{
				{UID: "title", DataType: "text", Mandatory: true},
				{UID: "body", DataType: "json", FieldMetadata: map[string]any{"allow_json_rte": true}},
				{UID: "summary", DataType: "text", FieldMetadata: map[string]any{"multiline": true}},
				{UID: "headline", DataType: "text"},
				{UID: "field_image", DataType: "file", Multiple: true},
				{UID: "field_weight", DataType: "number"},
				{UID: "promoted", DataType: "boolean", FieldMetadata: map[string]any{"default_value": false}},
			},
		},
	})
}

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	return NewAssembler(testIndex(t), testFields(), testSchemas(), Options{})
}
