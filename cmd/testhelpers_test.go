package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/config"
)

func writeTestFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// testConfig returns a config backed by a temp SQLite database, reading the
// index from files under the returned directory.
func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	zap.ReplaceGlobals(zap.NewNop())
	dir := t.TempDir()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "migrate.db")},
		Log:   config.LogConfig{Level: "info", Format: "json"},
		Migrate: config.MigrateConfig{
			Concurrency: 2,
			IDKey:       "nid",
			LocaleKey:   "langcode",
			TypeKey:     "type",
			TitleKey:    "title",
			OutputDir:   filepath.Join(dir, "out"),
		},
		Locale: config.LocaleConfig{
			NoLanguage:      "und",
			English:         "en",
			EnglishRegional: "en-us",
			Master:          "en-us",
		},
		Index: config.IndexConfig{Source: "files", Dir: filepath.Join(dir, "feeds")},
	}, dir
}

// writeFeeds writes a small reference index into dir.
func writeFeeds(t *testing.T, dir string) {
	t.Helper()
	writeTestFile(t, filepath.Join(dir, "assets.json"),
		`{"10": {"uid": "blt_asset10", "title": "Hero", "filename": "hero.jpg"}}`)
	writeTestFile(t, filepath.Join(dir, "taxonomies.json"),
		`{"12": {"taxonomy_uid": "tags", "term_uid": "news"}}`)
	writeTestFile(t, filepath.Join(dir, "references", "en-us.json"),
		`{"5": {"uid": "page_5", "_content_type_uid": "page"}}`)
}

const testFieldsYAML = `
- name: field_image
  type: image
- name: field_tags
  type: taxonomy_term_reference
- name: field_related
  type: entity_reference
  settings:
    target_type: node
- name: field_weight
  type: integer
`

const testSchemaYAML = `
- uid: article
  title: Article
  schema:
    - uid: title
      data_type: text
    - uid: field_image
      data_type: file
    - uid: body
      data_type: text
      field_metadata:
        allow_rich_text: true
`

const testRecordsJSON = `[
  {"nid": 1, "type": "article", "langcode": "en", "title": "Hello",
   "body_value": "<p>Body <strong>one</strong></p>", "body_format": "full_html",
   "field_image_target_id": "10", "field_tags_target_id": "12",
   "field_related_target_id": "5", "field_weight_value": "7"},
  {"nid": 2, "type": "article", "langcode": "und", "title": "Undetermined"},
  {"type": "article", "langcode": "en", "title": "No id"}
]`
