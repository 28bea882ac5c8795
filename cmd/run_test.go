package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/migrate-cli/internal/fetcher"
	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/output"
	"github.com/sells-group/migrate-cli/internal/store"
)

func setupRun(t *testing.T) (runOptions, string) {
	t.Helper()
	c, dir := testConfig(t)
	cfg = c
	writeFeeds(t, c.Index.Dir)
	return runOptions{
		Input:  writeTestFile(t, filepath.Join(dir, "records.json"), testRecordsJSON),
		Fields: writeTestFile(t, filepath.Join(dir, "fields.yaml"), testFieldsYAML),
		Schema: writeTestFile(t, filepath.Join(dir, "schema.yaml"), testSchemaYAML),
	}, dir
}

func TestRunMigration_EndToEnd(t *testing.T) {
	o, _ := setupRun(t)
	ctx := context.Background()

	st, err := initStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	res, err := runMigration(ctx, cfg, st, o)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.Records)
	assert.Equal(t, 2, res.Stats.Assembled)
	assert.Equal(t, 1, res.Stats.Skipped)
	assert.Equal(t, map[string]int{"en": 1, "en-us": 1}, res.Stats.Locales)

	// en.json carries the explicitly English record.
	en, err := output.ReadGroup(filepath.Join(cfg.Migrate.OutputDir, "article", "en.json"))
	require.NoError(t, err)
	require.Contains(t, en, "article_1")
	e := en["article_1"]
	assert.Equal(t, "Hello", e.Title)
	assert.Equal(t, "en", e.Locale)
	assert.Equal(t, "<p>Body <strong>one</strong></p>", e.Fields["body"])
	assert.NotContains(t, e.Fields, "body_format")
	assert.Equal(t, 7.0, e.Fields["field_weight"])

	img, ok := e.Fields["field_image"].(map[string]any)
	require.True(t, ok, "single asset is an object")
	assert.Equal(t, "blt_asset10", img["uid"])

	ref, ok := e.Fields["field_related"].(map[string]any)
	require.True(t, ok, "reference resolves through the master locale")
	assert.Equal(t, "page_5", ref["uid"])

	require.Len(t, e.Taxonomies, 1)
	assert.Equal(t, "news", e.Taxonomies[0].TermUID)

	// und reconciles to en-us when only en is present.
	enUS, err := output.ReadGroup(filepath.Join(cfg.Migrate.OutputDir, "article", "en-us.json"))
	require.NoError(t, err)
	require.Contains(t, enUS, "article_2")
	assert.Equal(t, "Undetermined", enUS["article_2"].Title)

	// Run, entries and skips are persisted.
	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "article", run.ContentType)
	require.NotNil(t, run.Stats)
	assert.Equal(t, 2, run.Stats.Assembled)

	saved, err := st.ListEntries(ctx, res.RunID, "en")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "article_1", saved[0].UID)

	skips, err := st.ListSkips(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, skips, 1)
	assert.Equal(t, "en", skips[0].Locale)
}

func TestRunMigration_IndexFromStore(t *testing.T) {
	o, _ := setupRun(t)
	ctx := context.Background()

	st, err := initStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	stats, err := importFeeds(ctx, st, cfg.Index.Dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Assets)
	assert.Equal(t, 1, stats.Terms)
	assert.Equal(t, map[string]int{"en-us": 1}, stats.Entries)

	cfg.Index.Source = "store"
	cfg.Index.Dir = ""
	res, err := runMigration(ctx, cfg, st, o)
	require.NoError(t, err)

	e := res.Groups["en"][0]
	img, ok := e.Fields["field_image"]
	require.True(t, ok)
	assert.NotNil(t, img)
	require.Len(t, e.Taxonomies, 1)
}

func TestRunMigration_ContentTypeOverride(t *testing.T) {
	o, _ := setupRun(t)
	o.ContentType = "news_item"
	o.OutputDir = filepath.Join(t.TempDir(), "custom")
	ctx := context.Background()

	st, err := initStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	res, err := runMigration(ctx, cfg, st, o)
	require.NoError(t, err)
	require.Len(t, res.Groups["en"], 1)
	assert.Equal(t, "news_item_1", res.Groups["en"][0].UID)

	_, err = output.ReadGroup(filepath.Join(o.OutputDir, "news_item", "en.json"))
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, store.RunFilter{ContentType: "news_item"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunMigration_MissingInput(t *testing.T) {
	o, dir := setupRun(t)
	o.Input = filepath.Join(dir, "missing.json")
	ctx := context.Background()

	st, err := initStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = runMigration(ctx, cfg, st, o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: open")
}

func TestInferContentType(t *testing.T) {
	batch := fetcher.Batch{
		"fr": {{"type": "page"}},
		"en": {{"nid": 1}, {"type": "article"}},
	}
	assert.Equal(t, "article", inferContentType(batch, "type"))
	assert.Empty(t, inferContentType(fetcher.Batch{"en": {{"nid": 1}}}, "type"))
}
