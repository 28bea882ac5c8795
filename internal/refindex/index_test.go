package refindex

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestIndex_Lookups(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddAsset("7", AssetDescriptor{UID: "blt7", Title: "Logo", FileName: "logo.png"}))
	require.NoError(t, b.AddEntry("EN-US", "12", EntryReference{UID: "article_12", ContentTypeUID: "article"}))
	require.NoError(t, b.AddTerm("45", TermMapping{TaxonomyUID: "tags", TermUID: "go"}))
	ix := b.Freeze()

	a, ok := ix.Asset(" 7 ")
	require.True(t, ok)
	assert.Equal(t, "blt7", a.UID)

	ref, ok := ix.Entry("en-us", "12")
	require.True(t, ok)
	assert.Equal(t, "article", ref.ContentTypeUID)
	assert.Equal(t, "en-us", ref.Locale)

	term, ok := ix.Term("45")
	require.True(t, ok)
	assert.Equal(t, "go", term.TermUID)
}

func TestIndex_MissesNeverPanic(t *testing.T) {
	ix := Empty()
	_, ok := ix.Asset("1")
	assert.False(t, ok)
	_, ok = ix.Entry("fr", "1")
	assert.False(t, ok)
	_, ok = ix.Term("")
	assert.False(t, ok)

	var nilIndex *Index
	_, ok = nilIndex.Entry("en", "1")
	assert.False(t, ok)
	assert.Equal(t, 0, nilIndex.Stats().Assets)
}

func TestIndex_EntryIsLocaleScoped(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddEntry("en-us", "3", EntryReference{UID: "page_3", ContentTypeUID: "page"}))
	ix := b.Freeze()

	_, ok := ix.Entry("fr-fr", "3")
	assert.False(t, ok)
}

func TestBuilder_FrozenRejectsAdds(t *testing.T) {
	b := NewBuilder()
	b.Freeze()
	assert.ErrorIs(t, b.AddAsset("1", AssetDescriptor{}), ErrFrozen)
	assert.ErrorIs(t, b.AddEntry("en", "1", EntryReference{}), ErrFrozen)
	assert.ErrorIs(t, b.AddTerm("1", TermMapping{}), ErrFrozen)
}

func TestIndex_ConcurrentReads(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddTerm("1", TermMapping{TaxonomyUID: "t", TermUID: "one"}))
	ix := b.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			term, ok := ix.Term("1")
			assert.True(t, ok)
			assert.Equal(t, "one", term.TermUID)
		}()
	}
	wg.Wait()
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AssetsFile),
		[]byte(`{"10": {"uid": "blt10", "title": "Hero", "filename": "hero.jpg"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TaxonomiesFile),
		[]byte(`{"12": {"taxonomy_uid": "tags", "term_uid": "news"}}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ReferencesDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ReferencesDir, "en-us.json"),
		[]byte(`{"5": {"uid": "page_5", "_content_type_uid": "page"}}`), 0o644))

	ix, err := LoadDir(dir)
	require.NoError(t, err)

	a, ok := ix.Asset("10")
	require.True(t, ok)
	assert.Equal(t, "hero.jpg", a.FileName)

	ref, ok := ix.Entry("en-us", "5")
	require.True(t, ok)
	assert.Equal(t, "page_5", ref.UID)

	st := ix.Stats()
	assert.Equal(t, 1, st.Assets)
	assert.Equal(t, 1, st.Terms)
	assert.Equal(t, 1, st.Entries["en-us"])
}

func TestLoadDir_MissingFilesAreEmpty(t *testing.T) {
	ix, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Stats().Assets)
}

func TestLoadDir_MalformedIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AssetsFile), []byte(`{not json`), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refindex: decode")
}

type fakeSource struct {
	assets  []AssetRow
	entries []EntryRow
	terms   []TermRow
	err     error
}

func (f *fakeSource) ListAssets(context.Context) ([]AssetRow, error)    { return f.assets, f.err }
func (f *fakeSource) ListEntryRefs(context.Context) ([]EntryRow, error) { return f.entries, nil }
func (f *fakeSource) ListTerms(context.Context) ([]TermRow, error)      { return f.terms, nil }

func TestLoadStore(t *testing.T) {
	src := &fakeSource{
		assets:  []AssetRow{{LegacyID: "1", Asset: AssetDescriptor{UID: "a1"}}},
		entries: []EntryRow{{Locale: "en", LegacyID: "2", Ref: EntryReference{UID: "e2", ContentTypeUID: "page"}}},
		terms:   []TermRow{{LegacyID: "3", Term: TermMapping{TaxonomyUID: "tags", TermUID: "t3"}}},
	}
	ix, err := LoadStore(context.Background(), src)
	require.NoError(t, err)

	_, ok := ix.Entry("en", "2")
	assert.True(t, ok)
	_, ok = ix.Term("3")
	assert.True(t, ok)
}

func TestLoadStore_Error(t *testing.T) {
	src := &fakeSource{err: assert.AnError}
	_, err := LoadStore(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list assets")
}
