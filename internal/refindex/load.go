package refindex

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Feed file names inside an index directory.
const (
	AssetsFile     = "assets.json"
	ReferencesDir  = "references"
	TaxonomiesFile = "taxonomies.json"
)

// AssetRow is one row of the asset feed.
type AssetRow struct {
	LegacyID string          `json:"legacy_id"`
	Asset    AssetDescriptor `json:"asset"`
}

// EntryRow is one row of the locale-keyed entry reference feed.
type EntryRow struct {
	Locale   string         `json:"locale"`
	LegacyID string         `json:"legacy_id"`
	Ref      EntryReference `json:"ref"`
}

// TermRow is one row of the taxonomy term feed.
type TermRow struct {
	LegacyID string      `json:"legacy_id"`
	Term     TermMapping `json:"term"`
}

// Source provides the three feeds from a persistent store.
type Source interface {
	ListAssets(ctx context.Context) ([]AssetRow, error)
	ListEntryRefs(ctx context.Context) ([]EntryRow, error)
	ListTerms(ctx context.Context) ([]TermRow, error)
}

// Feeds is the in-memory form of the three feed files.
type Feeds struct {
	Assets  []AssetRow
	Entries []EntryRow
	Terms   []TermRow
}

// ReadDir parses the feed files in dir. A missing file yields an empty table;
// malformed JSON is an error.
func ReadDir(dir string) (*Feeds, error) {
	feeds := &Feeds{}

	var assets map[string]AssetDescriptor
	if err := readJSONFile(filepath.Join(dir, AssetsFile), &assets); err != nil {
		return nil, err
	}
	for id, a := range assets {
		feeds.Assets = append(feeds.Assets, AssetRow{LegacyID: id, Asset: a})
	}

	var terms map[string]TermMapping
	if err := readJSONFile(filepath.Join(dir, TaxonomiesFile), &terms); err != nil {
		return nil, err
	}
	for id, t := range terms {
		feeds.Terms = append(feeds.Terms, TermRow{LegacyID: id, Term: t})
	}

	refDir := filepath.Join(dir, ReferencesDir)
	files, err := os.ReadDir(refDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(err, "refindex: read %s", refDir)
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		locale := strings.TrimSuffix(f.Name(), ".json")
		var refs map[string]EntryReference
		if err := readJSONFile(filepath.Join(refDir, f.Name()), &refs); err != nil {
			return nil, err
		}
		for id, ref := range refs {
			feeds.Entries = append(feeds.Entries, EntryRow{Locale: locale, LegacyID: id, Ref: ref})
		}
	}

	return feeds, nil
}

// Build freezes the feeds into an Index.
func (f *Feeds) Build() (*Index, error) {
	b := NewBuilder()
	for _, r := range f.Assets {
		if err := b.AddAsset(r.LegacyID, r.Asset); err != nil {
			return nil, err
		}
	}
	for _, r := range f.Entries {
		if err := b.AddEntry(r.Locale, r.LegacyID, r.Ref); err != nil {
			return nil, err
		}
	}
	for _, r := range f.Terms {
		if err := b.AddTerm(r.LegacyID, r.Term); err != nil {
			return nil, err
		}
	}
	return b.Freeze(), nil
}

// LoadDir reads the feed files in dir and returns the frozen Index.
func LoadDir(dir string) (*Index, error) {
	feeds, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	ix, err := feeds.Build()
	if err != nil {
		return nil, err
	}
	logStats("dir", ix)
	return ix, nil
}

// LoadStore builds the Index from a persistent Source.
func LoadStore(ctx context.Context, src Source) (*Index, error) {
	assets, err := src.ListAssets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refindex: list assets")
	}
	entries, err := src.ListEntryRefs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refindex: list entry refs")
	}
	terms, err := src.ListTerms(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refindex: list terms")
	}
	feeds := &Feeds{Assets: assets, Entries: entries, Terms: terms}
	ix, err := feeds.Build()
	if err != nil {
		return nil, err
	}
	logStats("store", ix)
	return ix, nil
}

func logStats(source string, ix *Index) {
	st := ix.Stats()
	zap.L().Info("refindex: loaded",
		zap.String("source", source),
		zap.Int("assets", st.Assets),
		zap.Int("terms", st.Terms),
		zap.Any("entries", st.Entries),
	)
}

func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "refindex: read %s", path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "refindex: decode %s", path)
	}
	return nil
}
