// Package output writes assembled entries as per-locale documents.
package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/model"
)

// WriteGroups writes one <dir>/<contentType>/<locale>.json document per
// destination locale. Each document is an object keyed by entry uid. Returns
// the written paths in locale order.
func WriteGroups(dir, contentType string, groups map[string][]model.DestinationEntry) ([]string, error) {
	ctDir := filepath.Join(dir, contentType)
	if err := os.MkdirAll(ctDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create %s", ctDir)
	}

	locales := make([]string, 0, len(groups))
	for loc := range groups {
		locales = append(locales, loc)
	}
	sort.Strings(locales)

	paths := make([]string, 0, len(locales))
	for _, loc := range locales {
		body, err := encodeGroup(groups[loc])
		if err != nil {
			return paths, eris.Wrapf(err, "output: encode locale %s", loc)
		}
		path := filepath.Join(ctDir, loc+".json")
		if err := writeFileAtomic(path, body); err != nil {
			return paths, err
		}
		zap.L().Info("wrote locale document",
			zap.String("content_type", contentType),
			zap.String("locale", loc),
			zap.Int("entries", len(groups[loc])),
			zap.String("path", path),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadGroup reads a document written by WriteGroups back into entries.
func ReadGroup(path string) (map[string]model.DestinationEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: read %s", path)
	}
	var out map[string]model.DestinationEntry
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, eris.Wrapf(err, "output: decode %s", path)
	}
	return out, nil
}

func encodeGroup(entries []model.DestinationEntry) ([]byte, error) {
	doc := make(map[string]model.DestinationEntry, len(entries))
	for _, e := range entries {
		doc[e.UID] = e
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return eris.Wrapf(err, "output: create temp for %s", path)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return eris.Wrapf(err, "output: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrapf(err, "output: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrapf(err, "output: rename %s", path)
	}
	return nil
}
