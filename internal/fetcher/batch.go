package fetcher

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/model"
)

// Batch groups source records by raw locale code.
type Batch map[string][]model.SourceRecord

func (b Batch) add(rec model.SourceRecord, localeKey, noLanguage string) {
	code := rec.String(localeKey)
	if code == "" {
		code = noLanguage
	}
	b[code] = append(b[code], rec)
}

// ReadBatch reads a JSON array of source records and groups them by the raw
// locale code stored under localeKey. Records with no locale are grouped
// under noLanguage. Input order is kept within each group.
func ReadBatch(ctx context.Context, r io.Reader, localeKey, noLanguage string) (Batch, error) {
	recs, errs := DecodeJSONArray[model.SourceRecord](ctx, r)

	batch := make(Batch)
	n := 0
	for rec := range recs {
		if rec == nil {
			continue
		}
		batch.add(rec, localeKey, noLanguage)
		n++
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrap(err, "fetcher: read batch")
	}

	zap.L().Debug("batch read", zap.Int("records", n), zap.Int("locales", len(batch)))
	return batch, nil
}

// ReadSource opens src and reads its records grouped by raw locale. Sources
// with an .xlsx extension are read as spreadsheets; anything else is read as
// a JSON array.
func ReadSource(ctx context.Context, src string, opts Options, localeKey, noLanguage string) (Batch, error) {
	rc, err := Open(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	if isXLSX(src) {
		return ReadXLSXBatch(ctx, rc, opts.Sheet, localeKey, noLanguage)
	}
	return ReadBatch(ctx, rc, localeKey, noLanguage)
}

func isXLSX(src string) bool {
	p := src
	if u, err := url.Parse(src); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".xlsx")
}
