package fetcher

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/model"
)

// XLSXOptions selects the worksheet of a spreadsheet export.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSXBatch reads a spreadsheet export whose first row holds the field
// keys. Each following row becomes one record; blank cells are left out so
// they read as absent fields. Rows without any value are skipped.
func ReadXLSXBatch(ctx context.Context, r io.Reader, opts XLSXOptions, localeKey, noLanguage string) (Batch, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read")
	}
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	batch := make(Batch)
	var header []string
	n := 0
	for i, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "xlsx: context cancelled")
		}
		cells := rowToStrings(row)
		if i == 0 {
			header = cells
			continue
		}
		rec := rowToRecord(header, cells)
		if len(rec) == 0 {
			continue
		}
		batch.add(rec, localeKey, noLanguage)
		n++
	}
	if header == nil {
		return nil, eris.New("xlsx: sheet has no header row")
	}

	zap.L().Debug("spreadsheet read",
		zap.String("sheet", sheet.Name),
		zap.Int("records", n),
		zap.Int("locales", len(batch)),
	)
	return batch, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func rowToRecord(header, cells []string) model.SourceRecord {
	rec := make(model.SourceRecord, len(cells))
	for j, v := range cells {
		if j >= len(header) {
			break
		}
		key := strings.TrimSpace(header[j])
		if key == "" || strings.TrimSpace(v) == "" {
			continue
		}
		rec[key] = v
	}
	return rec
}
