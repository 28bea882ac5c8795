package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/refindex"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entries (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	content_type TEXT NOT NULL,
	locale       TEXT NOT NULL,
	uid          TEXT NOT NULL,
	legacy_id    TEXT NOT NULL,
	body         TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, locale, uid)
);

CREATE TABLE IF NOT EXISTS skips (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	content_type TEXT NOT NULL,
	legacy_id    TEXT NOT NULL,
	locale       TEXT NOT NULL,
	reason       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS index_assets (
	legacy_id TEXT PRIMARY KEY,
	asset     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_entries (
	locale    TEXT NOT NULL,
	legacy_id TEXT NOT NULL,
	ref       TEXT NOT NULL,
	PRIMARY KEY (locale, legacy_id)
);

CREATE TABLE IF NOT EXISTS index_terms (
	legacy_id TEXT PRIMARY KEY,
	term      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_content_type ON runs(content_type);
CREATE INDEX IF NOT EXISTS idx_skips_run_id ON skips(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, contentType string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, content_type, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, contentType, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{
		ID:          id,
		ContentType: contentType,
		Status:      model.RunStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stats = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(statsJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content_type, status, stats, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, content_type, status, stats, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ContentType != "" {
		query += ` AND content_type = ?`
		args = append(args, filter.ContentType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveEntries writes a locale group in one transaction.
func (s *SQLiteStore) SaveEntries(ctx context.Context, runID, contentType, locale string, entries []model.DestinationEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save entries")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO entries (run_id, content_type, locale, uid, legacy_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert entry")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, e := range entries {
		body, err := encodeEntry(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, contentType, locale, e.UID, e.LegacyID, string(body), now); err != nil {
			return eris.Wrapf(err, "sqlite: insert entry %s", e.UID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit entries")
}

func (s *SQLiteStore) ListEntries(ctx context.Context, runID, locale string) ([]model.DestinationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_type, legacy_id, body FROM entries WHERE run_id = ? AND locale = ? ORDER BY uid`,
		runID, locale,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DestinationEntry
	for rows.Next() {
		var ct, legacyID, body string
		if err := rows.Scan(&ct, &legacyID, &body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		e, err := decodeEntry([]byte(body), ct, legacyID)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list entries iterate")
}

func (s *SQLiteStore) RecordSkip(ctx context.Context, runID string, skip model.Skip) error {
	created := skip.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skips (id, run_id, content_type, legacy_id, locale, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, skip.ContentType, skip.LegacyID, skip.Locale, skip.Reason, created,
	)
	return eris.Wrapf(err, "sqlite: record skip for run %s", runID)
}

func (s *SQLiteStore) ListSkips(ctx context.Context, runID string) ([]model.Skip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_type, legacy_id, locale, reason, created_at FROM skips WHERE run_id = ? ORDER BY created_at, legacy_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list skips")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Skip
	for rows.Next() {
		var sk model.Skip
		if err := rows.Scan(&sk.ContentType, &sk.LegacyID, &sk.Locale, &sk.Reason, &sk.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan skip")
		}
		out = append(out, sk)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list skips iterate")
}

func (s *SQLiteStore) PutAssets(ctx context.Context, rows []refindex.AssetRow) error {
	return s.putJSON(ctx, `INSERT OR REPLACE INTO index_assets (legacy_id, asset) VALUES (?, ?)`, len(rows),
		func(i int) ([]any, any) { return []any{rows[i].LegacyID}, rows[i].Asset })
}

func (s *SQLiteStore) PutEntryRefs(ctx context.Context, rows []refindex.EntryRow) error {
	return s.putJSON(ctx, `INSERT OR REPLACE INTO index_entries (locale, legacy_id, ref) VALUES (?, ?, ?)`, len(rows),
		func(i int) ([]any, any) { return []any{rows[i].Locale, rows[i].LegacyID}, rows[i].Ref })
}

func (s *SQLiteStore) PutTerms(ctx context.Context, rows []refindex.TermRow) error {
	return s.putJSON(ctx, `INSERT OR REPLACE INTO index_terms (legacy_id, term) VALUES (?, ?)`, len(rows),
		func(i int) ([]any, any) { return []any{rows[i].LegacyID}, rows[i].Term })
}

// putJSON writes n rows in one transaction. row returns the key columns and
// the value stored as JSON in the last column.
func (s *SQLiteStore) putJSON(ctx context.Context, query string, n int, row func(int) ([]any, any)) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin put")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare put")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range n {
		keys, v := row(i)
		b, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal index row")
		}
		if _, err := stmt.ExecContext(ctx, append(keys, string(b))...); err != nil {
			return eris.Wrap(err, "sqlite: put index row")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit put")
}

func (s *SQLiteStore) ListAssets(ctx context.Context) ([]refindex.AssetRow, error) {
	var out []refindex.AssetRow
	err := s.listJSON(ctx, `SELECT legacy_id, asset FROM index_assets ORDER BY legacy_id`, 1,
		func(keys []string, raw []byte) error {
			r := refindex.AssetRow{LegacyID: keys[0]}
			if err := json.Unmarshal(raw, &r.Asset); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	return out, eris.Wrap(err, "sqlite: list assets")
}

func (s *SQLiteStore) ListEntryRefs(ctx context.Context) ([]refindex.EntryRow, error) {
	var out []refindex.EntryRow
	err := s.listJSON(ctx, `SELECT locale, legacy_id, ref FROM index_entries ORDER BY locale, legacy_id`, 2,
		func(keys []string, raw []byte) error {
			r := refindex.EntryRow{Locale: keys[0], LegacyID: keys[1]}
			if err := json.Unmarshal(raw, &r.Ref); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	return out, eris.Wrap(err, "sqlite: list entry refs")
}

func (s *SQLiteStore) ListTerms(ctx context.Context) ([]refindex.TermRow, error) {
	var out []refindex.TermRow
	err := s.listJSON(ctx, `SELECT legacy_id, term FROM index_terms ORDER BY legacy_id`, 1,
		func(keys []string, raw []byte) error {
			r := refindex.TermRow{LegacyID: keys[0]}
			if err := json.Unmarshal(raw, &r.Term); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	return out, eris.Wrap(err, "sqlite: list terms")
}

func (s *SQLiteStore) listJSON(ctx context.Context, query string, nkeys int, fn func(keys []string, raw []byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck

	keys := make([]string, nkeys)
	for rows.Next() {
		var raw string
		dest := make([]any, 0, nkeys+1)
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		if err := rows.Scan(append(dest, &raw)...); err != nil {
			return err
		}
		if err := fn(keys, []byte(raw)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON sql.NullString

	err := row.Scan(&r.ID, &r.ContentType, &r.Status, &statsJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if statsJSON.Valid && statsJSON.String != "" && statsJSON.String != "null" {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	return &r, nil
}
