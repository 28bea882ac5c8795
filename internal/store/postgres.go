package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/migrate-cli/internal/db"
	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/refindex"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, content_type, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET stats = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, content_type, status, stats, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_skip":       `INSERT INTO skips (id, run_id, content_type, legacy_id, locale, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	content_type TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entries (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	content_type TEXT NOT NULL,
	locale       TEXT NOT NULL,
	uid          TEXT NOT NULL,
	legacy_id    TEXT NOT NULL,
	body         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, locale, uid)
);

CREATE TABLE IF NOT EXISTS skips (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	content_type TEXT NOT NULL,
	legacy_id    TEXT NOT NULL,
	locale       TEXT NOT NULL,
	reason       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS index_assets (
	legacy_id TEXT PRIMARY KEY,
	asset     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS index_entries (
	locale    TEXT NOT NULL,
	legacy_id TEXT NOT NULL,
	ref       JSONB NOT NULL,
	PRIMARY KEY (locale, legacy_id)
);

CREATE TABLE IF NOT EXISTS index_terms (
	legacy_id TEXT PRIMARY KEY,
	term      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_content_type ON runs(content_type);
CREATE INDEX IF NOT EXISTS idx_skips_run_id ON skips(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, contentType string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, content_type, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, contentType, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{
		ID:          id,
		ContentType: contentType,
		Status:      model.RunStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET stats = $1, status = $2, updated_at = $3 WHERE id = $4`,
		statsJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT id, content_type, status, stats, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, content_type, status, stats, created_at, updated_at FROM runs WHERE true`
	args := []any{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.ContentType != "" {
		args = append(args, filter.ContentType)
		query += fmt.Sprintf(` AND content_type = $%d`, len(args))
	}
	args = append(args, defaultLimit(filter.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var entryColumns = []string{"run_id", "content_type", "locale", "uid", "legacy_id", "body", "created_at"}

// SaveEntries bulk-writes a locale group with COPY.
func (s *PostgresStore) SaveEntries(ctx context.Context, runID, contentType, locale string, entries []model.DestinationEntry) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		body, err := encodeEntry(e)
		if err != nil {
			return err
		}
		rows = append(rows, []any{runID, contentType, locale, e.UID, e.LegacyID, body, now})
	}
	_, err := db.CopyFrom(ctx, s.pool, "entries", entryColumns, rows)
	return eris.Wrapf(err, "postgres: save entries for run %s", runID)
}

func (s *PostgresStore) ListEntries(ctx context.Context, runID, locale string) ([]model.DestinationEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content_type, legacy_id, body FROM entries WHERE run_id = $1 AND locale = $2 ORDER BY uid`,
		runID, locale,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var out []model.DestinationEntry
	for rows.Next() {
		var ct, legacyID string
		var body []byte
		if err := rows.Scan(&ct, &legacyID, &body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		e, err := decodeEntry(body, ct, legacyID)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list entries iterate")
}

func (s *PostgresStore) RecordSkip(ctx context.Context, runID string, skip model.Skip) error {
	created := skip.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO skips (id, run_id, content_type, legacy_id, locale, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), runID, skip.ContentType, skip.LegacyID, skip.Locale, skip.Reason, created,
	)
	return eris.Wrapf(err, "postgres: record skip for run %s", runID)
}

func (s *PostgresStore) ListSkips(ctx context.Context, runID string) ([]model.Skip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content_type, legacy_id, locale, reason, created_at FROM skips WHERE run_id = $1 ORDER BY created_at, legacy_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list skips")
	}
	defer rows.Close()

	var out []model.Skip
	for rows.Next() {
		var sk model.Skip
		if err := rows.Scan(&sk.ContentType, &sk.LegacyID, &sk.Locale, &sk.Reason, &sk.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan skip")
		}
		out = append(out, sk)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list skips iterate")
}

func (s *PostgresStore) PutAssets(ctx context.Context, rows []refindex.AssetRow) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		b, err := json.Marshal(r.Asset)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal asset")
		}
		data = append(data, []any{r.LegacyID, b})
	}
	return s.upsert(ctx, db.UpsertConfig{
		Table: "index_assets", Columns: []string{"legacy_id", "asset"}, ConflictKeys: []string{"legacy_id"},
	}, data)
}

func (s *PostgresStore) PutEntryRefs(ctx context.Context, rows []refindex.EntryRow) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		b, err := json.Marshal(r.Ref)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal entry ref")
		}
		data = append(data, []any{r.Locale, r.LegacyID, b})
	}
	return s.upsert(ctx, db.UpsertConfig{
		Table: "index_entries", Columns: []string{"locale", "legacy_id", "ref"}, ConflictKeys: []string{"locale", "legacy_id"},
	}, data)
}

func (s *PostgresStore) PutTerms(ctx context.Context, rows []refindex.TermRow) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		b, err := json.Marshal(r.Term)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal term")
		}
		data = append(data, []any{r.LegacyID, b})
	}
	return s.upsert(ctx, db.UpsertConfig{
		Table: "index_terms", Columns: []string{"legacy_id", "term"}, ConflictKeys: []string{"legacy_id"},
	}, data)
}

func (s *PostgresStore) upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) error {
	_, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
	return eris.Wrapf(err, "postgres: put %s", cfg.Table)
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]refindex.AssetRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT legacy_id, asset FROM index_assets ORDER BY legacy_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assets")
	}
	defer rows.Close()

	var out []refindex.AssetRow
	for rows.Next() {
		var r refindex.AssetRow
		var raw []byte
		if err := rows.Scan(&r.LegacyID, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan asset")
		}
		if err := json.Unmarshal(raw, &r.Asset); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal asset")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assets iterate")
}

func (s *PostgresStore) ListEntryRefs(ctx context.Context) ([]refindex.EntryRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT locale, legacy_id, ref FROM index_entries ORDER BY locale, legacy_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entry refs")
	}
	defer rows.Close()

	var out []refindex.EntryRow
	for rows.Next() {
		var r refindex.EntryRow
		var raw []byte
		if err := rows.Scan(&r.Locale, &r.LegacyID, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry ref")
		}
		if err := json.Unmarshal(raw, &r.Ref); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entry ref")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list entry refs iterate")
}

func (s *PostgresStore) ListTerms(ctx context.Context) ([]refindex.TermRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT legacy_id, term FROM index_terms ORDER BY legacy_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list terms")
	}
	defer rows.Close()

	var out []refindex.TermRow
	for rows.Next() {
		var r refindex.TermRow
		var raw []byte
		if err := rows.Scan(&r.LegacyID, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan term")
		}
		if err := json.Unmarshal(raw, &r.Term); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal term")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list terms iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var statsJSON []byte
	if err := row.Scan(&r.ID, &r.ContentType, &r.Status, &statsJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(statsJSON) > 0 && string(statsJSON) != "null" {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	return &r, nil
}
