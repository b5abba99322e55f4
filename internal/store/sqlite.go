package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Expiry columns hold unix seconds so comparisons do not depend on the
// driver's time text format.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	strategy   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resolver_cache (
	resolver     TEXT NOT NULL,
	identifier   TEXT NOT NULL,
	found        INTEGER NOT NULL,
	canonical_id TEXT NOT NULL DEFAULT '',
	score        REAL NOT NULL DEFAULT 0,
	cached_at    INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL,
	PRIMARY KEY (resolver, identifier)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);
CREATE INDEX IF NOT EXISTS idx_resolver_cache_expires_at ON resolver_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, strategy string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, strategy, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Strategy:  strategy,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status RunStatus, result *RunResult) error {
	resultJSON, err := marshalResult(result)
	if err != nil {
		return eris.Wrap(err, "sqlite")
	}
	var resultArg any
	if resultJSON != nil {
		resultArg = string(resultJSON)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		resultArg, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, strategy, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, strategy, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, filter.Strategy)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedResolution(ctx context.Context, resolver, identifier string) (*CachedResolution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT resolver, identifier, found, canonical_id, score, cached_at, expires_at FROM resolver_cache
		 WHERE resolver = ? AND identifier = ? AND expires_at > ?`,
		resolver, identifier, time.Now().Unix(),
	)

	var (
		c                   CachedResolution
		found               int
		cachedAt, expiresAt int64
	)
	err := row.Scan(&c.Resolver, &c.Identifier, &found, &c.CanonicalID, &c.Score, &cachedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached resolution")
	}
	c.Found = found != 0
	c.CachedAt = time.Unix(cachedAt, 0).UTC()
	c.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &c, nil
}

func (s *SQLiteStore) SetCachedResolution(ctx context.Context, entry CachedResolution, ttl time.Duration) error {
	now := time.Now().UTC()
	found := 0
	if entry.Found {
		found = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolver_cache (resolver, identifier, found, canonical_id, score, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (resolver, identifier) DO UPDATE SET
			found = excluded.found,
			canonical_id = excluded.canonical_id,
			score = excluded.score,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		entry.Resolver, entry.Identifier, found, entry.CanonicalID, entry.Score, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached resolution")
}

func (s *SQLiteStore) DeleteExpiredResolutions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM resolver_cache WHERE expires_at <= ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired resolutions")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Strategy, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if resultJSON.Valid {
		r.Result, err = unmarshalResult([]byte(resultJSON.String))
		if err != nil {
			return nil, eris.Wrap(err, "sqlite")
		}
	}
	return &r, nil
}
