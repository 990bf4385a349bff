package vcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SetupSchema initializes the cache table in the provided database.
// It should be called once before constructing a SQLStore, and it is
// idempotent, so calling it on an already-initialized database is
// safe.
func SetupSchema(db *sql.DB) error {
	const schemaEntries = `
CREATE TABLE IF NOT EXISTS view_cache (
    key TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    view_type TEXT NOT NULL,
    headers TEXT NOT NULL,
    body BLOB NOT NULL,
    saved_at INTEGER NOT NULL,
    ttl_ns INTEGER NOT NULL
);
`
	const schemaVersionIdx = `
CREATE INDEX IF NOT EXISTS view_cache_version ON view_cache (version);
`

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() is called first and the
	// rollback does nothing. If it fails, this cleans up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaEntries); err != nil {
		return fmt.Errorf("could not create cache schema: %w", err)
	}

	if _, err = tx.Exec(schemaVersionIdx); err != nil {
		return fmt.Errorf("could not create cache index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// SQLStore keeps cache entries in a single SQLite table. It holds
// prepared statements for every operation, so construct it once and
// share it; all methods are safe for concurrent use.
type SQLStore struct {
	db           *sql.DB
	stmtGet      *sql.Stmt
	stmtSave     *sql.Stmt
	stmtDelete   *sql.Stmt
	stmtClearVer *sql.Stmt
	stmtClearAll *sql.Stmt
}

// NewSQLStore creates and returns a new SQLStore over db, which must
// already carry the schema from SetupSchema. It pre-compiles all
// statements, returning an error if any preparation fails.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	stmtGet, err := db.Prepare(`SELECT view_type, headers, body, saved_at, ttl_ns FROM view_cache WHERE key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtSave, err := db.Prepare(`INSERT INTO view_cache (key, version, view_type, headers, body, saved_at, ttl_ns)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    version = excluded.version,
    view_type = excluded.view_type,
    headers = excluded.headers,
    body = excluded.body,
    saved_at = excluded.saved_at,
    ttl_ns = excluded.ttl_ns;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM view_cache WHERE key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtClearVer, err := db.Prepare(`DELETE FROM view_cache WHERE version = ?;`)
	if err != nil {
		return nil, err
	}

	stmtClearAll, err := db.Prepare(`DELETE FROM view_cache;`)
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		db:           db,
		stmtGet:      stmtGet,
		stmtSave:     stmtSave,
		stmtDelete:   stmtDelete,
		stmtClearVer: stmtClearVer,
		stmtClearAll: stmtClearAll,
	}, nil
}

// Close releases all prepared statements held by the store. The
// database connection itself stays open; it belongs to the caller.
func (s *SQLStore) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtSave.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtClearVer.Close()
	_ = s.stmtClearAll.Close()
}

// Get returns the entry stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		viewType string
		headers  string
		body     []byte
		savedAt  int64
		ttl      int64
	)
	err := s.stmtGet.QueryRowContext(ctx, key).Scan(&viewType, &headers, &body, &savedAt, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEntry
	}
	if err != nil {
		return nil, fmt.Errorf("query cache entry: %w", err)
	}

	hdrs := map[string]string{}
	if headers != "" {
		if err = json.Unmarshal([]byte(headers), &hdrs); err != nil {
			return nil, fmt.Errorf("decode cache headers: %w", err)
		}
	}
	return &Entry{
		Body:     body,
		Headers:  hdrs,
		ViewType: viewType,
		SavedAt:  time.Unix(0, savedAt),
		TTL:      time.Duration(ttl),
	}, nil
}

// Expired reports whether key needs re-rendering.
func (s *SQLStore) Expired(ctx context.Context, key, viewType string) (bool, error) {
	return expired(ctx, s, key, viewType)
}

// Save stores the entry under key, replacing any previous row.
func (s *SQLStore) Save(ctx context.Context, key string, e *Entry) error {
	savedAt := e.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return fmt.Errorf("encode cache headers: %w", err)
	}
	_, err = s.stmtSave.ExecContext(ctx, key, keyVersion(key), e.ViewType, string(headers), e.Body, savedAt.UnixNano(), int64(e.TTL))
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry under key, reporting whether one existed.
func (s *SQLStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.stmtDelete.ExecContext(ctx, key)
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	return n > 0, nil
}

// Clear removes every entry of the given key generation, or the whole
// table when version is empty. It returns the number of rows removed.
func (s *SQLStore) Clear(ctx context.Context, version string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if version == "" {
		res, err = s.stmtClearAll.ExecContext(ctx)
	} else {
		res, err = s.stmtClearVer.ExecContext(ctx, version)
	}
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return int(n), nil
}
