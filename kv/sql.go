package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect holds the statements that differ between SQL engines. All engines
// share one table layout: key, opaque value, absolute expiry in unix millis
// (0 means no expiry).
type Dialect struct {
	name    string
	schema  string
	get     string
	upsert  string
	replace string
	del     string
	keys    string
	purge   string
}

// Name returns the database/sql driver name for the dialect.
func (d Dialect) Name() string { return d.name }

var (
	// DialectSQLite targets modernc.org/sqlite (pure Go, no cgo).
	DialectSQLite = Dialect{
		name: "sqlite",
		schema: `
	CREATE TABLE IF NOT EXISTS kv_entries (
		k          TEXT PRIMARY KEY,
		v          TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries (expires_at);
	`,
		get:     "SELECT v FROM kv_entries WHERE k = ? AND (expires_at = 0 OR expires_at > ?)",
		upsert:  "INSERT INTO kv_entries (k, v, expires_at) VALUES (?, ?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at",
		replace: "UPDATE kv_entries SET v = ?, expires_at = ? WHERE k = ? AND (expires_at = 0 OR expires_at > ?)",
		del:     "DELETE FROM kv_entries WHERE (expires_at = 0 OR expires_at > ?) AND k IN ",
		keys:    "SELECT k FROM kv_entries WHERE k LIKE ? ESCAPE '!' AND (expires_at = 0 OR expires_at > ?) ORDER BY k",
		purge:   "DELETE FROM kv_entries WHERE expires_at <> 0 AND expires_at <= ?",
	}

	// DialectMySQL targets github.com/go-sql-driver/mysql. The DSN should carry
	// clientFoundRows=true so Replace sees matched rows, not changed rows;
	// OpenMySQL adds it.
	DialectMySQL = Dialect{
		name: "mysql",
		schema: `
	CREATE TABLE IF NOT EXISTS kv_entries (
		k          VARCHAR(255) NOT NULL PRIMARY KEY,
		v          MEDIUMTEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		INDEX idx_kv_entries_expires (expires_at)
	)`,
		get:     "SELECT v FROM kv_entries WHERE k = ? AND (expires_at = 0 OR expires_at > ?)",
		upsert:  "INSERT INTO kv_entries (k, v, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v), expires_at = VALUES(expires_at)",
		replace: "UPDATE kv_entries SET v = ?, expires_at = ? WHERE k = ? AND (expires_at = 0 OR expires_at > ?)",
		del:     "DELETE FROM kv_entries WHERE (expires_at = 0 OR expires_at > ?) AND k IN ",
		keys:    "SELECT k FROM kv_entries WHERE k LIKE ? ESCAPE '!' AND (expires_at = 0 OR expires_at > ?) ORDER BY k",
		purge:   "DELETE FROM kv_entries WHERE expires_at <> 0 AND expires_at <= ?",
	}
)

// SQLStore implements Store over database/sql. Expiry is evaluated at read
// time; PurgeExpired reclaims dead rows.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore creates the kv_entries table if needed and returns a store
// bound to db. The caller owns db.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("kv: nil database handle")
	}
	if _, err := db.ExecContext(ctx, dialect.schema); err != nil {
		return nil, fmt.Errorf("%s: failed to create schema: %w", dialect.name, err)
	}
	return &SQLStore{db: db, dialect: dialect, now: time.Now}, nil
}

// OpenSQLite opens (or creates) a SQLite database file with WAL enabled.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	// SQLite allows a single writer; one pooled connection avoids SQLITE_BUSY
	// under concurrent deletes.
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(ctx, db, DialectSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenMySQL opens a MySQL database. The DSN format is
// user:password@tcp(host:port)/database.
func OpenMySQL(ctx context.Context, dsn string) (*SQLStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("mysql", dsn+sep+"clientFoundRows=true")
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	store, err := NewSQLStore(ctx, db, DialectMySQL)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.dialect.get, key, s.now().UnixMilli()).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, unavailable(s.dialect.name+" get", err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value, s.expiry(ttl)); err != nil {
		return unavailable(s.dialect.name+" set", err)
	}
	return nil
}

func (s *SQLStore) Replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.dialect.replace, value, s.expiry(ttl), key, now.UnixMilli())
	if err != nil {
		return false, unavailable(s.dialect.name+" replace", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(s.dialect.name+" replace", err)
	}
	return n > 0, nil
}

// Delete removes live rows in one statement; the affected-row count is the
// number of keys that existed.
func (s *SQLStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, s.now().UnixMilli())
	for _, k := range keys {
		args = append(args, k)
	}
	query := s.dialect.del + "(" + placeholders(len(keys)) + ")"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, unavailable(s.dialect.name+" delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(s.dialect.name+" delete", err)
	}
	return n, nil
}

func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.keys, likePattern(prefix), s.now().UnixMilli())
	if err != nil {
		return nil, unavailable(s.dialect.name+" keys", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable(s.dialect.name+" keys", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.dialect.name+" keys", err)
	}
	return out, nil
}

// PurgeExpired deletes rows whose expiry has passed and reports how many.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.purge, s.now().UnixMilli())
	if err != nil {
		return 0, unavailable(s.dialect.name+" purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(s.dialect.name+" purge", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return expiryMillis(s.now(), ttl)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
