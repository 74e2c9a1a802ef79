package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		k          TEXT PRIMARY KEY,
		v          TEXT NOT NULL,
		expires_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries (expires_at);
`

const (
	pgGet     = `SELECT v FROM kv_entries WHERE k = $1 AND (expires_at = 0 OR expires_at > $2)`
	pgUpsert  = `INSERT INTO kv_entries (k, v, expires_at) VALUES ($1, $2, $3) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at`
	pgReplace = `UPDATE kv_entries SET v = $1, expires_at = $2 WHERE k = $3 AND (expires_at = 0 OR expires_at > $4)`
	pgDelete  = `DELETE FROM kv_entries WHERE k = ANY($1) AND (expires_at = 0 OR expires_at > $2)`
	pgKeys    = `SELECT k FROM kv_entries WHERE k LIKE $1 ESCAPE '!' AND (expires_at = 0 OR expires_at > $2) ORDER BY k`
	pgPurge   = `DELETE FROM kv_entries WHERE expires_at <> 0 AND expires_at <= $1`
)

// pgxConn is the subset of *pgxpool.Pool the store needs.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db  pgxConn
	now func() time.Time
}

// OpenPostgres parses dsn, opens a pool and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	store, err := NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

// NewPostgresStore creates the schema on pool and returns the store.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("kv: nil postgres pool")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return &PostgresStore{db: pool, now: time.Now}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(ctx, pgGet, key, s.now().UnixMilli()).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, unavailable("postgres get", err)
	}
	return v, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if _, err := s.db.Exec(ctx, pgUpsert, key, value, s.expiry(ttl)); err != nil {
		return unavailable("postgres set", err)
	}
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	tag, err := s.db.Exec(ctx, pgReplace, value, s.expiry(ttl), key, s.now().UnixMilli())
	if err != nil {
		return false, unavailable("postgres replace", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, pgDelete, keys, s.now().UnixMilli())
	if err != nil {
		return 0, unavailable("postgres delete", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Query(ctx, pgKeys, likePattern(prefix), s.now().UnixMilli())
	if err != nil {
		return nil, unavailable("postgres keys", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable("postgres keys", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres keys", err)
	}
	return out, nil
}

// PurgeExpired deletes rows whose expiry has passed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, pgPurge, s.now().UnixMilli())
	if err != nil {
		return 0, unavailable("postgres purge", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return expiryMillis(s.now(), ttl)
}
