package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

type fakePgConn struct {
	row      fakeRow
	tag      string
	execErr  error
	lastSQL  string
	lastArgs []any
}

func (f *fakePgConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakePgConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

func (f *fakePgConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestPostgresStoreGetMapsNoRows(t *testing.T) {
	conn := &fakePgConn{row: fakeRow{err: pgx.ErrNoRows}}
	store := &PostgresStore{db: conn, now: time.Now}

	if _, ok, err := store.Get(context.Background(), "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	conn.row = fakeRow{value: "payload"}
	v, ok, err := store.Get(context.Background(), "k")
	if err != nil || !ok || v != "payload" {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}
	if conn.lastSQL != pgGet {
		t.Fatalf("unexpected statement: %s", conn.lastSQL)
	}
}

func TestPostgresStoreDeleteUsesArrayAndCount(t *testing.T) {
	conn := &fakePgConn{tag: "DELETE 2"}
	store := &PostgresStore{db: conn, now: time.Now}

	n, err := store.Delete(context.Background(), "a", "b", "c")
	if err != nil || n != 2 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	keys, ok := conn.lastArgs[0].([]string)
	if !ok || len(keys) != 3 {
		t.Fatalf("expected key slice as first arg, got %#v", conn.lastArgs[0])
	}
}

func TestPostgresStoreReplaceAndErrors(t *testing.T) {
	conn := &fakePgConn{tag: "UPDATE 0"}
	store := &PostgresStore{db: conn, now: time.Now}

	replaced, err := store.Replace(context.Background(), "k", "v", time.Minute)
	if err != nil || replaced {
		t.Fatalf("replace on missing row: replaced=%v err=%v", replaced, err)
	}

	conn.execErr = errors.New("pool closed")
	if err := store.Set(context.Background(), "k", "v", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
