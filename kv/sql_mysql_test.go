package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMySQLMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(DialectMySQL.schema).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewSQLStore(context.Background(), db, DialectMySQL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := time.Unix(1700000000, 0)
	store.now = func() time.Time { return now }
	return store, mock, now
}

func TestMySQLStoreStatements(t *testing.T) {
	store, mock, now := newMySQLMockStore(t)
	ctx := context.Background()
	nowMs := now.UnixMilli()

	mock.ExpectExec(DialectMySQL.upsert).
		WithArgs("k", "v", now.Add(time.Minute).UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	mock.ExpectQuery(DialectMySQL.get).
		WithArgs("k", nowMs).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("v"))
	v, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}

	mock.ExpectQuery(DialectMySQL.get).
		WithArgs("gone", nowMs).
		WillReturnRows(sqlmock.NewRows([]string{"v"}))
	if _, ok, err := store.Get(ctx, "gone"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	mock.ExpectExec(DialectMySQL.replace).
		WithArgs("v2", now.Add(time.Minute).UnixMilli(), "k", nowMs).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if replaced, err := store.Replace(ctx, "k", "v2", time.Minute); err != nil || !replaced {
		t.Fatalf("replace: replaced=%v err=%v", replaced, err)
	}

	mock.ExpectExec(DialectMySQL.del+"(?,?)").
		WithArgs(nowMs, "k", "gone").
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := store.Delete(ctx, "k", "gone")
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}

	mock.ExpectQuery(DialectMySQL.keys).
		WithArgs("user!_1:%", nowMs).
		WillReturnRows(sqlmock.NewRows([]string{"k"}).AddRow("user_1:a").AddRow("user_1:b"))
	keys, err := store.Keys(ctx, "user_1:")
	if err != nil || len(keys) != 2 {
		t.Fatalf("keys: %v err=%v", keys, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLStoreErrorsWrapUnavailable(t *testing.T) {
	store, mock, _ := newMySQLMockStore(t)

	mock.ExpectExec(DialectMySQL.upsert).WillReturnError(errors.New("connection refused"))
	err := store.Set(context.Background(), "k", "v", time.Minute)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	mock.ExpectQuery(DialectMySQL.get).WillReturnError(errors.New("broken pipe"))
	if _, _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from get, got %v", err)
	}
}
