// Package sqlite implements core.Store on an embedded SQLite database.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/aretw0/introspection"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/aretw0/notetaker/pkg/core"
)

// schema keeps records as JSON documents and materializes the declared
// secondary indices in a side table.
const schema = `
CREATE TABLE IF NOT EXISTS records (
    collection TEXT NOT NULL,
    key TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (collection, key)
);

CREATE TABLE IF NOT EXISTS record_index (
    collection TEXT NOT NULL,
    idx TEXT NOT NULL,
    value TEXT NOT NULL,
    key TEXT NOT NULL,
    PRIMARY KEY (collection, idx, key)
);

CREATE INDEX IF NOT EXISTS idx_record_index_lookup ON record_index(collection, idx, value);
`

// Config holds the configuration for the SQLite store.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path   string
	Logger *slog.Logger
}

// Store is the SQLite-backed store. It uses a single connection, which
// serializes transactions the same way the other adapters do.
type Store struct {
	db      *sql.DB
	path    string
	logger  *slog.Logger
	closed  atomic.Bool
	commits atomic.Int64
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if needed) the database at cfg.Path.
// Initialize must be called before use.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + cfg.Path
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, path: cfg.Path, logger: cfg.Logger}, nil
}

// Initialize applies pragmas and the schema.
func (s *Store) Initialize(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Debug("sqlite store ready", "path", s.path)
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, collection, key string) (core.Record, error) {
	if s.closed.Load() {
		return core.Record{}, core.ErrClosed
	}
	return get(ctx, s.db, collection, key)
}

func (s *Store) List(ctx context.Context, collection string) ([]core.Record, error) {
	if s.closed.Load() {
		return nil, core.ErrClosed
	}
	return list(ctx, s.db, collection)
}

func (s *Store) ScanByIndex(ctx context.Context, collection, index, value string) ([]core.Record, error) {
	if s.closed.Load() {
		return nil, core.ErrClosed
	}
	return scan(ctx, s.db, collection, index, value)
}

func (s *Store) Put(ctx context.Context, rec core.Record) error {
	return s.Transact(ctx, func(tx core.Tx) error {
		return tx.Put(ctx, rec)
	})
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	return s.Transact(ctx, func(tx core.Tx) error {
		return tx.Delete(ctx, collection, key)
	})
}

func (s *Store) BulkPut(ctx context.Context, recs []core.Record) error {
	return s.Transact(ctx, func(tx core.Tx) error {
		for _, rec := range recs {
			if err := tx.Put(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Transact runs fn inside a SQL transaction. fn must only use tx: the
// single connection is held until the transaction ends.
func (s *Store) Transact(ctx context.Context, fn func(tx core.Tx) error) error {
	if s.closed.Load() {
		return core.ErrClosed
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.commits.Add(1)
	return nil
}

// Tx is a core.Tx over a SQL transaction.
type Tx struct {
	q querier
}

func (t *Tx) Get(ctx context.Context, collection, key string) (core.Record, error) {
	return get(ctx, t.q, collection, key)
}

func (t *Tx) List(ctx context.Context, collection string) ([]core.Record, error) {
	return list(ctx, t.q, collection)
}

func (t *Tx) ScanByIndex(ctx context.Context, collection, index, value string) ([]core.Record, error) {
	return scan(ctx, t.q, collection, index, value)
}

func (t *Tx) Put(ctx context.Context, rec core.Record) error {
	if err := core.CheckRecord(rec.Collection, rec.Key); err != nil {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
	}
	if !json.Valid(rec.Data) {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: errors.New("record data is not valid JSON")}
	}
	values, err := core.IndexValues(rec.Collection, rec.Data)
	if err != nil {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
	}

	_, err = t.q.ExecContext(ctx, `
		INSERT INTO records (collection, key, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		rec.Collection, rec.Key, string(rec.Data), time.Now().UnixMilli())
	if err != nil {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
	}

	if _, err := t.q.ExecContext(ctx, `DELETE FROM record_index WHERE collection = ? AND key = ?`, rec.Collection, rec.Key); err != nil {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
	}
	for idx, value := range values {
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO record_index (collection, idx, value, key) VALUES (?, ?, ?, ?)`,
			rec.Collection, idx, value, rec.Key); err != nil {
			return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
		}
	}
	return nil
}

func (t *Tx) Delete(ctx context.Context, collection, key string) error {
	if err := core.CheckRecord(collection, key); err != nil {
		return &core.OpError{Op: "delete", Collection: collection, Key: key, Err: err}
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return &core.OpError{Op: "delete", Collection: collection, Key: key, Err: err}
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM record_index WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return &core.OpError{Op: "delete", Collection: collection, Key: key, Err: err}
	}
	return nil
}

func get(ctx context.Context, q querier, collection, key string) (core.Record, error) {
	if err := core.CheckRecord(collection, key); err != nil {
		return core.Record{}, err
	}
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM records WHERE collection = ? AND key = ?`, collection, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.NotFound(collection, key)
	}
	if err != nil {
		return core.Record{}, &core.OpError{Op: "get", Collection: collection, Key: key, Err: err}
	}
	return core.Record{Collection: collection, Key: key, Data: []byte(data)}, nil
}

func list(ctx context.Context, q querier, collection string) ([]core.Record, error) {
	if _, err := core.Indices(collection); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT key, data FROM records WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, &core.OpError{Op: "list", Collection: collection, Err: err}
	}
	return collect(rows, collection)
}

func scan(ctx context.Context, q querier, collection, index, value string) ([]core.Record, error) {
	value, err := core.IndexValue(collection, index, value)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT r.key, r.data FROM record_index i
		JOIN records r ON r.collection = i.collection AND r.key = i.key
		WHERE i.collection = ? AND i.idx = ? AND i.value = ?
		ORDER BY r.key`, collection, index, value)
	if err != nil {
		return nil, &core.OpError{Op: "scan", Collection: collection, Err: err}
	}
	return collect(rows, collection)
}

func collect(rows *sql.Rows, collection string) ([]core.Record, error) {
	defer rows.Close()
	var out []core.Record
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		out = append(out, core.Record{Collection: collection, Key: key, Data: []byte(data)})
	}
	return out, rows.Err()
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Path    string `json:"path"`
	Commits int64  `json:"commits"`
	Closed  bool   `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	return StoreState{Path: s.path, Commits: s.commits.Load(), Closed: s.closed.Load()}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "sqlite-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ core.Store = (*Store)(nil)
