// Package memory provides an in-memory implementation of core.Store.
// It is also the indexing engine the filesystem adapter keeps in front of disk.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notetaker/pkg/core"
)

// Op is a single committed mutation.
type Op struct {
	Record core.Record // Data is nil for deletes
	Delete bool
	Prev   []byte // committed data before the op, nil if the key was absent
}

// CommitFunc is called with the compacted ops of a transaction before they
// become visible. Returning an error aborts the transaction.
type CommitFunc func(ctx context.Context, ops []Op) error

// Options configures a Store.
type Options struct {
	// OnCommit makes the store write-through, e.g. to disk.
	OnCommit CommitFunc
}

type table struct {
	rows    map[string][]byte
	indices map[string]map[string]map[string]struct{} // index -> value -> keys
}

// Store is a map-backed store. Transactions are serialized by a single
// write lock, so they are trivially isolated.
type Store struct {
	mu       sync.RWMutex
	tables   map[string]*table
	onCommit CommitFunc
	closed   bool
	commits  int
}

// New creates an empty store with every collection of the schema.
func New(opts Options) *Store {
	s := &Store{
		tables:   make(map[string]*table),
		onCommit: opts.OnCommit,
	}
	for _, name := range core.Collections() {
		t := &table{
			rows:    make(map[string][]byte),
			indices: make(map[string]map[string]map[string]struct{}),
		}
		indices, _ := core.Indices(name)
		for _, ix := range indices {
			t.indices[ix.Name] = make(map[string]map[string]struct{})
		}
		s.tables[name] = t
	}
	return s
}

// Initialize is a no-op for Store.
func (s *Store) Initialize(ctx context.Context) error {
	return nil
}

// Close marks the store as closed. Later calls fail with core.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, collection, key string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.Record{}, core.ErrClosed
	}
	return s.get(collection, key)
}

// List returns all records of a collection ordered by key.
func (s *Store) List(ctx context.Context, collection string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrClosed
	}
	return s.list(collection, nil)
}

// ScanByIndex returns the records whose index equals value.
func (s *Store) ScanByIndex(ctx context.Context, collection, index, value string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrClosed
	}
	return s.scan(collection, index, value, nil)
}

// Put stores a single record.
func (s *Store) Put(ctx context.Context, rec core.Record) error {
	return s.Transact(ctx, func(tx core.Tx) error {
		return tx.Put(ctx, rec)
	})
}

// Delete removes a single record.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	return s.Transact(ctx, func(tx core.Tx) error {
		return tx.Delete(ctx, collection, key)
	})
}

// BulkPut writes all records atomically.
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

// Transact runs fn holding the write lock. fn must only use tx; calling
// methods of the Store itself from inside fn deadlocks.
func (s *Store) Transact(ctx context.Context, fn func(tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}

	tx := newTransaction(s)
	if err := fn(tx); err != nil {
		return err
	}
	ops := tx.ops()
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.onCommit != nil {
		if err := s.onCommit(ctx, ops); err != nil {
			return err
		}
	}
	s.apply(ops)
	s.commits++
	return nil
}

// Load applies ops without running the commit hook. It is used to hydrate
// the store from an external source.
func (s *Store) Load(ops []Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		if err := core.CheckRecord(op.Record.Collection, op.Record.Key); err != nil {
			return err
		}
	}
	s.apply(ops)
	return nil
}

// Len returns the number of records across all collections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tables {
		n += len(t.rows)
	}
	return n
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Records map[string]int `json:"records"`
	Commits int            `json:"commits"`
	Closed  bool           `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.tables))
	for name, t := range s.tables {
		counts[name] = len(t.rows)
	}
	return StoreState{Records: counts, Commits: s.commits, Closed: s.closed}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ core.Store = (*Store)(nil)

func (s *Store) table(collection string) (*table, error) {
	t, ok := s.tables[collection]
	if !ok {
		return nil, core.CheckRecord(collection, "-")
	}
	return t, nil
}

func (s *Store) get(collection, key string) (core.Record, error) {
	if err := core.CheckRecord(collection, key); err != nil {
		return core.Record{}, err
	}
	t, _ := s.table(collection)
	data, ok := t.rows[key]
	if !ok {
		return core.Record{}, core.NotFound(collection, key)
	}
	return core.Record{Collection: collection, Key: key, Data: slices.Clone(data)}, nil
}

// list merges the committed rows with a transaction overlay (may be nil).
func (s *Store) list(collection string, overlay map[string]*[]byte) ([]core.Record, error) {
	t, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(t.rows)+len(overlay))
	for k := range t.rows {
		if _, staged := overlay[k]; !staged {
			keys = append(keys, k)
		}
	}
	for k, v := range overlay {
		if v != nil {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	out := make([]core.Record, 0, len(keys))
	for _, k := range keys {
		data := t.rows[k]
		if v, ok := overlay[k]; ok {
			data = *v
		}
		out = append(out, core.Record{Collection: collection, Key: k, Data: slices.Clone(data)})
	}
	return out, nil
}

func (s *Store) scan(collection, index, value string, overlay map[string]*[]byte) ([]core.Record, error) {
	t, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	value, err = core.IndexValue(collection, index, value)
	if err != nil {
		return nil, err
	}

	var keys []string
	for k := range t.indices[index][value] {
		if _, staged := overlay[k]; !staged {
			keys = append(keys, k)
		}
	}
	for k, v := range overlay {
		if v == nil {
			continue
		}
		vals, err := core.IndexValues(collection, *v)
		if err != nil {
			return nil, err
		}
		if vals[index] == value {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	out := make([]core.Record, 0, len(keys))
	for _, k := range keys {
		data := t.rows[k]
		if v, ok := overlay[k]; ok {
			data = *v
		}
		out = append(out, core.Record{Collection: collection, Key: k, Data: slices.Clone(data)})
	}
	return out, nil
}

func (s *Store) apply(ops []Op) {
	for _, op := range ops {
		t := s.tables[op.Record.Collection]
		key := op.Record.Key
		if old, ok := t.rows[key]; ok {
			s.unindex(t, op.Record.Collection, key, old)
		}
		if op.Delete {
			delete(t.rows, key)
			continue
		}
		t.rows[key] = slices.Clone(op.Record.Data)
		s.index(t, op.Record.Collection, key, op.Record.Data)
	}
}

func (s *Store) index(t *table, collection, key string, data []byte) {
	vals, err := core.IndexValues(collection, data)
	if err != nil {
		return
	}
	for name, v := range vals {
		bucket, ok := t.indices[name][v]
		if !ok {
			bucket = make(map[string]struct{})
			t.indices[name][v] = bucket
		}
		bucket[key] = struct{}{}
	}
}

func (s *Store) unindex(t *table, collection, key string, data []byte) {
	vals, err := core.IndexValues(collection, data)
	if err != nil {
		return
	}
	for name, v := range vals {
		if bucket, ok := t.indices[name][v]; ok {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(t.indices[name], v)
			}
		}
	}
}
