package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/aretw0/notetaker/pkg/core"
)

type stagedKey struct {
	collection string
	key        string
}

// Transaction stages writes in an overlay over the committed tables.
// A nil overlay value marks a delete.
type Transaction struct {
	store   *Store
	overlay map[string]map[string]*[]byte
	order   []stagedKey
}

func newTransaction(s *Store) *Transaction {
	return &Transaction{
		store:   s,
		overlay: make(map[string]map[string]*[]byte),
	}
}

// Get prefers the staged version of the record.
func (t *Transaction) Get(ctx context.Context, collection, key string) (core.Record, error) {
	if v, ok := t.overlay[collection][key]; ok {
		if v == nil {
			return core.Record{}, core.NotFound(collection, key)
		}
		return core.Record{Collection: collection, Key: key, Data: slices.Clone(*v)}, nil
	}
	return t.store.get(collection, key)
}

func (t *Transaction) List(ctx context.Context, collection string) ([]core.Record, error) {
	return t.store.list(collection, t.overlay[collection])
}

func (t *Transaction) ScanByIndex(ctx context.Context, collection, index, value string) ([]core.Record, error) {
	return t.store.scan(collection, index, value, t.overlay[collection])
}

// Put stages a record.
func (t *Transaction) Put(ctx context.Context, rec core.Record) error {
	if err := core.CheckRecord(rec.Collection, rec.Key); err != nil {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
	}
	if !json.Valid(rec.Data) {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: fmt.Errorf("record data is not valid JSON")}
	}
	if _, err := core.IndexValues(rec.Collection, rec.Data); err != nil {
		return &core.OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: err}
	}
	data := slices.Clone(rec.Data)
	t.stage(rec.Collection, rec.Key, &data)
	return nil
}

// Delete stages a removal.
func (t *Transaction) Delete(ctx context.Context, collection, key string) error {
	if err := core.CheckRecord(collection, key); err != nil {
		return &core.OpError{Op: "delete", Collection: collection, Key: key, Err: err}
	}
	t.stage(collection, key, nil)
	return nil
}

func (t *Transaction) stage(collection, key string, data *[]byte) {
	m, ok := t.overlay[collection]
	if !ok {
		m = make(map[string]*[]byte)
		t.overlay[collection] = m
	}
	if _, seen := m[key]; !seen {
		t.order = append(t.order, stagedKey{collection: collection, key: key})
	}
	m[key] = data
}

// ops compacts the overlay into one op per key, in first-touch order.
// Deletes of keys that never existed are dropped.
func (t *Transaction) ops() []Op {
	out := make([]Op, 0, len(t.order))
	for _, sk := range t.order {
		v := t.overlay[sk.collection][sk.key]
		prev, exists := t.store.tables[sk.collection].rows[sk.key]
		if v == nil {
			if !exists {
				continue
			}
			out = append(out, Op{Record: core.Record{Collection: sk.collection, Key: sk.key}, Delete: true, Prev: prev})
			continue
		}
		out = append(out, Op{Record: core.Record{Collection: sk.collection, Key: sk.key, Data: *v}, Prev: prev})
	}
	return out
}

var _ core.Tx = (*Transaction)(nil)
