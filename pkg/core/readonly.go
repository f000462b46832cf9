package core

import "context"

type readOnlyStore struct {
	Store
}

// ReadOnly wraps a store so that every write fails with ErrReadOnly.
func ReadOnly(s Store) Store {
	return &readOnlyStore{Store: s}
}

func (r *readOnlyStore) Put(ctx context.Context, rec Record) error {
	return &OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: ErrReadOnly}
}

func (r *readOnlyStore) Delete(ctx context.Context, collection, key string) error {
	return &OpError{Op: "delete", Collection: collection, Key: key, Err: ErrReadOnly}
}

func (r *readOnlyStore) BulkPut(ctx context.Context, recs []Record) error {
	return &OpError{Op: "bulk put", Err: ErrReadOnly}
}

func (r *readOnlyStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	return r.Store.Transact(ctx, func(tx Tx) error {
		return fn(readOnlyTx{tx})
	})
}

// Unwrap exposes the underlying store.
func (r *readOnlyStore) Unwrap() Store { return r.Store }

type readOnlyTx struct {
	Tx
}

func (readOnlyTx) Put(ctx context.Context, rec Record) error {
	return &OpError{Op: "put", Collection: rec.Collection, Key: rec.Key, Err: ErrReadOnly}
}

func (readOnlyTx) Delete(ctx context.Context, collection, key string) error {
	return &OpError{Op: "delete", Collection: collection, Key: key, Err: ErrReadOnly}
}
