package core

import "context"

// Record is the unit the store persists: a JSON-encoded entity under a key.
type Record struct {
	Collection string
	Key        string
	Data       []byte
}

// Reader is the read half of the store contract.
type Reader interface {
	// Get returns the record or an error matching ErrNotFound.
	Get(ctx context.Context, collection, key string) (Record, error)

	// List returns every record of a collection ordered by key.
	List(ctx context.Context, collection string) ([]Record, error)

	// ScanByIndex returns the records whose declared index equals value.
	ScanByIndex(ctx context.Context, collection, index, value string) ([]Record, error)
}

// Tx is a unit of work. Reads observe the writes staged in the same Tx.
type Tx interface {
	Reader

	// Put creates or replaces a record.
	Put(ctx context.Context, rec Record) error

	// Delete removes a record. Deleting a missing key is a no-op.
	Delete(ctx context.Context, collection, key string) error
}

// Store is a transactional key-value store over the collections in Schema.
// Every single call is atomic; Transact groups calls across collections.
type Store interface {
	Tx

	// BulkPut writes all records or none of them.
	BulkPut(ctx context.Context, recs []Record) error

	// Transact runs fn and commits its writes iff fn returns nil.
	// Any failure leaves the store unchanged.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Initialize ensures the underlying storage is ready (directories, schema, recovery).
	Initialize(ctx context.Context) error

	Close() error
}

// Watchable is implemented by stores that can report changes made by other processes.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

type contextKey string

// ChangeReasonKey is the context key for passing change reasons (commit messages) to versioned stores.
const ChangeReasonKey contextKey = "change_reason"

// ChangeReason extracts the change reason from ctx, or returns fallback.
func ChangeReason(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(ChangeReasonKey).(string); ok && v != "" {
		return v
	}
	return fallback
}
