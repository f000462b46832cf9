// Package typed provides type-safe access to store collections.
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/notetaker/pkg/core"
)

// Entity is a value that knows its own record key.
type Entity interface {
	RecordKey() string
}

// Collection converts between typed entities and raw store records.
type Collection[T Entity] struct {
	name string
}

// NewCollection creates a typed view over the named collection.
func NewCollection[T Entity](name string) Collection[T] {
	return Collection[T]{name: name}
}

// Built-in collections.
var (
	Notes    = NewCollection[core.Note](core.CollectionNotes)
	Projects = NewCollection[core.Project](core.CollectionProjects)
	Versions = NewCollection[core.NoteVersion](core.CollectionVersions)
	Settings = NewCollection[core.Settings](core.CollectionSettings)
)

// Name returns the collection name.
func (c Collection[T]) Name() string { return c.name }

// Encode marshals v into a record.
func (c Collection[T]) Encode(v T) (core.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return core.Record{}, fmt.Errorf("failed to marshal %s/%s: %w", c.name, v.RecordKey(), err)
	}
	return core.Record{Collection: c.name, Key: v.RecordKey(), Data: data}, nil
}

// Decode unmarshals a record.
func (c Collection[T]) Decode(rec core.Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal %s/%s: %w", c.name, rec.Key, err)
	}
	return v, nil
}

// Get retrieves an entity by key.
func (c Collection[T]) Get(ctx context.Context, r core.Reader, key string) (T, error) {
	rec, err := r.Get(ctx, c.name, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Decode(rec)
}

// List returns every entity of the collection.
func (c Collection[T]) List(ctx context.Context, r core.Reader) ([]T, error) {
	recs, err := r.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(recs)
}

// Scan returns the entities whose index equals value.
func (c Collection[T]) Scan(ctx context.Context, r core.Reader, index, value string) ([]T, error) {
	recs, err := r.ScanByIndex(ctx, c.name, index, value)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(recs)
}

// Put stores v.
func (c Collection[T]) Put(ctx context.Context, tx core.Tx, v T) error {
	rec, err := c.Encode(v)
	if err != nil {
		return err
	}
	return tx.Put(ctx, rec)
}

// Delete removes the entity with the given key.
func (c Collection[T]) Delete(ctx context.Context, tx core.Tx, key string) error {
	return tx.Delete(ctx, c.name, key)
}

// EncodeAll marshals a batch for BulkPut.
func (c Collection[T]) EncodeAll(vs []T) ([]core.Record, error) {
	recs := make([]core.Record, 0, len(vs))
	for _, v := range vs {
		rec, err := c.Encode(v)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (c Collection[T]) decodeAll(recs []core.Record) ([]T, error) {
	result := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := c.Decode(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
