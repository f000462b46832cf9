package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/adapters/storetest"
	"github.com/aretw0/notetaker/pkg/core"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store {
		return memory.New(memory.Options{})
	})
}

func TestCommitHook(t *testing.T) {
	ctx := context.Background()
	var seen [][]memory.Op
	fail := false
	s := memory.New(memory.Options{OnCommit: func(ctx context.Context, ops []memory.Op) error {
		if fail {
			return errors.New("disk full")
		}
		seen = append(seen, ops)
		return nil
	}})

	err := s.Transact(ctx, func(tx core.Tx) error {
		_ = tx.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "a", Data: []byte(`{"id":"a"}`)})
		_ = tx.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "a", Data: []byte(`{"id":"a","title":"2"}`)})
		_ = tx.Delete(ctx, core.CollectionNotes, "never-existed")
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Len(t, seen[0], 1)
	assert.JSONEq(t, `{"id":"a","title":"2"}`, string(seen[0][0].Record.Data))

	fail = true
	err = s.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "b", Data: []byte(`{"id":"b"}`)})
	require.Error(t, err)
	_, err = s.Get(ctx, core.CollectionNotes, "b")
	assert.True(t, core.IsNotFound(err))
}

func TestClosed(t *testing.T) {
	s := memory.New(memory.Options{})
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), core.CollectionNotes, "a")
	assert.ErrorIs(t, err, core.ErrClosed)
	assert.ErrorIs(t, s.Put(context.Background(), core.Record{}), core.ErrClosed)
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.Options{})
	require.NoError(t, s.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "a", Data: []byte(`{}`)}))

	ro := core.ReadOnly(s)
	_, err := ro.Get(ctx, core.CollectionNotes, "a")
	require.NoError(t, err)
	assert.ErrorIs(t, ro.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "b", Data: []byte(`{}`)}), core.ErrReadOnly)
	assert.ErrorIs(t, ro.Delete(ctx, core.CollectionNotes, "a"), core.ErrReadOnly)
	err = ro.Transact(ctx, func(tx core.Tx) error {
		return tx.Delete(ctx, core.CollectionNotes, "a")
	})
	assert.ErrorIs(t, err, core.ErrReadOnly)
	assert.Equal(t, "memory-store", core.ComponentName(ro, "unknown"))
}
