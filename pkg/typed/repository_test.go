package typed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

func TestCollection(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.Options{})

	p := core.Project{ID: "p1", Name: "Work", Subjects: []core.Subject{{ID: "s1", Name: "General"}}}
	require.NoError(t, typed.Projects.Put(ctx, s, p))

	got, err := typed.Projects.Get(ctx, s, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	list, err := typed.Projects.List(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []core.Project{p}, list)

	byName, err := typed.Projects.Scan(ctx, s, core.IndexByName, "work")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	require.NoError(t, typed.Projects.Delete(ctx, s, "p1"))
	_, err = typed.Projects.Get(ctx, s, "p1")
	assert.True(t, core.IsNotFound(err))
}

func TestDecodeError(t *testing.T) {
	_, err := typed.Notes.Decode(core.Record{Collection: core.CollectionNotes, Key: "x", Data: []byte(`[]`)})
	assert.Error(t, err)
}
