package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexValues(t *testing.T) {
	vals, err := IndexValues(CollectionProjects, []byte(`{"id":"p1","name":"Work"}`))
	require.NoError(t, err)
	assert.Equal(t, "work", vals[IndexByName])

	vals, err = IndexValues(CollectionNotes, []byte(`{"id":"n1","projectId":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", vals[IndexByProject])
	assert.Equal(t, "", vals[IndexBySubject])

	vals, err = IndexValues(CollectionSettings, []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, vals)

	_, err = IndexValues("bogus", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestIndexValue(t *testing.T) {
	v, err := IndexValue(CollectionProjects, IndexByName, "WoRk")
	require.NoError(t, err)
	assert.Equal(t, "work", v)

	_, err = IndexValue(CollectionNotes, IndexByName, "x")
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestOpError(t *testing.T) {
	err := NotFound(CollectionNotes, "abc")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "get notes/abc: record not found", err.Error())

	var op *OpError
	require.True(t, errors.As(err, &op))
	assert.Equal(t, "abc", op.Key)

	custom := &OpError{Msg: "cannot delete a project that contains notes", Err: ErrCategoryInUse}
	assert.ErrorIs(t, custom, ErrCategoryInUse)
	assert.Contains(t, custom.Error(), "cannot delete a project")
}

func TestNoteClone(t *testing.T) {
	n := Note{ID: "1", Tags: []string{"a"}, GraphData: &GraphData{Data: []GraphPoint{{Label: "x", Value: 1}}}}
	c := n.Clone()
	c.Tags[0] = "b"
	c.GraphData.Data[0].Value = 2
	assert.Equal(t, "a", n.Tags[0])
	assert.Equal(t, float64(1), n.GraphData.Data[0].Value)
}
