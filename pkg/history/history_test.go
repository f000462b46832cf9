package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecordIfChanged(t *testing.T) {
	base := core.Note{ID: "n1", Title: "T", Content: "A", Summary: "s"}

	tests := []struct {
		name    string
		mutate  func(n *core.Note)
		changed bool
	}{
		{"content", func(n *core.Note) { n.Content = "A B" }, true},
		{"title", func(n *core.Note) { n.Title = "T2" }, true},
		{"enrichment only", func(n *core.Note) { n.Summary = "other"; n.Tags = []string{"x"} }, false},
		{"archive only", func(n *core.Note) { n.IsArchived = true }, false},
		{"nothing", func(n *core.Note) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := base.Clone()
			tt.mutate(&updated)
			v, changed := RecordIfChanged(base, updated, now)
			assert.Equal(t, tt.changed, changed)
			if changed {
				assert.Equal(t, "A", v.Content, "version holds the pre-write content")
				assert.Equal(t, "T", v.Title)
				assert.Equal(t, "n1", v.NoteID)
				assert.Equal(t, "n1-2026-03-01T12:00:00Z", v.ID)
			}
		})
	}
}

func TestWriteAndList(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.Options{})

	n := core.Note{ID: "n1", Content: ""}
	write := func(n core.Note, at time.Time) bool {
		var changed bool
		err := s.Transact(ctx, func(tx core.Tx) error {
			var err error
			changed, err = Write(ctx, tx, n, at)
			return err
		})
		require.NoError(t, err)
		return changed
	}

	assert.True(t, write(n, now))
	versions, err := List(ctx, s, "n1")
	require.NoError(t, err)
	assert.Empty(t, versions, "first write has no predecessor")

	n.Content = "Buy milk"
	assert.True(t, write(n, now.Add(time.Second)))
	n.Content = "Buy milk and eggs"
	assert.True(t, write(n, now.Add(2*time.Second)))
	n.Tags = []string{"shopping"}
	assert.False(t, write(n, now.Add(3*time.Second)))

	versions, err = List(ctx, s, "n1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Buy milk", versions[0].Content)
	assert.Equal(t, "", versions[1].Content)

	stored, err := typed.Notes.Get(ctx, s, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"shopping"}, stored.Tags)

	err = s.Transact(ctx, func(tx core.Tx) error {
		removed, err := DeleteAll(ctx, tx, "n1")
		assert.Equal(t, 2, removed)
		return err
	})
	require.NoError(t, err)
	versions, err = List(ctx, s, "n1")
	require.NoError(t, err)
	assert.Empty(t, versions)
}
