package notebook_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

// slowStore holds every transaction for delay once enabled.
type slowStore struct {
	core.Store
	delay   time.Duration
	enabled atomic.Bool
}

func (s *slowStore) Transact(ctx context.Context, fn func(core.Tx) error) error {
	if s.enabled.Load() {
		time.Sleep(s.delay)
	}
	return s.Store.Transact(ctx, fn)
}

func moveTo(ctx context.Context, t *testing.T, nb *notebook.Notebook, id string, p core.Project) {
	t.Helper()
	s, err := nb.AddSubject(ctx, p.ID, taxonomy.DefaultSubject)
	require.NoError(t, err)
	_, err = nb.Update(ctx, id, func(n *core.Note) {
		n.ProjectID = p.ID
		n.SubjectID = s.ID
	})
	require.NoError(t, err)
}

func requireFiled(ctx context.Context, t *testing.T, nb *notebook.Notebook, store core.Store, id string) core.Note {
	t.Helper()
	stored, err := typed.Notes.Get(ctx, store, id)
	require.NoError(t, err)
	_, _, err = nb.Taxonomy().Lookup(ctx, placementOf(stored))
	require.NoError(t, err, "stored note points at a missing category")

	live, err := nb.Get(id)
	require.NoError(t, err)
	assert.Equal(t, placementOf(stored), placementOf(live))
	return stored
}

func TestWriteRefilesDeletedCategory(t *testing.T) {
	ctx := context.Background()
	nb, store := open(t, notebook.WithPersistDelay(time.Hour))

	n, err := nb.Create(ctx, notebook.Draft{Title: "trip notes"})
	require.NoError(t, err)
	trip, err := nb.CreateProject(ctx, "Trip", "")
	require.NoError(t, err)
	moveTo(ctx, t, nb, n.ID, trip)

	// The project vanishes before the pending write lands.
	require.NoError(t, store.Transact(ctx, func(tx core.Tx) error {
		return typed.Projects.Delete(ctx, tx, trip.ID)
	}))
	require.NoError(t, nb.Flush(ctx, n.ID))

	stored := requireFiled(ctx, t, nb, store, n.ID)
	project, subject, err := nb.Taxonomy().Lookup(ctx, placementOf(stored))
	require.NoError(t, err)
	assert.Equal(t, taxonomy.DefaultProject, project.Name)
	assert.Equal(t, taxonomy.DefaultSubject, subject.Name)
	assert.Equal(t, "trip notes", stored.Title)
}

func TestDeleteProjectSeesUnsavedMove(t *testing.T) {
	ctx := context.Background()
	nb, store := open(t, notebook.WithPersistDelay(time.Hour))

	n, err := nb.Create(ctx, notebook.Draft{Title: "x"})
	require.NoError(t, err)
	trip, err := nb.CreateProject(ctx, "Trip", "")
	require.NoError(t, err)
	moveTo(ctx, t, nb, n.ID, trip)

	err = nb.DeleteProject(ctx, trip.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCategoryInUse))

	_, err = nb.Taxonomy().Get(ctx, trip.ID)
	require.NoError(t, err)
	stored := requireFiled(ctx, t, nb, store, n.ID)
	assert.Equal(t, trip.ID, stored.ProjectID)
}

func TestDeleteProjectRacingMove(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{Store: memory.New(memory.Options{}), delay: 80 * time.Millisecond}
	nb, err := notebook.Open(ctx, store, notebook.WithPersistDelay(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = nb.Close(context.Background())
		_ = store.Close()
	})

	n, err := nb.Create(ctx, notebook.Draft{Title: "x"})
	require.NoError(t, err)
	trip, err := nb.CreateProject(ctx, "Trip", "")
	require.NoError(t, err)
	sub, err := nb.AddSubject(ctx, trip.ID, taxonomy.DefaultSubject)
	require.NoError(t, err)
	store.enabled.Store(true)

	var (
		wg        sync.WaitGroup
		deleteErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		deleteErr = nb.DeleteProject(ctx, trip.ID)
	}()

	time.Sleep(20 * time.Millisecond)
	_, err = nb.Update(ctx, n.ID, func(n *core.Note) {
		n.ProjectID = trip.ID
		n.SubjectID = sub.ID
	})
	require.NoError(t, err)
	require.NoError(t, nb.Flush(ctx, n.ID))
	wg.Wait()

	stored := requireFiled(ctx, t, nb, store, n.ID)
	if deleteErr == nil {
		assert.NotEqual(t, trip.ID, stored.ProjectID)
	} else {
		assert.True(t, errors.Is(deleteErr, core.ErrCategoryInUse))
		assert.Equal(t, trip.ID, stored.ProjectID)
	}
}
