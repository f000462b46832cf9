package taxonomy_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/adapters/storetest"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

func newResolver(t *testing.T) (*taxonomy.Resolver, core.Store) {
	t.Helper()
	store := memory.New(memory.Options{})
	t.Cleanup(func() { _ = store.Close() })
	return taxonomy.New(store), store
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t)

	first, err := r.Resolve(ctx, "Work", "Meetings", "day job")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "  work ", "MEETINGS", "ignored")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	projects, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Work", projects[0].Name)
	assert.Equal(t, "day job", projects[0].Description)
	require.Len(t, projects[0].Subjects, 1)
	assert.Equal(t, "Meetings", projects[0].Subjects[0].Name)
}

func TestResolveDefaults(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t)

	p, err := r.Resolve(ctx, "", " ", "")
	require.NoError(t, err)

	project, subject, err := r.Lookup(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.DefaultProject, project.Name)
	assert.Equal(t, taxonomy.DefaultSubject, subject.Name)
	assert.True(t, r.Valid(ctx, p))
	assert.False(t, r.Valid(ctx, taxonomy.Placement{ProjectID: p.ProjectID, SubjectID: "nope"}))
}

func TestConcurrentResolveCreatesOnce(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t)

	const n = 20
	results := make([]taxonomy.Placement, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Resolve(ctx, "Personal", "General", "")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			results[i] = p
		}()
	}
	wg.Wait()

	for _, p := range results {
		assert.Equal(t, results[0], p)
	}
	projects, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Len(t, projects[0].Subjects, 1)
	assert.Zero(t, r.Stats().ActiveLocks)
}

func TestConcurrentSubjectsAreAllKept(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t)

	const n = 12
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(ctx, "Research", fmt.Sprintf("topic %d", i), ""); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	projects, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Len(t, projects[0].Subjects, n)
}

func TestResolveCanceled(t *testing.T) {
	r, _ := newResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "A", "B", "")
	if err == nil {
		// The shared resolution may already have finished.
		return
	}
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCategoryOperations(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t)

	project, err := r.CreateProject(ctx, " Garden ", "plants")
	require.NoError(t, err)
	assert.Equal(t, "Garden", project.Name)
	require.Len(t, project.Subjects, 1)
	assert.Equal(t, taxonomy.DefaultSubject, project.Subjects[0].Name)

	_, err = r.CreateProject(ctx, "garden", "")
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = r.CreateSubject(ctx, project.ID, "general")
	require.ErrorIs(t, err, core.ErrDuplicateName)
	assert.Contains(t, err.Error(), "already exists in this project")

	existing, err := r.AddSubject(ctx, project.ID, "GENERAL")
	require.NoError(t, err)
	assert.Equal(t, project.Subjects[0].ID, existing.ID)

	seeds, err := r.AddSubject(ctx, project.ID, "Seeds")
	require.NoError(t, err)

	_, err = r.RenameSubject(ctx, seeds.ID, "General")
	assert.ErrorIs(t, err, core.ErrDuplicateName)
	renamed, err := r.RenameSubject(ctx, seeds.ID, "Bulbs")
	require.NoError(t, err)
	assert.Equal(t, "Bulbs", renamed.Name)

	updated, err := r.UpdateProject(ctx, project.ID, "Allotment", "veg")
	require.NoError(t, err)
	assert.Equal(t, "Allotment", updated.Name)

	p, err := r.Resolve(ctx, "allotment", "bulbs", "")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Placement{ProjectID: project.ID, SubjectID: seeds.ID}, p)

	_, err = r.AddSubject(ctx, "missing", "x")
	assert.True(t, core.IsNotFound(err))
}

func TestDeletionGuards(t *testing.T) {
	ctx := context.Background()
	r, store := newResolver(t)

	p, err := r.Resolve(ctx, "Work", "Plans", "")
	require.NoError(t, err)
	spare, err := r.AddSubject(ctx, p.ProjectID, "Spare")
	require.NoError(t, err)

	note := storetest.SampleNote("n1", p.ProjectID, p.SubjectID)
	require.NoError(t, store.Transact(ctx, func(tx core.Tx) error {
		return typed.Notes.Put(ctx, tx, note)
	}))

	err = r.DeleteProject(ctx, p.ProjectID)
	require.ErrorIs(t, err, core.ErrCategoryInUse)
	assert.Contains(t, err.Error(), "cannot delete a project that contains notes")

	err = r.DeleteSubject(ctx, p.SubjectID)
	require.ErrorIs(t, err, core.ErrCategoryInUse)

	require.NoError(t, r.DeleteSubject(ctx, spare.ID))
	project, err := r.Get(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Len(t, project.Subjects, 1)

	require.NoError(t, store.Delete(ctx, core.CollectionNotes, "n1"))
	require.NoError(t, r.DeleteProject(ctx, p.ProjectID))
	_, err = r.Get(ctx, p.ProjectID)
	assert.True(t, core.IsNotFound(err))
}

func TestResolverLogsOnlyWhenConfigured(t *testing.T) {
	ctx := context.Background()
	var global, own bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&global, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r, _ := newResolver(t)
	_, err := r.Resolve(ctx, "Work", "Meetings", "")
	require.NoError(t, err)
	assert.Empty(t, global.String())

	store := memory.New(memory.Options{})
	t.Cleanup(func() { _ = store.Close() })
	logger := slog.New(slog.NewTextHandler(&own, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err = taxonomy.New(store, taxonomy.WithLogger(logger)).Resolve(ctx, "Work", "Meetings", "")
	require.NoError(t, err)
	assert.Contains(t, own.String(), "taxonomy updated")
	assert.Empty(t, global.String())
}
