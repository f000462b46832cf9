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
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/notebook"
	"github.com/aretw0/notetaker/pkg/persist"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

// fakeProcessor answers every task kind with a canned result.
type fakeProcessor struct {
	mu      sync.Mutex
	results map[enrich.TaskKind]enrich.Result
	tasks   []enrich.Task
	gate    chan struct{}
	calls   atomic.Int32
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{results: map[enrich.TaskKind]enrich.Result{
		enrich.TaskFullAnalysis: {
			Kind: enrich.ResultOrganizedNote,
			Organized: &enrich.Organized{
				Project: "Errands",
				Subject: "Shopping",
				Summary: "Shopping list",
				Todos:   []string{"buy milk"},
				Tags:    []string{"shopping"},
			},
		},
	}}
}

func (p *fakeProcessor) set(kind enrich.TaskKind, res enrich.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[kind] = res
}

func (p *fakeProcessor) Process(ctx context.Context, task enrich.Task, _ core.Settings, _ []core.Project) (enrich.Result, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	res, ok := p.results[task.Kind]
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return enrich.Result{}, ctx.Err()
		}
	}
	if !ok {
		return enrich.Result{}, errors.New("no result for " + string(task.Kind))
	}
	return res, nil
}

func (p *fakeProcessor) last() enrich.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks[len(p.tasks)-1]
}

func open(t *testing.T, opts ...notebook.Option) (*notebook.Notebook, core.Store) {
	t.Helper()
	store := memory.New(memory.Options{})
	base := []notebook.Option{
		notebook.WithPersistDelay(10 * time.Millisecond),
		notebook.WithEnrichDelay(10 * time.Millisecond),
	}
	nb, err := notebook.Open(context.Background(), store, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = nb.Close(context.Background())
		_ = store.Close()
	})
	return nb, store
}

func withKey(t *testing.T, nb *notebook.Notebook) {
	t.Helper()
	s := core.DefaultSettings()
	s.APIKey = "sk-test"
	_, err := nb.SaveSettings(context.Background(), s)
	require.NoError(t, err)
}

func TestCreateEditAndSave(t *testing.T) {
	ctx := context.Background()
	nb, store := open(t)

	n, err := nb.Create(ctx, notebook.Draft{})
	require.NoError(t, err)
	assert.Equal(t, notebook.DefaultTitle, n.Title)
	assert.Equal(t, notebook.DefaultSummary, n.Summary)
	assert.NotEmpty(t, n.ProjectID)

	// Create is persisted right away.
	_, err = typed.Notes.Get(ctx, store, n.ID)
	require.NoError(t, err)

	edited, err := nb.SetContent(ctx, n.ID, n.Title, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", edited.Content)
	got, err := nb.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Content, "edits are visible before they are written")

	require.NoError(t, nb.Flush(ctx, n.ID))
	stored, err := typed.Notes.Get(ctx, store, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", stored.Content)

	versions, err := nb.Versions(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "", versions[0].Content)
	assert.Equal(t, notebook.DefaultTitle, versions[0].Title)

	st, err := nb.SaveStatus(n.ID)
	require.NoError(t, err)
	assert.Equal(t, persist.Idle, st)
}

func TestEditsAreCoalesced(t *testing.T) {
	ctx := context.Background()
	nb, store := open(t)

	n, err := nb.Create(ctx, notebook.Draft{Title: "draft"})
	require.NoError(t, err)
	for _, content := range []string{"B", "Bu", "Buy", "Buy milk"} {
		_, err := nb.SetContent(ctx, n.ID, n.Title, content)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		st, _ := nb.SaveStatus(n.ID)
		return st == persist.Idle
	}, time.Second, 5*time.Millisecond)

	stored, err := typed.Notes.Get(ctx, store, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", stored.Content)
	versions, err := nb.Versions(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "one write for a burst of edits")
}

func TestUpdateRejectsUnknownPlacement(t *testing.T) {
	ctx := context.Background()
	nb, _ := open(t)

	n, err := nb.Create(ctx, notebook.Draft{Title: "x"})
	require.NoError(t, err)
	_, err = nb.Update(ctx, n.ID, func(n *core.Note) { n.SubjectID = "nope" })
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))

	_, err = nb.Update(ctx, "missing", func(*core.Note) {})
	assert.True(t, core.IsNotFound(err))
}

func TestAutomaticEnrichment(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcessor()
	nb, store := open(t, notebook.WithProcessor(proc))
	withKey(t, nb)

	n, err := nb.Create(ctx, notebook.Draft{Title: "Groceries", Tags: []string{"home"}})
	require.NoError(t, err)
	_, err = nb.SetContent(ctx, n.ID, n.Title, "Buy milk")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, _ := nb.EnrichmentStatus(n.ID)
		return st == enrich.Merged
	}, 2*time.Second, 5*time.Millisecond)

	got, err := nb.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping list", got.Summary)
	assert.Equal(t, []string{"home", "shopping"}, got.Tags)
	assert.Equal(t, "Buy milk", got.Content)

	project, subject, err := nb.Taxonomy().Lookup(ctx, placementOf(got))
	require.NoError(t, err)
	assert.Equal(t, "Errands", project.Name)
	assert.Equal(t, "Shopping", subject.Name)

	stored, err := typed.Notes.Get(ctx, store, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping list", stored.Summary)
}

func TestEnrichmentKeepsConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcessor()
	gate := make(chan struct{})
	proc.gate = gate
	nb, store := open(t, notebook.WithProcessor(proc))
	withKey(t, nb)

	n, err := nb.Create(ctx, notebook.Draft{Title: "Groceries"})
	require.NoError(t, err)
	_, err = nb.SetContent(ctx, n.ID, n.Title, "Buy milk")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, _ := nb.EnrichmentStatus(n.ID)
		return st == enrich.InFlight
	}, 2*time.Second, 5*time.Millisecond)

	_, err = nb.SetContent(ctx, n.ID, n.Title, "Buy milk and eggs")
	require.NoError(t, err)
	close(gate)

	require.Eventually(t, func() bool {
		got, _ := nb.Get(n.ID)
		st, _ := nb.EnrichmentStatus(n.ID)
		return got.Summary == "Shopping list" && st == enrich.Merged
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, nb.Flush(ctx, n.ID))

	got, err := nb.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk and eggs", got.Content)

	stored, err := typed.Notes.Get(ctx, store, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk and eggs", stored.Content)
	assert.Equal(t, "Shopping list", stored.Summary)
}

func TestEnrichWithoutKey(t *testing.T) {
	ctx := context.Background()
	nb, _ := open(t, notebook.WithProcessor(newFakeProcessor()))

	n, err := nb.Create(ctx, notebook.Draft{Title: "t", Content: "something"})
	require.NoError(t, err)
	_, err = nb.Enrich(ctx, n.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigurationRequired))

	_, err = nb.Ask(ctx, "what?")
	assert.True(t, errors.Is(err, core.ErrConfigurationRequired))
}

func TestManualEnrich(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcessor()
	nb, _ := open(t, notebook.WithProcessor(proc), notebook.WithEnrichDelay(time.Hour))
	withKey(t, nb)

	n, err := nb.Create(ctx, notebook.Draft{Title: "t"})
	require.NoError(t, err)
	_, err = nb.SetContent(ctx, n.ID, "t", "Buy milk")
	require.NoError(t, err)

	got, err := nb.Enrich(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping list", got.Summary)
	assert.Equal(t, "Buy milk", proc.last().Note.Content, "pending edits are written before analysis")
}

func TestDeleteRemovesVersions(t *testing.T) {
	ctx := context.Background()
	nb, store := open(t)

	n, err := nb.Create(ctx, notebook.Draft{Title: "a"})
	require.NoError(t, err)
	_, err = nb.SetContent(ctx, n.ID, "a", "one")
	require.NoError(t, err)
	require.NoError(t, nb.Flush(ctx, n.ID))
	_, err = nb.SetContent(ctx, n.ID, "a", "two")
	require.NoError(t, err)

	require.NoError(t, nb.Delete(ctx, n.ID))

	_, err = nb.Get(n.ID)
	assert.True(t, core.IsNotFound(err))
	_, err = typed.Notes.Get(ctx, store, n.ID)
	assert.True(t, core.IsNotFound(err))
	versions, err := typed.Versions.Scan(ctx, store, core.IndexByNote, n.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	// The pending edit is dropped, not written back.
	time.Sleep(30 * time.Millisecond)
	_, err = typed.Notes.Get(ctx, store, n.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestCreateFromTemplate(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	nb, _ := open(t, notebook.WithClock(func() time.Time { return day }))

	tmpl, err := nb.Create(ctx, notebook.Draft{
		Title:      "Stand-up",
		Content:    "**Date:** {{Today}}",
		Project:    "Templates",
		Subject:    "Scrum",
		Tags:       []string{"scrum"},
		IsTemplate: true,
	})
	require.NoError(t, err)

	n, err := nb.CreateFromTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "New from Stand-up", n.Title)
	assert.Equal(t, "**Date:** 2026-03-14", n.Content)
	assert.False(t, n.IsTemplate)
	assert.Equal(t, []string{"scrum"}, n.Tags)
	assert.Equal(t, tmpl.SubjectID, n.SubjectID)

	_, err = nb.CreateFromTemplate(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	nb, _ := open(t)

	n, err := nb.Create(ctx, notebook.Draft{Title: "v1", Content: "first"})
	require.NoError(t, err)
	_, err = nb.SetContent(ctx, n.ID, "v2", "second")
	require.NoError(t, err)
	require.NoError(t, nb.Flush(ctx, n.ID))

	versions, err := nb.Versions(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	restored, err := nb.Restore(ctx, n.ID, versions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", restored.Title)
	assert.Equal(t, "first", restored.Content)
	require.NoError(t, nb.Flush(ctx, n.ID))

	versions, err = nb.Versions(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "second", versions[0].Content, "the replaced state is kept")

	other, err := nb.Create(ctx, notebook.Draft{Title: "other"})
	require.NoError(t, err)
	_, err = nb.Restore(ctx, other.ID, versions[0].ID)
	assert.Error(t, err)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	nb, _ := open(t)

	a, err := nb.Create(ctx, notebook.Draft{Title: "Alpha", Content: "quarterly report", Project: "Work", Tags: []string{"Q3"}})
	require.NoError(t, err)
	b, err := nb.Create(ctx, notebook.Draft{Title: "Beta", Project: "Home"})
	require.NoError(t, err)
	_, err = nb.Create(ctx, notebook.Draft{Title: "Tmpl", IsTemplate: true})
	require.NoError(t, err)

	_, err = nb.Archive(ctx, b.ID, true)
	require.NoError(t, err)

	active := nb.List(notebook.Filter{})
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	assert.Len(t, nb.List(notebook.Filter{Archived: true}), 1)
	assert.Len(t, nb.Templates(), 1)
	assert.Len(t, nb.List(notebook.Filter{Tag: "q3"}), 1)
	assert.Len(t, nb.List(notebook.Filter{Query: "REPORT"}), 1)
	assert.Empty(t, nb.List(notebook.Filter{ProjectID: b.ProjectID}))
}

func TestSubscribeFilters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nb, _ := open(t)

	notes, err := nb.Subscribe(ctx, "notes/**")
	require.NoError(t, err)
	settings, err := nb.Subscribe(ctx, "settings/*")
	require.NoError(t, err)
	_, err = nb.Subscribe(ctx, "[")
	assert.Error(t, err)

	n, err := nb.Create(ctx, notebook.Draft{Title: "x"})
	require.NoError(t, err)

	select {
	case ev := <-notes:
		assert.Equal(t, notebook.EventCreated, ev.Kind)
		assert.Equal(t, n.ID, ev.Key)
	case <-time.After(time.Second):
		t.Fatalf("no created event")
	}
	select {
	case ev := <-settings:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	_, err = nb.SaveSettings(ctx, core.Settings{Theme: core.ThemeLight})
	require.NoError(t, err)
	select {
	case ev := <-settings:
		assert.Equal(t, notebook.EventSettingsChanged, ev.Kind)
	case <-time.After(time.Second):
		t.Fatalf("no settings event")
	}
}

func TestOnboardSeedsOnce(t *testing.T) {
	ctx := context.Background()
	nb, _ := open(t)

	done, err := nb.Onboarded(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	s, err := nb.Onboard(ctx, core.Settings{AILanguage: "Portuguese"})
	require.NoError(t, err)
	assert.Equal(t, core.SettingsID, s.ID)
	assert.Equal(t, core.ThemeDark, s.Theme)
	assert.Equal(t, core.ProfileMaxQuality, s.PerformanceProfile)
	assert.Equal(t, "Portuguese", s.AILanguage)

	templates := nb.Templates()
	require.Len(t, templates, 4)
	for _, tmpl := range templates {
		assert.Contains(t, tmpl.Tags, "template")
	}
	active := nb.List(notebook.Filter{})
	require.Len(t, active, 1)
	assert.Contains(t, active[0].Tags, "welcome")

	projects, err := nb.Projects(ctx)
	require.NoError(t, err)
	var names []string
	for _, p := range projects {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Getting Started", "Templates"}, names)

	_, err = nb.Onboard(ctx, core.Settings{})
	require.NoError(t, err)
	assert.Len(t, nb.Templates(), 4, "a second onboarding does not seed again")
}

func TestDeleteProjectGuard(t *testing.T) {
	ctx := context.Background()
	nb, _ := open(t)

	n, err := nb.Create(ctx, notebook.Draft{Title: "x", Project: "Work"})
	require.NoError(t, err)
	err = nb.DeleteProject(ctx, n.ProjectID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCategoryInUse))

	require.NoError(t, nb.Delete(ctx, n.ID))
	require.NoError(t, nb.DeleteProject(ctx, n.ProjectID))
}

func placementOf(n core.Note) taxonomy.Placement {
	return taxonomy.Placement{ProjectID: n.ProjectID, SubjectID: n.SubjectID}
}
