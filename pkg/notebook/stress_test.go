package notebook_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/notebook"
	"github.com/aretw0/notetaker/pkg/typed"
)

// TestConcurrentEditors hammers a few notes from several goroutines while
// others resolve the same project names. Every note must end up stored with
// its last in-memory content and every name must map to one project.
func TestConcurrentEditors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	ctx := context.Background()
	nb, store := open(t, notebook.WithPersistDelay(2*time.Millisecond))

	ids := make([]string, 4)
	for i := range ids {
		n, err := nb.Create(ctx, notebook.Draft{Title: fmt.Sprintf("note %d", i)})
		require.NoError(t, err)
		ids[i] = n.ID
	}

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w)))
			for i := range 50 {
				id := ids[r.Intn(len(ids))]
				_, err := nb.SetContent(ctx, id, fmt.Sprintf("note %s", id), fmt.Sprintf("writer %d edit %d", w, i))
				assert.NoError(t, err)
				time.Sleep(time.Duration(r.Intn(3)) * time.Millisecond)
			}
		}()
	}
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 10 {
				_, err := nb.Taxonomy().Resolve(ctx, fmt.Sprintf("Project %d", i%3), "Inbox", "")
				assert.NoError(t, err, "resolver %d", w)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, nb.FlushAll(ctx))

	for _, id := range ids {
		mem, err := nb.Get(id)
		require.NoError(t, err)
		stored, err := typed.Notes.Get(ctx, store, id)
		require.NoError(t, err)
		assert.Equal(t, mem.Content, stored.Content, "note %s", id)
	}

	projects, err := nb.Projects(ctx)
	require.NoError(t, err)
	seen := map[string]int{}
	for _, p := range projects {
		seen[p.Name]++
		assert.Len(t, p.Subjects, 1, "project %s", p.Name)
	}
	for name, count := range seen {
		assert.Equal(t, 1, count, "project %q duplicated", name)
	}
}
