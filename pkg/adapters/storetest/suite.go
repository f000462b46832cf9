// Package storetest is a conformance suite shared by every core.Store adapter.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Factory opens a fresh, initialized store for one test.
type Factory func(t *testing.T) core.Store

// Run executes the suite against the stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.Store)
	}{
		{"GetMissing", testGetMissing},
		{"PutGet", testPutGet},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"ScanByIndex", testScanByIndex},
		{"IndexFollowsUpdates", testIndexFollowsUpdates},
		{"CaseInsensitiveName", testCaseInsensitiveName},
		{"ListOrdered", testListOrdered},
		{"BulkPut", testBulkPut},
		{"TransactRollback", testTransactRollback},
		{"TransactReadYourWrites", testTransactReadYourWrites},
		{"VersionAndNoteTogether", testVersionAndNoteTogether},
		{"RejectsInvalid", testRejectsInvalid},
		{"SerializedReadModifyWrite", testSerializedReadModifyWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)

// SampleNote returns a note with every field populated.
func SampleNote(id, projectID, subjectID string) core.Note {
	return core.Note{
		ID:              id,
		Title:           "Title " + id,
		Content:         "line one\n\n---\nline two with: colon",
		CreatedAt:       t0,
		UpdatedAt:       t0.Add(time.Minute),
		ProjectID:       projectID,
		SubjectID:       subjectID,
		Summary:         "short",
		DetailedSummary: "long",
		Todos:           []string{"call Ana"},
		KeyPeople:       []string{"Ana"},
		Tags:            []string{"work", "q3"},
		Decisions:       []string{"ship"},
		GraphData: &core.GraphData{
			Type:   core.GraphBar,
			Data:   []core.GraphPoint{{Label: "a", Value: 1.5}, {Label: "b", Value: 2}},
			Config: core.GraphConfig{Title: "chart"},
		},
		Attachments: []core.Attachment{{ID: "a1", MimeType: "image/png", Data: "data:image/png;base64,AAAA"}},
	}
}

func testGetMissing(t *testing.T, s core.Store) {
	ctx := context.Background()
	_, err := s.Get(ctx, core.CollectionNotes, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func testPutGet(t *testing.T, s core.Store) {
	ctx := context.Background()
	n := SampleNote("n1", "p1", "s1")
	require.NoError(t, typed.Notes.Put(ctx, s, n))

	got, err := typed.Notes.Get(ctx, s, "n1")
	require.NoError(t, err)
	assert.Equal(t, n.Content, got.Content)
	assert.Equal(t, n.Title, got.Title)
	assert.True(t, n.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, n.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, n.Tags, got.Tags)
	assert.Equal(t, n.GraphData, got.GraphData)
	assert.Equal(t, n.Attachments, got.Attachments)

	settings := core.DefaultSettings()
	settings.APIKey = "k"
	require.NoError(t, typed.Settings.Put(ctx, s, settings))
	gotSettings, err := typed.Settings.Get(ctx, s, core.SettingsID)
	require.NoError(t, err)
	assert.Equal(t, settings, gotSettings)
}

func testDeleteIdempotent(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, core.CollectionNotes, "ghost"))

	require.NoError(t, typed.Notes.Put(ctx, s, SampleNote("n1", "p1", "s1")))
	require.NoError(t, s.Delete(ctx, core.CollectionNotes, "n1"))
	require.NoError(t, s.Delete(ctx, core.CollectionNotes, "n1"))
	_, err := s.Get(ctx, core.CollectionNotes, "n1")
	assert.True(t, core.IsNotFound(err))
}

func testScanByIndex(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, typed.Notes.Put(ctx, s, SampleNote("a", "p1", "s1")))
	require.NoError(t, typed.Notes.Put(ctx, s, SampleNote("b", "p1", "s2")))
	require.NoError(t, typed.Notes.Put(ctx, s, SampleNote("c", "p2", "s3")))

	inP1, err := typed.Notes.Scan(ctx, s, core.IndexByProject, "p1")
	require.NoError(t, err)
	require.Len(t, inP1, 2)
	assert.Equal(t, "a", inP1[0].ID)
	assert.Equal(t, "b", inP1[1].ID)

	inS3, err := typed.Notes.Scan(ctx, s, core.IndexBySubject, "s3")
	require.NoError(t, err)
	require.Len(t, inS3, 1)

	none, err := typed.Notes.Scan(ctx, s, core.IndexByProject, "p9")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.ScanByIndex(ctx, core.CollectionNotes, "by_color", "red")
	assert.ErrorIs(t, err, core.ErrUnknownIndex)
}

func testIndexFollowsUpdates(t *testing.T, s core.Store) {
	ctx := context.Background()
	n := SampleNote("a", "p1", "s1")
	require.NoError(t, typed.Notes.Put(ctx, s, n))
	n.ProjectID = "p2"
	require.NoError(t, typed.Notes.Put(ctx, s, n))

	inP1, err := typed.Notes.Scan(ctx, s, core.IndexByProject, "p1")
	require.NoError(t, err)
	assert.Empty(t, inP1)
	inP2, err := typed.Notes.Scan(ctx, s, core.IndexByProject, "p2")
	require.NoError(t, err)
	assert.Len(t, inP2, 1)

	require.NoError(t, s.Delete(ctx, core.CollectionNotes, "a"))
	inP2, err = typed.Notes.Scan(ctx, s, core.IndexByProject, "p2")
	require.NoError(t, err)
	assert.Empty(t, inP2)
}

func testCaseInsensitiveName(t *testing.T, s core.Store) {
	ctx := context.Background()
	p := core.Project{ID: "p1", Name: "Work", Subjects: []core.Subject{{ID: "s1", Name: "Planning"}}}
	require.NoError(t, typed.Projects.Put(ctx, s, p))

	found, err := typed.Projects.Scan(ctx, s, core.IndexByName, "wORK")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, p, found[0])
}

func testListOrdered(t *testing.T, s core.Store) {
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, typed.Versions.Put(ctx, s, core.NoteVersion{ID: id, NoteID: "n", SavedAt: t0}))
	}
	recs, err := s.List(ctx, core.CollectionVersions)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{recs[0].Key, recs[1].Key, recs[2].Key})
}

func testBulkPut(t *testing.T, s core.Store) {
	ctx := context.Background()
	recs, err := typed.Projects.EncodeAll([]core.Project{
		{ID: "p1", Name: "One", Subjects: []core.Subject{}},
		{ID: "p2", Name: "Two", Subjects: []core.Subject{}},
	})
	require.NoError(t, err)
	require.NoError(t, s.BulkPut(ctx, recs))

	all, err := typed.Projects.List(ctx, s)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bad := append(recs, core.Record{Collection: core.CollectionProjects, Key: ""})
	assert.Error(t, s.BulkPut(ctx, bad))
}

func testTransactRollback(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, typed.Notes.Put(ctx, s, SampleNote("keep", "p1", "s1")))

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx core.Tx) error {
		if err := typed.Notes.Put(ctx, tx, SampleNote("new", "p1", "s1")); err != nil {
			return err
		}
		if err := tx.Delete(ctx, core.CollectionNotes, "keep"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, core.CollectionNotes, "new")
	assert.True(t, core.IsNotFound(err))
	_, err = s.Get(ctx, core.CollectionNotes, "keep")
	assert.NoError(t, err)
}

func testTransactReadYourWrites(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, typed.Notes.Put(ctx, s, SampleNote("gone", "p1", "s1")))

	err := s.Transact(ctx, func(tx core.Tx) error {
		if err := typed.Notes.Put(ctx, tx, SampleNote("a", "p1", "s1")); err != nil {
			return err
		}
		if err := tx.Delete(ctx, core.CollectionNotes, "gone"); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, core.CollectionNotes, "a"); err != nil {
			return fmt.Errorf("staged put not visible: %w", err)
		}
		if _, err := tx.Get(ctx, core.CollectionNotes, "gone"); !core.IsNotFound(err) {
			return fmt.Errorf("staged delete not visible: %v", err)
		}
		inP1, err := typed.Notes.Scan(ctx, tx, core.IndexByProject, "p1")
		if err != nil {
			return err
		}
		if len(inP1) != 1 || inP1[0].ID != "a" {
			return fmt.Errorf("staged scan returned %d notes", len(inP1))
		}
		all, err := tx.List(ctx, core.CollectionNotes)
		if err != nil {
			return err
		}
		if len(all) != 1 {
			return fmt.Errorf("staged list returned %d notes", len(all))
		}
		return nil
	})
	require.NoError(t, err)
}

func testVersionAndNoteTogether(t *testing.T, s core.Store) {
	ctx := context.Background()
	n := SampleNote("n1", "p1", "s1")
	err := s.Transact(ctx, func(tx core.Tx) error {
		v := core.NoteVersion{ID: "n1-1", NoteID: "n1", Title: "old", Content: "old", SavedAt: t0}
		if err := typed.Versions.Put(ctx, tx, v); err != nil {
			return err
		}
		return typed.Notes.Put(ctx, tx, n)
	})
	require.NoError(t, err)

	versions, err := typed.Versions.Scan(ctx, s, core.IndexByNote, "n1")
	require.NoError(t, err)
	require.Len(t, versions, 1)

	err = s.Transact(ctx, func(tx core.Tx) error {
		vs, err := typed.Versions.Scan(ctx, tx, core.IndexByNote, "n1")
		if err != nil {
			return err
		}
		for _, v := range vs {
			if err := tx.Delete(ctx, core.CollectionVersions, v.ID); err != nil {
				return err
			}
		}
		return tx.Delete(ctx, core.CollectionNotes, "n1")
	})
	require.NoError(t, err)

	versions, err = typed.Versions.Scan(ctx, s, core.IndexByNote, "n1")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func testRejectsInvalid(t *testing.T, s core.Store) {
	ctx := context.Background()
	err := s.Put(ctx, core.Record{Collection: "bogus", Key: "x", Data: []byte(`{}`)})
	assert.ErrorIs(t, err, core.ErrUnknownCollection)

	err = s.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "", Data: []byte(`{}`)})
	assert.ErrorIs(t, err, core.ErrEmptyKey)

	err = s.Put(ctx, core.Record{Collection: core.CollectionNotes, Key: "x", Data: []byte(`{not json`)})
	assert.Error(t, err)
}

func testSerializedReadModifyWrite(t *testing.T, s core.Store) {
	ctx := context.Background()
	require.NoError(t, typed.Projects.Put(ctx, s, core.Project{ID: "p", Name: "P", Subjects: []core.Subject{}}))

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Transact(ctx, func(tx core.Tx) error {
				p, err := typed.Projects.Get(ctx, tx, "p")
				if err != nil {
					return err
				}
				p.Subjects = append(p.Subjects, core.Subject{ID: fmt.Sprint(i), Name: fmt.Sprint("S", i)})
				return typed.Projects.Put(ctx, tx, p)
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := typed.Projects.Get(ctx, s, "p")
	require.NoError(t, err)
	assert.Len(t, p.Subjects, n)
}
