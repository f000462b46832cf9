// Package history records immutable snapshots of notes before they change.
package history

import (
	"context"
	"slices"
	"time"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

// VersionID builds the composite version key of a note.
func VersionID(noteID string, savedAt time.Time) string {
	return noteID + "-" + savedAt.UTC().Format(time.RFC3339Nano)
}

// RecordIfChanged returns the pre-write snapshot of old when the write from
// old to updated changes its title or content.
func RecordIfChanged(old, updated core.Note, savedAt time.Time) (core.NoteVersion, bool) {
	if old.Title == updated.Title && old.Content == updated.Content {
		return core.NoteVersion{}, false
	}
	return core.NoteVersion{
		ID:      VersionID(old.ID, savedAt),
		NoteID:  old.ID,
		Title:   old.Title,
		Content: old.Content,
		SavedAt: savedAt.UTC(),
	}, true
}

// Write persists updated inside tx, snapshotting the previously stored
// version first. A note that was never stored gets no version.
// It reports whether title or content changed.
func Write(ctx context.Context, tx core.Tx, updated core.Note, savedAt time.Time) (bool, error) {
	old, err := typed.Notes.Get(ctx, tx, updated.ID)
	switch {
	case core.IsNotFound(err):
		return true, typed.Notes.Put(ctx, tx, updated)
	case err != nil:
		return false, err
	}

	v, changed := RecordIfChanged(old, updated, savedAt)
	if changed {
		if err := typed.Versions.Put(ctx, tx, v); err != nil {
			return false, err
		}
	}
	return changed, typed.Notes.Put(ctx, tx, updated)
}

// List returns the versions of a note, newest first.
func List(ctx context.Context, r core.Reader, noteID string) ([]core.NoteVersion, error) {
	versions, err := typed.Versions.Scan(ctx, r, core.IndexByNote, noteID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(versions)
	return versions, nil
}

// SortNewestFirst orders versions by SavedAt descending.
func SortNewestFirst(versions []core.NoteVersion) {
	slices.SortStableFunc(versions, func(a, b core.NoteVersion) int {
		return b.SavedAt.Compare(a.SavedAt)
	})
}

// DeleteAll removes every version of a note inside tx.
func DeleteAll(ctx context.Context, tx core.Tx, noteID string) (int, error) {
	recs, err := tx.ScanByIndex(ctx, core.CollectionVersions, core.IndexByNote, noteID)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := tx.Delete(ctx, core.CollectionVersions, rec.Key); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}
