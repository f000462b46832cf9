package enrich

import (
	"context"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Target is where the orchestrator reads notes from and commits merges to.
type Target interface {
	// Load returns the persisted note.
	Load(ctx context.Context, id string) (core.Note, error)

	// Commit applies fn to the current note and persists the result.
	Commit(ctx context.Context, id string, fn func(core.Note) core.Note) (core.Note, error)

	Settings(ctx context.Context) (core.Settings, error)
	Projects(ctx context.Context) ([]core.Project, error)
}

// StoreTarget is a Target backed directly by a store.
type StoreTarget struct {
	Store core.Store
}

func (t StoreTarget) Load(ctx context.Context, id string) (core.Note, error) {
	return typed.Notes.Get(ctx, t.Store, id)
}

// Commit re-reads the note inside a transaction so the merge sees the
// latest persisted state. The merged placement must still exist.
func (t StoreTarget) Commit(ctx context.Context, id string, fn func(core.Note) core.Note) (core.Note, error) {
	var merged core.Note
	err := t.Store.Transact(ctx, func(tx core.Tx) error {
		current, err := typed.Notes.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		merged = fn(current)
		p := taxonomy.Placement{ProjectID: merged.ProjectID, SubjectID: merged.SubjectID}
		if err := taxonomy.Check(ctx, tx, p); err != nil {
			return err
		}
		return typed.Notes.Put(ctx, tx, merged)
	})
	return merged, err
}

// Settings returns the stored settings or the defaults on first run.
func (t StoreTarget) Settings(ctx context.Context) (core.Settings, error) {
	s, err := typed.Settings.Get(ctx, t.Store, core.SettingsID)
	if core.IsNotFound(err) {
		return core.DefaultSettings(), nil
	}
	return s, err
}

func (t StoreTarget) Projects(ctx context.Context) ([]core.Project, error) {
	return typed.Projects.List(ctx, t.Store)
}
