package notebook

import (
	"context"
	"errors"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/history"
	"github.com/aretw0/notetaker/pkg/taxonomy"
)

// write is the persistence scheduler's write function. It stores the
// in-memory note as it is now, with a version of the previous one. A note
// whose category was deleted meanwhile is refiled under the defaults.
func (nb *Notebook) write(ctx context.Context, id string) error {
	ctx = context.WithValue(ctx, core.ChangeReasonKey, "docs(notes): save "+id)
	for attempt := 0; ; attempt++ {
		nb.mu.RLock()
		note, ok := nb.notes[id]
		nb.mu.RUnlock()
		if !ok {
			return nil
		}
		note = note.Clone()

		var changed, dangling bool
		err := nb.store.Transact(ctx, func(tx core.Tx) error {
			if err := taxonomy.Check(ctx, tx, placementOf(note)); err != nil {
				dangling = true
				return err
			}
			var err error
			changed, err = history.Write(ctx, tx, note, nb.now())
			return err
		})
		if dangling && attempt == 0 {
			if err := nb.refile(ctx, note); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		nb.publish(Event{Kind: EventSaved, Collection: core.CollectionNotes, Key: id})

		if changed {
			err := nb.enricher.Notify(ctx, id)
			if err != nil && !errors.Is(err, core.ErrConfigurationRequired) && !errors.Is(err, core.ErrClosed) {
				nb.logger.Warn("failed to schedule enrichment", "id", id, "error", err)
			}
		}
		return nil
	}
}

// refile moves a note whose placement no longer exists to the default
// project and subject, unless it was moved again in the meantime.
func (nb *Notebook) refile(ctx context.Context, stale core.Note) error {
	p, err := nb.resolver.Resolve(ctx, "", "", "")
	if err != nil {
		return err
	}
	nb.mu.Lock()
	current, ok := nb.notes[stale.ID]
	if ok && placementOf(current) == placementOf(stale) {
		current.ProjectID, current.SubjectID = p.ProjectID, p.SubjectID
		nb.notes[stale.ID] = current
	}
	nb.mu.Unlock()
	nb.logger.Warn("note category was deleted, refiled", "id", stale.ID, "project", p.ProjectID, "subject", p.SubjectID)
	nb.publish(Event{Kind: EventUpdated, Collection: core.CollectionNotes, Key: stale.ID})
	return nil
}

func placementOf(n core.Note) taxonomy.Placement {
	return taxonomy.Placement{ProjectID: n.ProjectID, SubjectID: n.SubjectID}
}

func (nb *Notebook) writeFailed(id string, err error) {
	nb.logger.Error("failed to save note", "id", id, "error", err)
	nb.publish(Event{Kind: EventSaveFailed, Collection: core.CollectionNotes, Key: id, Error: err.Error()})
}

func (nb *Notebook) enrichmentChanged(ev enrich.Event) {
	out := Event{Kind: EventEnrichment, Collection: core.CollectionNotes, Key: ev.NoteID, Status: ev.Status.String()}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	nb.publish(out)
}

// target lets the orchestrator merge into the store and the in-memory copy
// while holding the note's persistence slot.
type target struct {
	nb *Notebook
}

func (t target) base() enrich.StoreTarget { return enrich.StoreTarget{Store: t.nb.store} }

func (t target) Load(ctx context.Context, id string) (core.Note, error) {
	return t.base().Load(ctx, id)
}

func (t target) Settings(ctx context.Context) (core.Settings, error) {
	return t.base().Settings(ctx)
}

func (t target) Projects(ctx context.Context) ([]core.Project, error) {
	return t.base().Projects(ctx)
}

// Commit applies fn to the persisted note and to the in-memory note. The
// in-memory copy may carry edits not written yet; fn only touches fields
// those edits never change, so both converge on the next write.
func (t target) Commit(ctx context.Context, id string, fn func(core.Note) core.Note) (core.Note, error) {
	var merged core.Note
	ctx = context.WithValue(ctx, core.ChangeReasonKey, "docs(notes): enrich "+id)
	err := t.nb.scheduler.Exclusive(ctx, id, func(ctx context.Context) error {
		var err error
		merged, err = t.base().Commit(ctx, id, fn)
		if err != nil {
			return err
		}
		t.nb.mu.Lock()
		if current, ok := t.nb.notes[id]; ok {
			t.nb.notes[id] = fn(current)
		}
		t.nb.mu.Unlock()
		return nil
	})
	return merged, err
}
