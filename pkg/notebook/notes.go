package notebook

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/history"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Default values of a new note.
const (
	DefaultTitle   = "New Note"
	DefaultSummary = "A new empty note."
	todayToken     = "{{Today}}"
)

// Draft describes a note to create. The placement is taken from the ids
// when both are set, otherwise from the names.
type Draft struct {
	Title           string
	Content         string
	ProjectID       string
	SubjectID       string
	Project         string
	Subject         string
	Summary         string
	DetailedSummary string
	GraphData       *core.GraphData
	Todos           []string
	KeyPeople       []string
	Tags            []string
	Decisions       []string
	Attachments     []core.Attachment
	IsTemplate      bool
}

func (nb *Notebook) placement(ctx context.Context, d Draft) (taxonomy.Placement, error) {
	if d.ProjectID != "" && d.SubjectID != "" {
		p := taxonomy.Placement{ProjectID: d.ProjectID, SubjectID: d.SubjectID}
		if _, _, err := nb.resolver.Lookup(ctx, p); err != nil {
			return taxonomy.Placement{}, err
		}
		return p, nil
	}
	return nb.resolver.Resolve(ctx, d.Project, d.Subject, "")
}

// Create stores a new note right away and adds it to memory.
func (nb *Notebook) Create(ctx context.Context, d Draft) (core.Note, error) {
	p, err := nb.placement(ctx, d)
	if err != nil {
		return core.Note{}, err
	}
	now := nb.now().UTC()
	note := core.Note{
		ID:              nb.newID(),
		Title:           strings.TrimSpace(d.Title),
		Content:         d.Content,
		CreatedAt:       now,
		UpdatedAt:       now,
		ProjectID:       p.ProjectID,
		SubjectID:       p.SubjectID,
		Summary:         d.Summary,
		DetailedSummary: d.DetailedSummary,
		GraphData:       d.GraphData,
		Todos:           slices.Clone(d.Todos),
		KeyPeople:       slices.Clone(d.KeyPeople),
		Tags:            slices.Clone(d.Tags),
		Decisions:       slices.Clone(d.Decisions),
		Attachments:     slices.Clone(d.Attachments),
		IsTemplate:      d.IsTemplate,
	}
	if note.Title == "" {
		note.Title = DefaultTitle
	}
	if note.Summary == "" {
		note.Summary = DefaultSummary
	}

	if err := nb.insert(ctx, note); err != nil {
		return core.Note{}, err
	}
	return note.Clone(), nil
}

func (nb *Notebook) insert(ctx context.Context, notes ...core.Note) error {
	ctx = context.WithValue(ctx, core.ChangeReasonKey, fmt.Sprintf("feat(notes): create %d notes", len(notes)))
	err := nb.store.Transact(ctx, func(tx core.Tx) error {
		for _, n := range notes {
			if err := taxonomy.Check(ctx, tx, placementOf(n)); err != nil {
				return err
			}
			if err := typed.Notes.Put(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	nb.mu.Lock()
	for _, n := range notes {
		nb.notes[n.ID] = n.Clone()
	}
	nb.mu.Unlock()
	for _, n := range notes {
		nb.publish(Event{Kind: EventCreated, Collection: core.CollectionNotes, Key: n.ID})
	}
	return nil
}

// CreateFromTemplate creates a note from a template, replacing {{Today}}
// with the current date.
func (nb *Notebook) CreateFromTemplate(ctx context.Context, templateID string) (core.Note, error) {
	tmpl, err := nb.Get(templateID)
	if err != nil {
		return core.Note{}, &core.OpError{Op: "create", Collection: core.CollectionNotes, Key: templateID, Msg: "template not found", Err: core.ErrNotFound}
	}

	d := Draft{
		Title:       "New from " + tmpl.Title,
		Content:     strings.ReplaceAll(tmpl.Content, todayToken, nb.now().Format(time.DateOnly)),
		Project:     taxonomy.DefaultProject,
		Subject:     taxonomy.DefaultSubject,
		Todos:       tmpl.Todos,
		KeyPeople:   tmpl.KeyPeople,
		Tags:        tmpl.Tags,
		Decisions:   tmpl.Decisions,
		Attachments: tmpl.Attachments,
	}
	if project, subject, err := nb.resolver.Lookup(ctx, taxonomy.Placement{ProjectID: tmpl.ProjectID, SubjectID: tmpl.SubjectID}); err == nil {
		d.Project, d.Subject = project.Name, subject.Name
	}
	return nb.Create(ctx, d)
}

// Update applies fn to the in-memory note and schedules its write. The
// change is visible to Get immediately and is never rolled back, even if
// the write fails.
func (nb *Notebook) Update(ctx context.Context, id string, fn func(*core.Note)) (core.Note, error) {
	nb.mu.Lock()
	current, ok := nb.notes[id]
	if !ok {
		nb.mu.Unlock()
		return core.Note{}, core.NotFound(core.CollectionNotes, id)
	}
	updated := current.Clone()
	fn(&updated)
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt

	if updated.ProjectID != current.ProjectID || updated.SubjectID != current.SubjectID {
		p := taxonomy.Placement{ProjectID: updated.ProjectID, SubjectID: updated.SubjectID}
		if !nb.resolver.Valid(ctx, p) {
			nb.mu.Unlock()
			return core.Note{}, &core.OpError{Op: "update", Collection: core.CollectionNotes, Key: id, Msg: "unknown project or subject", Err: core.ErrNotFound}
		}
	}

	now := nb.now().UTC()
	if now.After(current.UpdatedAt) {
		updated.UpdatedAt = now
	} else {
		updated.UpdatedAt = current.UpdatedAt
	}
	nb.notes[id] = updated
	nb.mu.Unlock()

	nb.publish(Event{Kind: EventUpdated, Collection: core.CollectionNotes, Key: id})
	if err := nb.scheduler.Schedule(id); err != nil {
		return updated.Clone(), err
	}
	return updated.Clone(), nil
}

// SetContent is shorthand for an Update of title and content.
func (nb *Notebook) SetContent(ctx context.Context, id, title, content string) (core.Note, error) {
	return nb.Update(ctx, id, func(n *core.Note) {
		n.Title = title
		n.Content = content
	})
}

// Archive sets or clears the archived flag.
func (nb *Notebook) Archive(ctx context.Context, id string, archived bool) (core.Note, error) {
	return nb.Update(ctx, id, func(n *core.Note) { n.IsArchived = archived })
}

// Delete removes a note and all its versions.
func (nb *Notebook) Delete(ctx context.Context, id string) error {
	if _, err := nb.Get(id); err != nil {
		return err
	}
	ctx = context.WithValue(ctx, core.ChangeReasonKey, "chore(notes): delete "+id)
	err := nb.scheduler.Exclusive(ctx, id, func(ctx context.Context) error {
		err := nb.store.Transact(ctx, func(tx core.Tx) error {
			if err := typed.Notes.Delete(ctx, tx, id); err != nil {
				return err
			}
			_, err := history.DeleteAll(ctx, tx, id)
			return err
		})
		if err != nil {
			return err
		}
		nb.mu.Lock()
		delete(nb.notes, id)
		nb.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	if err := nb.scheduler.Forget(ctx, id); err != nil {
		return err
	}
	nb.enricher.Forget(id)
	nb.publish(Event{Kind: EventDeleted, Collection: core.CollectionNotes, Key: id})
	return nil
}

// Versions returns the history of a note, newest first.
func (nb *Notebook) Versions(ctx context.Context, id string) ([]core.NoteVersion, error) {
	return history.List(ctx, nb.store, id)
}

// Restore brings back the title and content of a version through the
// normal edit path, so the current state becomes a version itself.
func (nb *Notebook) Restore(ctx context.Context, id, versionID string) (core.Note, error) {
	v, err := typed.Versions.Get(ctx, nb.store, versionID)
	if err != nil {
		return core.Note{}, err
	}
	if v.NoteID != id {
		return core.Note{}, &core.OpError{Op: "restore", Collection: core.CollectionVersions, Key: versionID, Msg: "version belongs to another note", Err: core.ErrNotFound}
	}
	return nb.SetContent(ctx, id, v.Title, v.Content)
}
