package notebook

import (
	"context"

	"github.com/aretw0/notetaker/pkg/core"
)

// Projects returns every project sorted by name.
func (nb *Notebook) Projects(ctx context.Context) ([]core.Project, error) {
	return nb.resolver.List(ctx)
}

func (nb *Notebook) CreateProject(ctx context.Context, name, description string) (core.Project, error) {
	p, err := nb.resolver.CreateProject(ctx, name, description)
	nb.taxonomyChanged(p.ID, err)
	return p, err
}

func (nb *Notebook) UpdateProject(ctx context.Context, id, name, description string) (core.Project, error) {
	p, err := nb.resolver.UpdateProject(ctx, id, name, description)
	nb.taxonomyChanged(id, err)
	return p, err
}

// AddSubject returns the existing subject when the name is taken.
func (nb *Notebook) AddSubject(ctx context.Context, projectID, name string) (core.Subject, error) {
	s, err := nb.resolver.AddSubject(ctx, projectID, name)
	nb.taxonomyChanged(projectID, err)
	return s, err
}

func (nb *Notebook) RenameSubject(ctx context.Context, subjectID, name string) (core.Subject, error) {
	s, err := nb.resolver.RenameSubject(ctx, subjectID, name)
	nb.taxonomyChanged("", err)
	return s, err
}

// DeleteProject refuses while any note, saved or not, is filed under it.
// A note moved into the project after the check is refiled by its write.
func (nb *Notebook) DeleteProject(ctx context.Context, id string) error {
	if err := nb.FlushAll(ctx); err != nil {
		return err
	}
	if nb.filedUnder(func(n core.Note) bool { return n.ProjectID == id }) {
		return &core.OpError{Op: "delete", Collection: core.CollectionProjects, Key: id, Err: core.ErrCategoryInUse, Msg: "cannot delete a project that contains notes"}
	}
	err := nb.resolver.DeleteProject(ctx, id)
	nb.taxonomyChanged(id, err)
	return err
}

// DeleteSubject refuses while any note, saved or not, is filed under it.
func (nb *Notebook) DeleteSubject(ctx context.Context, subjectID string) error {
	if err := nb.FlushAll(ctx); err != nil {
		return err
	}
	if nb.filedUnder(func(n core.Note) bool { return n.SubjectID == subjectID }) {
		return &core.OpError{Op: "delete", Collection: "subjects", Key: subjectID, Err: core.ErrCategoryInUse, Msg: "cannot delete a subject that contains notes"}
	}
	err := nb.resolver.DeleteSubject(ctx, subjectID)
	nb.taxonomyChanged("", err)
	return err
}

func (nb *Notebook) filedUnder(match func(core.Note) bool) bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	for _, n := range nb.notes {
		if match(n) {
			return true
		}
	}
	return false
}

func (nb *Notebook) taxonomyChanged(key string, err error) {
	if err == nil {
		nb.publish(Event{Kind: EventTaxonomyChanged, Collection: core.CollectionProjects, Key: key})
	}
}
