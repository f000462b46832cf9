package taxonomy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

// CreateProject adds a project seeded with a DefaultSubject subject.
func (r *Resolver) CreateProject(ctx context.Context, name, description string) (core.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Project{}, &core.OpError{Op: "create", Collection: core.CollectionProjects, Err: core.ErrEmptyKey, Msg: "project name is required"}
	}
	unlock := r.locks.Lock(fold(name))
	defer unlock()

	project := core.Project{
		ID:          r.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Subjects:    []core.Subject{{ID: r.newID(), Name: DefaultSubject}},
	}
	err := r.store.Transact(ctx, func(tx core.Tx) error {
		if _, found, err := findByName(ctx, tx, name); err != nil {
			return err
		} else if found {
			return duplicate("create", core.CollectionProjects, "", fmt.Sprintf("project %q already exists", name))
		}
		return typed.Projects.Put(ctx, tx, project)
	})
	if err != nil {
		return core.Project{}, err
	}
	return project, nil
}

// UpdateProject renames a project and replaces its description.
func (r *Resolver) UpdateProject(ctx context.Context, id, name, description string) (core.Project, error) {
	name = strings.TrimSpace(name)
	var updated core.Project
	err := r.store.Transact(ctx, func(tx core.Tx) error {
		project, err := typed.Projects.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if name != "" && !strings.EqualFold(name, project.Name) {
			other, found, err := findByName(ctx, tx, name)
			if err != nil {
				return err
			}
			if found && other.ID != id {
				return duplicate("update", core.CollectionProjects, id, fmt.Sprintf("project %q already exists", name))
			}
		}
		if name != "" {
			project.Name = name
		}
		project.Description = strings.TrimSpace(description)
		updated = project
		return typed.Projects.Put(ctx, tx, project)
	})
	return updated, err
}

// AddSubject appends a subject to a project, or returns the existing one
// whose name matches ignoring case.
func (r *Resolver) AddSubject(ctx context.Context, projectID, name string) (core.Subject, error) {
	return r.addSubject(ctx, projectID, name, false)
}

// CreateSubject is like AddSubject but a name match is an error.
func (r *Resolver) CreateSubject(ctx context.Context, projectID, name string) (core.Subject, error) {
	return r.addSubject(ctx, projectID, name, true)
}

func (r *Resolver) addSubject(ctx context.Context, projectID, name string, strict bool) (core.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Subject{}, &core.OpError{Op: "add", Collection: core.CollectionProjects, Key: projectID, Err: core.ErrEmptyKey, Msg: "subject name is required"}
	}
	var subject core.Subject
	err := r.store.Transact(ctx, func(tx core.Tx) error {
		project, err := typed.Projects.Get(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if i := subjectIndex(project, name); i >= 0 {
			if strict {
				return duplicate("add", core.CollectionProjects, projectID, fmt.Sprintf("subject %q already exists in this project", name))
			}
			subject = project.Subjects[i]
			return nil
		}
		subject = core.Subject{ID: r.newID(), Name: name}
		project.Subjects = append(project.Subjects, subject)
		return typed.Projects.Put(ctx, tx, project)
	})
	return subject, err
}

// RenameSubject renames the subject with the given id in whichever project
// holds it.
func (r *Resolver) RenameSubject(ctx context.Context, subjectID, name string) (core.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Subject{}, &core.OpError{Op: "rename", Collection: "subjects", Key: subjectID, Err: core.ErrEmptyKey, Msg: "subject name is required"}
	}
	var renamed core.Subject
	err := r.store.Transact(ctx, func(tx core.Tx) error {
		project, err := projectOfSubject(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		if i := subjectIndex(project, name); i >= 0 && project.Subjects[i].ID != subjectID {
			return duplicate("rename", "subjects", subjectID, fmt.Sprintf("subject %q already exists in this project", name))
		}
		i := slices.IndexFunc(project.Subjects, func(s core.Subject) bool { return s.ID == subjectID })
		project.Subjects[i].Name = name
		renamed = project.Subjects[i]
		return typed.Projects.Put(ctx, tx, project)
	})
	return renamed, err
}

// DeleteProject removes a project that no note references.
func (r *Resolver) DeleteProject(ctx context.Context, id string) error {
	return r.store.Transact(ctx, func(tx core.Tx) error {
		if _, err := typed.Projects.Get(ctx, tx, id); err != nil {
			return err
		}
		notes, err := tx.ScanByIndex(ctx, core.CollectionNotes, core.IndexByProject, id)
		if err != nil {
			return err
		}
		if len(notes) > 0 {
			return &core.OpError{Op: "delete", Collection: core.CollectionProjects, Key: id, Err: core.ErrCategoryInUse, Msg: "cannot delete a project that contains notes"}
		}
		return typed.Projects.Delete(ctx, tx, id)
	})
}

// DeleteSubject removes a subject that no note references.
func (r *Resolver) DeleteSubject(ctx context.Context, subjectID string) error {
	return r.store.Transact(ctx, func(tx core.Tx) error {
		project, err := projectOfSubject(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		notes, err := tx.ScanByIndex(ctx, core.CollectionNotes, core.IndexBySubject, subjectID)
		if err != nil {
			return err
		}
		if len(notes) > 0 {
			return &core.OpError{Op: "delete", Collection: "subjects", Key: subjectID, Err: core.ErrCategoryInUse, Msg: "cannot delete a subject that contains notes"}
		}
		project.Subjects = slices.DeleteFunc(project.Subjects, func(s core.Subject) bool { return s.ID == subjectID })
		return typed.Projects.Put(ctx, tx, project)
	})
}

func projectOfSubject(ctx context.Context, r core.Reader, subjectID string) (core.Project, error) {
	projects, err := typed.Projects.List(ctx, r)
	if err != nil {
		return core.Project{}, err
	}
	for _, p := range projects {
		if _, ok := p.Subject(subjectID); ok {
			return p.Clone(), nil
		}
	}
	return core.Project{}, core.NotFound("subjects", subjectID)
}

func subjectIndex(p core.Project, name string) int {
	return slices.IndexFunc(p.Subjects, func(s core.Subject) bool {
		return strings.EqualFold(s.Name, strings.TrimSpace(name))
	})
}

func duplicate(op, coll, key, msg string) error {
	return &core.OpError{Op: op, Collection: coll, Key: key, Err: core.ErrDuplicateName, Msg: msg}
}
