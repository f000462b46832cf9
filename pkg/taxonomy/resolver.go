// Package taxonomy files notes under projects and subjects, creating them
// on first reference.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Fallback names used when a note or a result carries no category.
const (
	DefaultProject = "Personal"
	DefaultSubject = "General"
)

// Placement identifies where a note is filed.
type Placement struct {
	ProjectID string `json:"projectId"`
	SubjectID string `json:"subjectId"`
}

// Resolver maps human-readable category names to stable ids.
// Resolutions are serialized per case-folded project name, and identical
// concurrent requests share a single resolution.
type Resolver struct {
	store  core.Store
	newID  func() string
	logger *slog.Logger
	locks  *keyedMutex
	group  singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Resolver) { r.newID = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a resolver over store.
func New(store core.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		newID:  uuid.NewString,
		logger: slog.New(slog.DiscardHandler),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func fold(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Resolve returns the ids of (projectName, subjectName), creating the
// project and subject if missing. description only applies to a newly
// created project. Empty names fall back to DefaultProject/DefaultSubject.
func (r *Resolver) Resolve(ctx context.Context, projectName, subjectName, description string) (Placement, error) {
	projectName = strings.TrimSpace(projectName)
	subjectName = strings.TrimSpace(subjectName)
	if projectName == "" {
		projectName = DefaultProject
	}
	if subjectName == "" {
		subjectName = DefaultSubject
	}

	key := fold(projectName) + "\x00" + fold(subjectName)
	ch := r.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so it must outlive the first caller.
		return r.resolve(context.WithoutCancel(ctx), projectName, subjectName, description)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Placement{}, res.Err
		}
		return res.Val.(Placement), nil
	case <-ctx.Done():
		return Placement{}, ctx.Err()
	}
}

func (r *Resolver) resolve(ctx context.Context, projectName, subjectName, description string) (Placement, error) {
	unlock := r.locks.Lock(fold(projectName))
	defer unlock()

	var placement Placement
	err := r.store.Transact(ctx, func(tx core.Tx) error {
		project, found, err := findByName(ctx, tx, projectName)
		if err != nil {
			return err
		}

		dirty := false
		if !found {
			project = core.Project{
				ID:          r.newID(),
				Name:        projectName,
				Description: strings.TrimSpace(description),
				Subjects:    []core.Subject{},
			}
			dirty = true
		}

		idx := slices.IndexFunc(project.Subjects, func(s core.Subject) bool {
			return strings.EqualFold(s.Name, subjectName)
		})
		var subject core.Subject
		if idx >= 0 {
			subject = project.Subjects[idx]
		} else {
			subject = core.Subject{ID: r.newID(), Name: subjectName}
			project.Subjects = append(project.Subjects, subject)
			dirty = true
		}

		if dirty {
			if err := typed.Projects.Put(ctx, tx, project); err != nil {
				return err
			}
			r.logger.Debug("taxonomy updated", "project", project.Name, "subject", subject.Name, "created", !found)
		}
		placement = Placement{ProjectID: project.ID, SubjectID: subject.ID}
		return nil
	})
	if err != nil {
		return Placement{}, fmt.Errorf("failed to resolve %s/%s: %w", projectName, subjectName, err)
	}
	return placement, nil
}

// findByName returns the project with a case-insensitive name match. When
// legacy data holds duplicates the one with the smallest id wins.
func findByName(ctx context.Context, r core.Reader, name string) (core.Project, bool, error) {
	matches, err := typed.Projects.Scan(ctx, r, core.IndexByName, strings.TrimSpace(name))
	if err != nil {
		return core.Project{}, false, err
	}
	if len(matches) == 0 {
		return core.Project{}, false, nil
	}
	return matches[0].Clone(), true, nil
}

// List returns all projects sorted by name.
func (r *Resolver) List(ctx context.Context) ([]core.Project, error) {
	projects, err := typed.Projects.List(ctx, r.store)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(projects, func(a, b core.Project) int {
		return strings.Compare(fold(a.Name), fold(b.Name))
	})
	return projects, nil
}

// Get returns a project by id.
func (r *Resolver) Get(ctx context.Context, id string) (core.Project, error) {
	return typed.Projects.Get(ctx, r.store, id)
}

// Lookup returns the project and subject a placement points to.
func (r *Resolver) Lookup(ctx context.Context, p Placement) (core.Project, core.Subject, error) {
	return lookup(ctx, r.store, p)
}

// Check fails with core.ErrNotFound unless p references an existing project
// and subject as seen by rd. Writers call it inside their transaction so a
// concurrent category delete cannot leave a dangling reference.
func Check(ctx context.Context, rd core.Reader, p Placement) error {
	_, _, err := lookup(ctx, rd, p)
	if err != nil {
		return &core.OpError{Op: "check", Collection: core.CollectionProjects, Key: p.ProjectID + "/" + p.SubjectID, Msg: "unknown project or subject", Err: err}
	}
	return nil
}

func lookup(ctx context.Context, rd core.Reader, p Placement) (core.Project, core.Subject, error) {
	project, err := typed.Projects.Get(ctx, rd, p.ProjectID)
	if err != nil {
		return core.Project{}, core.Subject{}, err
	}
	subject, ok := project.Subject(p.SubjectID)
	if !ok {
		return project, core.Subject{}, core.NotFound("subjects", p.SubjectID)
	}
	return project, subject, nil
}

// Valid reports whether p references an existing project and subject.
func (r *Resolver) Valid(ctx context.Context, p Placement) bool {
	_, _, err := r.Lookup(ctx, p)
	return err == nil
}

// Stats exposes resolver internals for introspection.
type Stats struct {
	ActiveLocks int `json:"active_locks"`
}

func (r *Resolver) Stats() Stats {
	return Stats{ActiveLocks: r.locks.Len()}
}
