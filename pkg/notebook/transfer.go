package notebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Snapshot encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Export returns every persisted record. Pending edits are flushed first.
func (nb *Notebook) Export(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := nb.scheduler.FlushAll(ctx); err != nil {
		return snap, fmt.Errorf("failed to flush before export: %w", err)
	}
	err := nb.store.Transact(ctx, func(tx core.Tx) error {
		var err error
		if snap.Notes, err = typed.Notes.List(ctx, tx); err != nil {
			return err
		}
		if snap.Projects, err = typed.Projects.List(ctx, tx); err != nil {
			return err
		}
		if snap.Versions, err = typed.Versions.List(ctx, tx); err != nil {
			return err
		}
		s, err := typed.Settings.Get(ctx, tx, core.SettingsID)
		switch {
		case err == nil:
			snap.Settings = &s
		case !core.IsNotFound(err):
			return err
		}
		return nil
	})
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to export: %w", err)
	}
	return snap, nil
}

// ImportResult counts what Import wrote.
type ImportResult struct {
	Notes    int `json:"notes"`
	Versions int `json:"versions"`
	Projects int `json:"projects"`
	Relinked int `json:"relinked"` // notes whose category was not in the snapshot
}

// Import merges a snapshot into the store. Categories are matched by name,
// so ids in the snapshot only link notes to the snapshot's own projects.
// Notes and versions keep their ids and replace existing records.
func (nb *Notebook) Import(ctx context.Context, snap core.Snapshot) (ImportResult, error) {
	var res ImportResult
	if err := nb.scheduler.FlushAll(ctx); err != nil {
		return res, fmt.Errorf("failed to flush before import: %w", err)
	}

	type names struct{ project, subject string }
	bySubject := make(map[string]names)
	placements := make(map[names]taxonomy.Placement)
	for _, p := range snap.Projects {
		subjects := p.Subjects
		if len(subjects) == 0 {
			subjects = []core.Subject{{Name: taxonomy.DefaultSubject}}
		}
		for _, s := range subjects {
			key := names{p.Name, s.Name}
			placed, err := nb.resolver.Resolve(ctx, p.Name, s.Name, p.Description)
			if err != nil {
				return res, err
			}
			placements[key] = placed
			if s.ID != "" {
				bySubject[p.ID+"\x00"+s.ID] = key
			}
		}
		res.Projects++
	}

	var fallback *taxonomy.Placement
	notes := make([]core.Note, 0, len(snap.Notes))
	for _, n := range snap.Notes {
		if n.ID == "" {
			continue
		}
		n = n.Clone()
		if key, ok := bySubject[n.ProjectID+"\x00"+n.SubjectID]; ok {
			p := placements[key]
			n.ProjectID, n.SubjectID = p.ProjectID, p.SubjectID
		} else {
			if fallback == nil {
				p, err := nb.resolver.Resolve(ctx, taxonomy.DefaultProject, taxonomy.DefaultSubject, "")
				if err != nil {
					return res, err
				}
				fallback = &p
			}
			n.ProjectID, n.SubjectID = fallback.ProjectID, fallback.SubjectID
			res.Relinked++
		}
		notes = append(notes, n)
	}

	ctx = context.WithValue(ctx, core.ChangeReasonKey, fmt.Sprintf("feat(import): %d notes", len(notes)))
	err := nb.store.Transact(ctx, func(tx core.Tx) error {
		for _, n := range notes {
			if err := taxonomy.Check(ctx, tx, placementOf(n)); err != nil {
				return err
			}
			if err := typed.Notes.Put(ctx, tx, n); err != nil {
				return err
			}
		}
		for _, v := range snap.Versions {
			if v.ID == "" {
				continue
			}
			if err := typed.Versions.Put(ctx, tx, v); err != nil {
				return err
			}
			res.Versions++
		}
		if snap.Settings != nil {
			s := withDefaults(*snap.Settings)
			if err := typed.Settings.Put(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import: %w", err)
	}
	res.Notes = len(notes)

	if err := nb.reload(ctx); err != nil {
		return res, err
	}
	nb.publish(Event{Kind: EventImported, Collection: core.CollectionNotes})
	nb.logger.Info("snapshot imported", "notes", res.Notes, "versions", res.Versions, "relinked", res.Relinked)
	return res, nil
}

// yamlNote carries the content, which the note's own yaml tags leave to
// the Markdown body.
type yamlNote struct {
	core.Note `yaml:",inline"`
	Content   string `yaml:"content"`
}

type yamlSnapshot struct {
	Notes    []yamlNote         `yaml:"notes"`
	Projects []core.Project     `yaml:"projects"`
	Settings *core.Settings     `yaml:"settings,omitempty"`
	Versions []core.NoteVersion `yaml:"noteVersions"`
}

// EncodeSnapshot writes snap as JSON or YAML.
func EncodeSnapshot(w io.Writer, snap core.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML, "yml":
		out := yamlSnapshot{Projects: snap.Projects, Settings: snap.Settings, Versions: snap.Versions}
		for _, n := range snap.Notes {
			out.Notes = append(out.Notes, yamlNote{Note: n, Content: n.Content})
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown snapshot format %q", format)
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader, format string) (core.Snapshot, error) {
	var snap core.Snapshot
	switch strings.ToLower(format) {
	case "", FormatJSON:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return snap, fmt.Errorf("invalid snapshot: %w", err)
		}
		return snap, nil
	case FormatYAML, "yml":
		var in yamlSnapshot
		if err := yaml.NewDecoder(r).Decode(&in); err != nil {
			return snap, fmt.Errorf("invalid snapshot: %w", err)
		}
		snap.Projects, snap.Settings, snap.Versions = in.Projects, in.Settings, in.Versions
		for _, n := range in.Notes {
			note := n.Note
			note.Content = n.Content
			snap.Notes = append(snap.Notes, note)
		}
		return snap, nil
	}
	return snap, fmt.Errorf("unknown snapshot format %q", format)
}

// FormatOf guesses the snapshot format from a file name.
func FormatOf(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}
