package notebook

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notetaker/pkg/core"
)

//go:embed seed/*.md
var seedFiles embed.FS

// seedNote is the frontmatter of an onboarding note.
type seedNote struct {
	Title              string   `yaml:"title"`
	Template           bool     `yaml:"template"`
	Project            string   `yaml:"project"`
	Subject            string   `yaml:"subject"`
	ProjectDescription string   `yaml:"projectDescription"`
	Summary            string   `yaml:"summary"`
	Todos              []string `yaml:"todos"`
	KeyPeople          []string `yaml:"keyPeople"`
	Tags               []string `yaml:"tags"`
	Content            string   `yaml:"-"`
}

func loadSeeds() ([]seedNote, error) {
	names, err := fs.Glob(seedFiles, "seed/*.md")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	seeds := make([]seedNote, 0, len(names))
	for _, name := range names {
		raw, err := seedFiles.ReadFile(name)
		if err != nil {
			return nil, err
		}
		s, err := parseSeed(raw)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}

func parseSeed(raw []byte) (seedNote, error) {
	var s seedNote
	rest, ok := bytes.CutPrefix(raw, []byte("---\n"))
	if !ok {
		return s, fmt.Errorf("missing frontmatter")
	}
	front, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return s, fmt.Errorf("unclosed frontmatter")
	}
	if err := yaml.Unmarshal(front, &s); err != nil {
		return s, err
	}
	s.Content = string(bytes.TrimRight(body, "\n"))
	return s, nil
}

// seed creates the welcome note and the prebuilt templates in one batch.
func (nb *Notebook) seed(ctx context.Context) error {
	seeds, err := loadSeeds()
	if err != nil {
		return err
	}
	now := nb.now().UTC()
	notes := make([]core.Note, 0, len(seeds))
	for _, s := range seeds {
		p, err := nb.resolver.Resolve(ctx, s.Project, s.Subject, s.ProjectDescription)
		if err != nil {
			return err
		}
		notes = append(notes, core.Note{
			ID:         nb.newID(),
			Title:      s.Title,
			Content:    s.Content,
			CreatedAt:  now,
			UpdatedAt:  now,
			ProjectID:  p.ProjectID,
			SubjectID:  p.SubjectID,
			Summary:    s.Summary,
			Todos:      s.Todos,
			KeyPeople:  s.KeyPeople,
			Tags:       s.Tags,
			IsTemplate: s.Template,
		})
	}
	return nb.insert(ctx, notes...)
}
