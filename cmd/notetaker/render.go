package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
	tagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const idWidth = 8

func shortID(id string) string {
	if len(id) <= idWidth {
		return id
	}
	return id[:idWidth]
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// placementName renders "Project / Subject", falling back to ids.
func placementName(projects []core.Project, n core.Note) string {
	for _, p := range projects {
		if p.ID != n.ProjectID {
			continue
		}
		if s, ok := p.Subject(n.SubjectID); ok {
			return p.Name + " / " + s.Name
		}
		return p.Name + " / " + n.SubjectID
	}
	return n.ProjectID + " / " + n.SubjectID
}

func tags(list []string) string {
	parts := make([]string, len(list))
	for i, t := range list {
		parts[i] = "#" + t
	}
	return tagStyle.Render(strings.Join(parts, " "))
}

func renderList(w io.Writer, notes []core.Note, projects []core.Project) {
	if len(notes) == 0 {
		fmt.Fprintln(w, faintStyle.Render("no notes"))
		return
	}
	for _, n := range notes {
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s  %s  %s", faintStyle.Render(shortID(n.ID)), titleStyle.Render(title), faintStyle.Render(placementName(projects, n)))
		if len(n.Tags) > 0 {
			line += "  " + tags(n.Tags)
		}
		fmt.Fprintln(w, line)
	}
}

func renderNote(w io.Writer, n core.Note, projects []core.Project, save, enrichment string) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(n.Title) + "\n")
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label+":"), value)
		}
	}
	field("id", n.ID)
	field("filed", placementName(projects, n))
	field("updated", n.UpdatedAt.Local().Format(time.DateTime))
	field("saved", save)
	field("enrichment", enrichment)
	if len(n.Tags) > 0 {
		field("tags", tags(n.Tags))
	}
	field("summary", n.Summary)
	list := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(labelStyle.Render(label+":") + "\n")
		for _, it := range items {
			b.WriteString("  - " + it + "\n")
		}
	}
	list("todos", n.Todos)
	list("people", n.KeyPeople)
	list("decisions", n.Decisions)
	if len(n.Attachments) > 0 {
		field("attachments", fmt.Sprint(len(n.Attachments)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	if n.Content != "" {
		fmt.Fprintln(w, n.Content)
	}
}

// allNotes returns every note the notebook holds, templates and archived
// ones included.
func allNotes(app *platform.App) []core.Note {
	var out []core.Note
	for _, f := range []notebook.Filter{{}, {Archived: true}, {Templates: true}, {Archived: true, Templates: true}} {
		out = append(out, app.List(f)...)
	}
	return out
}
