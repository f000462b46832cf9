package notebook

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Enrich analyzes a note now and returns it with the merged result. Pending
// edits are written first so the analysis sees them.
func (nb *Notebook) Enrich(ctx context.Context, id string) (core.Note, error) {
	if _, err := nb.Get(id); err != nil {
		return core.Note{}, err
	}
	if err := nb.scheduler.Flush(ctx, id); err != nil {
		return core.Note{}, err
	}
	if _, err := nb.enricher.Run(ctx, id); err != nil {
		return core.Note{}, err
	}
	return nb.Get(id)
}

// EnrichmentStatus reports the enrichment state of a note and the error of
// its last failed cycle.
func (nb *Notebook) EnrichmentStatus(id string) (enrich.Status, error) {
	return nb.enricher.Status(id)
}

// ActionKind selects a content transformation.
type ActionKind string

const (
	ActionContinue  ActionKind = "continue"
	ActionTranslate ActionKind = "translate"
	ActionTone      ActionKind = "tone"
	ActionSummarize ActionKind = "summarize"
)

// Action is a quick action on the content of a note.
type Action struct {
	Kind     ActionKind
	Language string // translate
	Tone     string // tone
	// Selection is the text to summarize. Empty means the whole content.
	Selection string
}

func (a Action) task(n core.Note) (enrich.Task, error) {
	switch a.Kind {
	case ActionContinue:
		return enrich.Task{Kind: enrich.TaskContinueWriting, Note: &n}, nil
	case ActionTranslate:
		if strings.TrimSpace(a.Language) == "" {
			return enrich.Task{}, &core.OpError{Op: string(a.Kind), Msg: "translate requires a language"}
		}
		return enrich.Task{Kind: enrich.TaskTranslate, Content: n.Content, TargetLanguage: a.Language}, nil
	case ActionTone:
		if strings.TrimSpace(a.Tone) == "" {
			return enrich.Task{}, &core.OpError{Op: string(a.Kind), Msg: "tone requires a tone"}
		}
		return enrich.Task{Kind: enrich.TaskChangeTone, Content: n.Content, Tone: a.Tone}, nil
	case ActionSummarize:
		sel := a.Selection
		if strings.TrimSpace(sel) == "" {
			sel = n.Content
		}
		return enrich.Task{Kind: enrich.TaskSummarizeSelection, Content: sel}, nil
	}
	return enrich.Task{}, &core.OpError{Op: "transform", Msg: fmt.Sprintf("unknown action %q", a.Kind)}
}

// Transform runs a quick action and applies the result as an ordinary edit.
func (nb *Notebook) Transform(ctx context.Context, id string, a Action) (core.Note, error) {
	n, err := nb.Get(id)
	if err != nil {
		return core.Note{}, err
	}
	if strings.TrimSpace(n.Content) == "" {
		return core.Note{}, &core.OpError{Op: string(a.Kind), Collection: core.CollectionNotes, Key: id, Msg: "the note has no content to transform"}
	}
	task, err := a.task(n)
	if err != nil {
		return core.Note{}, err
	}
	res, err := nb.process(ctx, task)
	if err != nil {
		return core.Note{}, err
	}
	return nb.Update(ctx, id, func(cur *core.Note) {
		if res.Kind == enrich.ResultStringAppend {
			cur.Content += res.Text
			return
		}
		cur.Content = res.Text
	})
}

// Ask answers a question from the active notes.
func (nb *Notebook) Ask(ctx context.Context, question string) (enrich.ChatAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return enrich.ChatAnswer{}, &core.OpError{Op: "ask", Msg: "empty question"}
	}
	res, err := nb.process(ctx, enrich.Task{Kind: enrich.TaskChatQuery, Question: question, Notes: nb.List(Filter{})})
	if err != nil {
		return enrich.ChatAnswer{}, err
	}
	answer := *res.Chat
	answer.SourceNoteIDs = nb.known(answer.SourceNoteIDs)
	return answer, nil
}

// Search returns the active notes relevant to query, most relevant first.
func (nb *Notebook) Search(ctx context.Context, query string) ([]core.Note, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	res, err := nb.process(ctx, enrich.Task{Kind: enrich.TaskSemanticSearch, Query: query, Notes: nb.List(Filter{})})
	if err != nil {
		return nil, err
	}
	out := make([]core.Note, 0, len(res.NoteIDs))
	for _, id := range nb.known(res.NoteIDs) {
		if n, err := nb.Get(id); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// known drops ids of notes that do not exist, keeping order.
func (nb *Notebook) known(ids []string) []string {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := nb.notes[id]; ok && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Upload is a document to turn into a note.
type Upload struct {
	Name        string
	MimeType    string
	Content     string
	ProjectName string // preferred project, may be empty
}

// Ingest analyzes an uploaded document and stores it as a new organized
// note.
func (nb *Notebook) Ingest(ctx context.Context, u Upload) (core.Note, error) {
	if strings.TrimSpace(u.Content) == "" {
		return core.Note{}, &core.OpError{Op: "ingest", Msg: "the file is empty"}
	}
	res, err := nb.process(ctx, enrich.Task{
		Kind:              enrich.TaskUploadAnalysis,
		Content:           u.Content,
		FileName:          u.Name,
		MimeType:          u.MimeType,
		TargetProjectName: u.ProjectName,
	})
	if err != nil {
		return core.Note{}, err
	}
	org := res.Organized
	if org.Project == "" {
		org.Project = u.ProjectName
	}
	return nb.createOrganized(ctx, org, u.Content, nil)
}

// Meeting organizes a meeting transcript, with optional screenshots as
// data URLs, into a new note.
func (nb *Notebook) Meeting(ctx context.Context, transcript string, screenshots ...string) (core.Note, error) {
	if strings.TrimSpace(transcript) == "" {
		return core.Note{}, &core.OpError{Op: "meeting", Msg: "the transcript is empty"}
	}
	res, err := nb.process(ctx, enrich.Task{Kind: enrich.TaskMeetingAnalysis, Transcript: transcript, Screenshots: screenshots})
	if err != nil {
		return core.Note{}, err
	}
	var attachments []core.Attachment
	for i, shot := range screenshots {
		mime, _, ok := strings.Cut(strings.TrimPrefix(shot, "data:"), ";")
		if !ok {
			mime = "image/png"
		}
		attachments = append(attachments, core.Attachment{
			ID:       nb.newID(),
			Name:     fmt.Sprintf("screenshot-%d", i+1),
			MimeType: mime,
			Data:     shot,
		})
	}
	return nb.createOrganized(ctx, res.Organized, transcript, attachments)
}

func (nb *Notebook) createOrganized(ctx context.Context, org *enrich.Organized, content string, attachments []core.Attachment) (core.Note, error) {
	return nb.Create(ctx, Draft{
		Title:           org.Title,
		Content:         content,
		Project:         org.Project,
		Subject:         org.Subject,
		Summary:         org.Summary,
		DetailedSummary: org.DetailedSummary,
		GraphData:       enrich.NormalizeGraph(org.GraphData),
		Todos:           org.Todos,
		KeyPeople:       org.KeyPeople,
		Tags:            enrich.UnionTags(nil, org.Tags),
		Decisions:       org.Decisions,
		Attachments:     attachments,
	})
}

// process sends one task to the processor and checks the result shape.
func (nb *Notebook) process(ctx context.Context, task enrich.Task) (enrich.Result, error) {
	settings, err := nb.Settings(ctx)
	if err != nil {
		return enrich.Result{}, err
	}
	if !settings.HasCredential() {
		return enrich.Result{}, &core.OpError{Op: string(task.Kind), Msg: "an API key is required", Err: core.ErrConfigurationRequired}
	}
	projects, err := typed.Projects.List(ctx, nb.store)
	if err != nil {
		return enrich.Result{}, err
	}
	res, err := nb.processor.Process(ctx, task, settings, projects)
	if err != nil {
		return enrich.Result{}, err
	}
	if err := enrich.Validate(task.Kind, res); err != nil {
		return enrich.Result{}, err
	}
	return res, nil
}
