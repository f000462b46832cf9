package notebook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/notebook"
)

func TestTransform(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcessor()
	nb, _ := open(t, notebook.WithProcessor(proc), notebook.WithEnrichDelay(time.Hour))
	withKey(t, nb)

	n, err := nb.Create(ctx, notebook.Draft{Title: "t", Content: "hello"})
	require.NoError(t, err)

	proc.set(enrich.TaskTranslate, enrich.Result{Kind: enrich.ResultString, Text: "olá"})
	got, err := nb.Transform(ctx, n.ID, notebook.Action{Kind: notebook.ActionTranslate, Language: "Portuguese"})
	require.NoError(t, err)
	assert.Equal(t, "olá", got.Content)
	assert.Equal(t, "Portuguese", proc.last().TargetLanguage)

	proc.set(enrich.TaskSummarizeSelection, enrich.Result{Kind: enrich.ResultStringAppend, Text: "\n\nsummary"})
	got, err = nb.Transform(ctx, n.ID, notebook.Action{Kind: notebook.ActionSummarize})
	require.NoError(t, err)
	assert.Equal(t, "olá\n\nsummary", got.Content)
	assert.Equal(t, "olá", proc.last().Content)

	_, err = nb.Transform(ctx, n.ID, notebook.Action{Kind: notebook.ActionTranslate})
	assert.Error(t, err, "translate needs a language")

	proc.set(enrich.TaskChangeTone, enrich.Result{Kind: enrich.ResultChatResponse, Chat: &enrich.ChatAnswer{}})
	_, err = nb.Transform(ctx, n.ID, notebook.Action{Kind: notebook.ActionTone, Tone: "formal"})
	assert.True(t, errors.Is(err, core.ErrInvalidResponse))
}

func TestAskAndSearch(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcessor()
	nb, _ := open(t, notebook.WithProcessor(proc), notebook.WithEnrichDelay(time.Hour))
	withKey(t, nb)

	a, err := nb.Create(ctx, notebook.Draft{Title: "milk", Content: "buy milk"})
	require.NoError(t, err)
	_, err = nb.Create(ctx, notebook.Draft{Title: "eggs", Content: "buy eggs"})
	require.NoError(t, err)

	proc.set(enrich.TaskChatQuery, enrich.Result{Kind: enrich.ResultChatResponse, Chat: &enrich.ChatAnswer{
		Answer:        "Milk.",
		SourceNoteIDs: []string{a.ID, "unknown", a.ID},
	}})
	answer, err := nb.Ask(ctx, "what do I buy?")
	require.NoError(t, err)
	assert.Equal(t, "Milk.", answer.Answer)
	assert.Equal(t, []string{a.ID}, answer.SourceNoteIDs)
	assert.Len(t, proc.last().Notes, 2)

	proc.set(enrich.TaskSemanticSearch, enrich.Result{Kind: enrich.ResultSearch, NoteIDs: []string{"unknown", a.ID}})
	found, err := nb.Search(ctx, "dairy")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	empty, err := nb.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIngestAndMeeting(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcessor()
	nb, _ := open(t, notebook.WithProcessor(proc))
	withKey(t, nb)

	proc.set(enrich.TaskUploadAnalysis, enrich.Result{Kind: enrich.ResultOrganizedContent, Organized: &enrich.Organized{
		Title:   "Q3 Report",
		Subject: "Reports",
		Summary: "numbers",
		Tags:    []string{"q3", "q3"},
	}})
	n, err := nb.Ingest(ctx, notebook.Upload{Name: "report.txt", MimeType: "text/plain", Content: "revenue up", ProjectName: "Work"})
	require.NoError(t, err)
	assert.Equal(t, "Q3 Report", n.Title)
	assert.Equal(t, "revenue up", n.Content)
	assert.Equal(t, []string{"q3"}, n.Tags)
	project, err := nb.Taxonomy().Get(ctx, n.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "Work", project.Name)

	_, err = nb.Ingest(ctx, notebook.Upload{Name: "empty.txt"})
	assert.Error(t, err)

	proc.set(enrich.TaskMeetingAnalysis, enrich.Result{Kind: enrich.ResultOrganizedContent, Organized: &enrich.Organized{
		Title:     "Sync",
		Project:   "Work",
		Subject:   "Meetings",
		KeyPeople: []string{"Ana"},
	}})
	m, err := nb.Meeting(ctx, "Ana: hi", "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "Sync", m.Title)
	assert.Equal(t, []string{"Ana"}, m.KeyPeople)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "image/jpeg", m.Attachments[0].MimeType)
	assert.Equal(t, []string{"data:image/jpeg;base64,AAAA"}, proc.last().Screenshots)
}
