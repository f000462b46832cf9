package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/enrich/llm"
)

type fakeCompleter struct {
	reply string
	err   error
	last  llm.Request
	key   string
}

func (f *fakeCompleter) Complete(ctx context.Context, apiKey string, req llm.Request) (string, error) {
	f.last = req
	f.key = apiKey
	return f.reply, f.err
}

func settings() core.Settings {
	s := core.DefaultSettings()
	s.APIKey = "secret"
	s.AILanguage = "Portuguese"
	return s
}

func TestFullAnalysis(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n" + `{"project":"Work","subject":"Plans","summary":"s","detailedSummary":"d",` +
		`"todos":["t"],"keyPeople":[],"tags":["a"],"decisions":[],"graphData":{}}` + "\n```"}
	p := llm.NewProcessor(fake)
	note := core.Note{
		ID: "n1", Content: "plan the offsite",
		Attachments: []core.Attachment{{ID: "a", MimeType: "image/png", Data: "data:image/png;base64,AAAA"}},
	}
	projects := []core.Project{{ID: "p", Name: "Work"}}

	res, err := p.Process(context.Background(), enrich.Task{Kind: enrich.TaskFullAnalysis, Note: &note}, settings(), projects)
	require.NoError(t, err)
	require.NoError(t, enrich.Validate(enrich.TaskFullAnalysis, res))

	assert.Equal(t, enrich.ResultOrganizedNote, res.Kind)
	assert.Equal(t, "Work", res.Organized.Project)
	assert.Nil(t, res.Organized.GraphData)
	assert.Equal(t, "secret", fake.key)
	assert.True(t, fake.last.JSON)
	assert.Contains(t, fake.last.Prompt, "Portuguese")
	assert.Contains(t, fake.last.Prompt, `{name: "Work", description: "No description."}`)
	assert.Contains(t, fake.last.Prompt, "plan the offsite")
	require.Len(t, fake.last.Images, 1)
	assert.Equal(t, "image/png", fake.last.Images[0].MimeType)
	assert.Equal(t, "AAAA", fake.last.Images[0].Data)
}

func TestUploadRequiresTitle(t *testing.T) {
	fake := &fakeCompleter{reply: `{"project":"Work","subject":"S","summary":"s"}`}
	p := llm.NewProcessor(fake)

	_, err := p.Process(context.Background(), enrich.Task{Kind: enrich.TaskUploadAnalysis, Content: "text", TargetProjectName: "Inbox"}, settings(), nil)
	require.ErrorIs(t, err, core.ErrInvalidResponse)
	assert.Contains(t, fake.last.Prompt, `"Inbox"`)
	assert.Contains(t, fake.last.Prompt, "Provided Text:")
}

func TestMeetingUsesDate(t *testing.T) {
	fake := &fakeCompleter{reply: `{"title":"Sync","project":"Work","subject":"Meetings","summary":"s","detailedSummary":"minutes"}`}
	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	p := llm.NewProcessor(fake, llm.WithClock(func() time.Time { return day }))

	res, err := p.Process(context.Background(), enrich.Task{
		Kind: enrich.TaskMeetingAnalysis, Transcript: "we agreed",
		Screenshots: []string{"data:image/jpeg;base64,BBBB", "garbage"},
	}, settings(), nil)
	require.NoError(t, err)
	assert.Equal(t, enrich.ResultOrganizedContent, res.Kind)
	assert.Equal(t, "Sync", res.Organized.Title)
	assert.Contains(t, fake.last.Prompt, "2026-03-04")
	assert.Len(t, fake.last.Images, 1)
}

func TestTextTasks(t *testing.T) {
	note := core.Note{Content: "Once upon a time"}
	tests := []struct {
		name string
		task enrich.Task
		kind enrich.ResultKind
		text string
	}{
		{"continue", enrich.Task{Kind: enrich.TaskContinueWriting, Note: &note}, enrich.ResultString, "Once upon a time\nthe end"},
		{"translate", enrich.Task{Kind: enrich.TaskTranslate, Content: "hi", TargetLanguage: "German"}, enrich.ResultString, "the end"},
		{"tone", enrich.Task{Kind: enrich.TaskChangeTone, Content: "hi", Tone: "formal"}, enrich.ResultString, "the end"},
		{"summarize", enrich.Task{Kind: enrich.TaskSummarizeSelection, Content: "hi"}, enrich.ResultStringAppend, "\n\n---\n**Selection Summary:**\nthe end\n---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompleter{reply: "  the end \n"}
			res, err := llm.NewProcessor(fake).Process(context.Background(), tt.task, settings(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.text, res.Text)
			assert.False(t, fake.last.JSON)
		})
	}
}

func TestFastProfileShortensContinuation(t *testing.T) {
	fake := &fakeCompleter{reply: "more"}
	s := settings()
	s.PerformanceProfile = core.ProfileFast
	note := core.Note{Content: "abc"}

	_, err := llm.NewProcessor(fake).Process(context.Background(), enrich.Task{Kind: enrich.TaskContinueWriting, Note: &note}, s, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fake.last.Prompt, "Briefly continue"))
}

func TestChatAndSearch(t *testing.T) {
	notes := []core.Note{
		{ID: "a", Title: "Alpha", Content: "about alpha"},
		{ID: "b", Title: "Beta", Content: "archived", IsArchived: true},
	}

	fake := &fakeCompleter{reply: `{"answer":"alpha","sourceNoteIds":["a"]}`}
	res, err := llm.NewProcessor(fake).Process(context.Background(), enrich.Task{Kind: enrich.TaskChatQuery, Question: "what?", Notes: notes}, settings(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Chat.SourceNoteIDs)
	assert.Contains(t, fake.last.Prompt, `<note id="a">`)
	assert.NotContains(t, fake.last.Prompt, `<note id="b">`)

	fake = &fakeCompleter{reply: `{"relevantNoteIds":["a"]}`}
	res, err = llm.NewProcessor(fake).Process(context.Background(), enrich.Task{Kind: enrich.TaskSemanticSearch, Query: "alpha", Notes: notes}, settings(), nil)
	require.NoError(t, err)
	assert.Equal(t, enrich.ResultSearch, res.Kind)
	assert.Equal(t, []string{"a"}, res.NoteIDs)
}

func TestProcessorErrors(t *testing.T) {
	note := core.Note{Content: "x"}
	task := enrich.Task{Kind: enrich.TaskFullAnalysis, Note: &note}

	_, err := llm.NewProcessor(&fakeCompleter{}).Process(context.Background(), task, core.DefaultSettings(), nil)
	assert.ErrorIs(t, err, core.ErrConfigurationRequired)

	_, err = llm.NewProcessor(&fakeCompleter{reply: "not json"}).Process(context.Background(), task, settings(), nil)
	require.ErrorIs(t, err, core.ErrInvalidResponse)
	assert.Contains(t, err.Error(), "not json")

	boom := errors.New("network down")
	_, err = llm.NewProcessor(&fakeCompleter{err: boom}).Process(context.Background(), task, settings(), nil)
	assert.ErrorIs(t, err, boom)

	_, err = llm.NewProcessor(&fakeCompleter{reply: "   "}).Process(context.Background(),
		enrich.Task{Kind: enrich.TaskTranslate, Content: "x"}, settings(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidResponse)
}

func TestParseDataURL(t *testing.T) {
	img, ok := llm.ParseDataURL("data:image/png;base64,QUJD")
	require.True(t, ok)
	assert.Equal(t, llm.Image{MimeType: "image/png", Data: "QUJD"}, img)
	assert.Equal(t, "data:image/png;base64,QUJD", img.DataURL())

	_, ok = llm.ParseDataURL("http://example.com/x.png")
	assert.False(t, ok)
}
