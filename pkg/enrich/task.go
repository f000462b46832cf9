// Package enrich runs notes through an external task processor and merges
// the structured result back without losing concurrent edits.
package enrich

import (
	"context"
	"fmt"

	"github.com/aretw0/notetaker/pkg/core"
)

// TaskKind selects what the processor is asked to do.
type TaskKind string

const (
	TaskFullAnalysis       TaskKind = "FULL_ANALYSIS"
	TaskUploadAnalysis     TaskKind = "UPLOAD_ANALYSIS"
	TaskMeetingAnalysis    TaskKind = "MEETING_ANALYSIS"
	TaskChatQuery          TaskKind = "CHAT_QUERY"
	TaskSemanticSearch     TaskKind = "SEMANTIC_SEARCH"
	TaskContinueWriting    TaskKind = "CONTINUE_WRITING"
	TaskTranslate          TaskKind = "TRANSLATE"
	TaskChangeTone         TaskKind = "CHANGE_TONE"
	TaskSummarizeSelection TaskKind = "SUMMARIZE_SELECTION"
)

// Task is the processor input. Only the fields of its Kind are set.
type Task struct {
	Kind TaskKind `json:"type"`

	// FULL_ANALYSIS, CONTINUE_WRITING
	Note *core.Note `json:"note,omitempty"`

	// TRANSLATE, CHANGE_TONE, SUMMARIZE_SELECTION, UPLOAD_ANALYSIS
	Content        string `json:"content,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	Tone           string `json:"tone,omitempty"`

	// UPLOAD_ANALYSIS
	FileName          string `json:"fileName,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	TargetProjectName string `json:"targetProjectName,omitempty"`

	// MEETING_ANALYSIS
	Transcript  string   `json:"transcript,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`

	// CHAT_QUERY, SEMANTIC_SEARCH
	Question string      `json:"question,omitempty"`
	Query    string      `json:"query,omitempty"`
	Notes    []core.Note `json:"notes,omitempty"`
}

// ResultKind tags the shape of a processor result.
type ResultKind string

const (
	ResultOrganizedNote    ResultKind = "organizedNote"
	ResultOrganizedContent ResultKind = "organizedContent"
	ResultChatResponse     ResultKind = "chatResponse"
	ResultString           ResultKind = "string"
	ResultStringAppend     ResultKind = "string_append"
	ResultSearch           ResultKind = "semantic_search_results"
)

// Organized is the structured analysis of a piece of content. Project and
// Subject are names, not ids.
type Organized struct {
	Title           string          `json:"title,omitempty"`
	Project         string          `json:"project"`
	Subject         string          `json:"subject"`
	Summary         string          `json:"summary"`
	DetailedSummary string          `json:"detailedSummary"`
	Todos           []string        `json:"todos"`
	KeyPeople       []string        `json:"keyPeople"`
	Tags            []string        `json:"tags"`
	Decisions       []string        `json:"decisions"`
	GraphData       *core.GraphData `json:"graphData,omitempty"`
}

// ChatAnswer answers a question from the notes it cites.
type ChatAnswer struct {
	Answer        string   `json:"answer"`
	SourceNoteIDs []string `json:"sourceNoteIds"`
}

// Result is the processor output.
type Result struct {
	Kind      ResultKind  `json:"type"`
	Organized *Organized  `json:"organized,omitempty"`
	Chat      *ChatAnswer `json:"chat,omitempty"`
	Text      string      `json:"text,omitempty"`
	NoteIDs   []string    `json:"noteIds,omitempty"`
}

// Processor is the external task processor.
type Processor interface {
	Process(ctx context.Context, task Task, settings core.Settings, projects []core.Project) (Result, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, task Task, settings core.Settings, projects []core.Project) (Result, error)

func (f ProcessorFunc) Process(ctx context.Context, task Task, settings core.Settings, projects []core.Project) (Result, error) {
	return f(ctx, task, settings, projects)
}

// Expected returns the result kinds a task may produce.
func Expected(kind TaskKind) []ResultKind {
	switch kind {
	case TaskFullAnalysis:
		return []ResultKind{ResultOrganizedNote}
	case TaskUploadAnalysis, TaskMeetingAnalysis:
		return []ResultKind{ResultOrganizedContent}
	case TaskChatQuery:
		return []ResultKind{ResultChatResponse}
	case TaskSemanticSearch:
		return []ResultKind{ResultSearch}
	case TaskSummarizeSelection:
		return []ResultKind{ResultStringAppend}
	case TaskContinueWriting, TaskTranslate, TaskChangeTone:
		return []ResultKind{ResultString}
	}
	return nil
}

// Validate checks that res has a shape task may produce.
func Validate(task TaskKind, res Result) error {
	ok := false
	for _, k := range Expected(task) {
		if res.Kind == k {
			ok = true
			break
		}
	}
	if ok {
		switch res.Kind {
		case ResultOrganizedNote, ResultOrganizedContent:
			ok = res.Organized != nil
		case ResultChatResponse:
			ok = res.Chat != nil
		case ResultString, ResultStringAppend:
			ok = res.Text != ""
		}
	}
	if !ok {
		return &core.OpError{
			Op:  string(task),
			Msg: "the AI returned an invalid response",
			Err: fmt.Errorf("%w: got %q", core.ErrInvalidResponse, res.Kind),
		}
	}
	return nil
}
