package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
)

// Input limits, in runes.
const (
	maxUploadText   = 30000
	maxTranscript   = 40000
	maxChatContext  = 500
	maxSearchSource = 300
)

// Processor routes enrichment tasks to prompts and parses the replies.
type Processor struct {
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor over c.
func NewProcessor(c Completer, opts ...Option) *Processor {
	p := &Processor{completer: c, logger: slog.New(slog.DiscardHandler), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ enrich.Processor = (*Processor)(nil)

// Process implements enrich.Processor.
func (p *Processor) Process(ctx context.Context, task enrich.Task, settings core.Settings, projects []core.Project) (enrich.Result, error) {
	if !settings.HasCredential() {
		return enrich.Result{}, &core.OpError{Op: string(task.Kind), Err: core.ErrConfigurationRequired}
	}
	lang := settings.AILanguage
	if lang == "" {
		lang = core.DefaultSettings().AILanguage
	}
	key := settings.APIKey
	start := time.Now()
	defer func() {
		p.logger.Debug("task processed", "task", task.Kind, "duration", time.Since(start))
	}()

	switch task.Kind {
	case enrich.TaskFullAnalysis, enrich.TaskUploadAnalysis, enrich.TaskMeetingAnalysis:
		req, err := p.analysisRequest(task, lang, projectContext(projects))
		if err != nil {
			return enrich.Result{}, err
		}
		reply, err := p.completer.Complete(ctx, key, req)
		if err != nil {
			return enrich.Result{}, err
		}
		org, err := parseOrganized(reply, task.Kind != enrich.TaskFullAnalysis)
		if err != nil {
			return enrich.Result{}, invalid(task.Kind, err, reply)
		}
		kind := enrich.ResultOrganizedContent
		if task.Kind == enrich.TaskFullAnalysis {
			kind = enrich.ResultOrganizedNote
		}
		return enrich.Result{Kind: kind, Organized: org}, nil

	case enrich.TaskChatQuery:
		reply, err := p.completer.Complete(ctx, key, Request{Prompt: chatPrompt(task, lang), JSON: true, Temperature: 0.2})
		if err != nil {
			return enrich.Result{}, err
		}
		answer, err := parseChat(reply)
		if err != nil {
			return enrich.Result{}, invalid(task.Kind, err, reply)
		}
		return enrich.Result{Kind: enrich.ResultChatResponse, Chat: answer}, nil

	case enrich.TaskSemanticSearch:
		reply, err := p.completer.Complete(ctx, key, Request{Prompt: searchPrompt(task), JSON: true, Temperature: 0.1})
		if err != nil {
			return enrich.Result{}, err
		}
		ids, err := parseSearch(reply)
		if err != nil {
			return enrich.Result{}, invalid(task.Kind, err, reply)
		}
		return enrich.Result{Kind: enrich.ResultSearch, NoteIDs: ids}, nil

	case enrich.TaskContinueWriting, enrich.TaskTranslate, enrich.TaskChangeTone, enrich.TaskSummarizeSelection:
		req, err := textRequest(task, lang, settings.PerformanceProfile)
		if err != nil {
			return enrich.Result{}, err
		}
		reply, err := p.completer.Complete(ctx, key, req)
		if err != nil {
			return enrich.Result{}, err
		}
		text := strings.TrimSpace(reply)
		if text == "" {
			return enrich.Result{}, &core.OpError{Op: string(task.Kind), Msg: "the AI returned an empty response", Err: core.ErrInvalidResponse}
		}
		switch task.Kind {
		case enrich.TaskContinueWriting:
			return enrich.Result{Kind: enrich.ResultString, Text: task.Note.Content + "\n" + text}, nil
		case enrich.TaskSummarizeSelection:
			return enrich.Result{Kind: enrich.ResultStringAppend, Text: "\n\n---\n**Selection Summary:**\n" + text + "\n---"}, nil
		}
		return enrich.Result{Kind: enrich.ResultString, Text: text}, nil
	}
	return enrich.Result{}, fmt.Errorf("unknown task kind %q", task.Kind)
}

func invalid(kind enrich.TaskKind, err error, reply string) error {
	return &core.OpError{
		Op:  string(kind),
		Msg: "the AI returned an invalid response format: " + truncate(reply, 200),
		Err: fmt.Errorf("%w: %v", core.ErrInvalidResponse, err),
	}
}

func (p *Processor) analysisRequest(task enrich.Task, lang, projects string) (Request, error) {
	req := Request{JSON: true, Temperature: 0.1}
	switch task.Kind {
	case enrich.TaskFullAnalysis:
		if task.Note == nil {
			return req, fmt.Errorf("%s requires a note", task.Kind)
		}
		req.Prompt = fmt.Sprintf("Analyze the note content and structure it. Considering existing projects [%s], assign the most appropriate project and subject. "+
			"Extract summaries, todos, people, tags, decisions, and any graphable data. Respond in %s.\n\n%s\n\nText to analyze:\n---\n%s\n---",
			projects, lang, organizedSchema(false), task.Note.Content)
		req.Images = noteImages(*task.Note)
		if len(req.Images) > 0 {
			req.Prompt += "\n\nAlso consider the attached image(s)."
		}

	case enrich.TaskUploadAnalysis:
		placement := fmt.Sprintf("Assign a project and subject, considering this list: [%s].", projects)
		if task.TargetProjectName != "" {
			placement = fmt.Sprintf("The user has specified this note belongs in the %q project. Set the project field to this value and determine a relevant subject.", task.TargetProjectName)
		}
		req.Prompt = fmt.Sprintf("Analyze the provided file content, create a title, and structure it. %s "+
			"Extract summaries, todos, people, tags, decisions, and graphable data. Respond in %s.\n\n%s",
			placement, lang, organizedSchema(true))
		if img, ok := ParseDataURL(task.Content); ok && strings.HasPrefix(img.MimeType, "image/") {
			req.Images = []Image{img}
		} else {
			req.Prompt += "\n\nProvided Text:\n---\n" + truncate(task.Content, maxUploadText) + "\n---"
		}

	case enrich.TaskMeetingAnalysis:
		req.Prompt = fmt.Sprintf("Analyze the meeting transcript and screenshots. Create a title and format as professional meeting minutes in the detailedSummary. "+
			"Assign to a project considering [%s]. Extract todos, attendees, decisions, and tags. The meeting was on %s. Respond in %s.\n\n%s\n\nTranscript:\n---\n%s\n---",
			projects, p.now().Format("2006-01-02"), lang, organizedSchema(true), truncate(task.Transcript, maxTranscript))
		for _, s := range task.Screenshots {
			if img, ok := ParseDataURL(s); ok {
				req.Images = append(req.Images, img)
			}
		}
	}
	return req, nil
}

func textRequest(task enrich.Task, lang, profile string) (Request, error) {
	req := Request{Temperature: 0.5}
	switch task.Kind {
	case enrich.TaskContinueWriting:
		if task.Note == nil {
			return req, fmt.Errorf("%s requires a note", task.Kind)
		}
		if profile == core.ProfileFast {
			req.Prompt = "Briefly continue this text with one sentence: " + task.Note.Content
			break
		}
		req.Prompt = fmt.Sprintf("You are a seamless writing partner. Continue the following text with 1-3 new sentences that logically follow. "+
			"Do not repeat the original text. Your response must be only the new text. Respond in %s.\n\nText to analyze:\n---\n%s\n---", lang, task.Note.Content)
		req.Images = noteImages(*task.Note)
	case enrich.TaskTranslate:
		req.Prompt = fmt.Sprintf("Translate the following text into %s. Output only the translated text.\n\n---\n%s\n---", task.TargetLanguage, task.Content)
	case enrich.TaskChangeTone:
		req.Prompt = fmt.Sprintf("Rewrite the following text in a %s tone. Keep the core meaning the same. Output only the rewritten text in %s.\n\n---\n%s\n---", task.Tone, lang, task.Content)
	case enrich.TaskSummarizeSelection:
		req.Prompt = fmt.Sprintf("Summarize the following text into a few key points. Output only the summary in %s.\n\n---\n%s\n---", lang, task.Content)
	}
	return req, nil
}

func chatPrompt(task enrich.Task, lang string) string {
	var sb strings.Builder
	for _, n := range task.Notes {
		if n.IsArchived {
			continue
		}
		fmt.Fprintf(&sb, "<note id=%q><title>%s</title><content>%s</content></note>\n", n.ID, n.Title, truncate(n.Content, maxChatContext))
	}
	return fmt.Sprintf("You are a note-taking assistant. Answer the user's question based only on the provided notes context. If the answer is not in the notes, say so. "+
		"Cite the note id for every note used in sourceNoteIds. Respond in %s with a JSON object {\"answer\": string, \"sourceNoteIds\": string[]}. Question: %q\n\nContext:\n%s",
		lang, task.Question, sb.String())
}

func searchPrompt(task enrich.Task) string {
	var sb strings.Builder
	for _, n := range task.Notes {
		if n.IsArchived {
			continue
		}
		text := n.Summary
		if text == "" {
			text = n.Content
		}
		fmt.Fprintf(&sb, "<note id=%q><title>%s</title><content>%s</content></note>\n", n.ID, n.Title, truncate(text, maxSearchSource))
	}
	return fmt.Sprintf("Based on the user's query, identify the most semantically relevant notes from the context provided. "+
		"Return only the IDs of the top 5 most relevant notes as a JSON object {\"relevantNoteIds\": string[]}. User Query: %q\n\nContext:\n%s",
		task.Query, sb.String())
}

func organizedSchema(withTitle bool) string {
	fields := `"project": string, "subject": string, "summary": string, "detailedSummary": string, ` +
		`"todos": string[], "keyPeople": string[], "tags": string[], "decisions": string[], ` +
		`"graphData": null or {"type": "bar"|"line"|"pie", "data": [{"label": string, "value": number}], "config": {"title": string, "xAxisLabel": string, "yAxisLabel": string}}`
	if withTitle {
		fields = `"title": string, ` + fields
	}
	return "Respond with a JSON object of the form {" + fields + "}. graphData MUST be null unless the content holds data worth charting."
}

func projectContext(projects []core.Project) string {
	parts := make([]string, 0, len(projects))
	for _, p := range projects {
		desc := p.Description
		if desc == "" {
			desc = "No description."
		}
		parts = append(parts, fmt.Sprintf("{name: %q, description: %q}", p.Name, desc))
	}
	return strings.Join(parts, "; ")
}

func noteImages(n core.Note) []Image {
	var images []Image
	for _, att := range n.Attachments {
		if img, ok := ParseDataURL(att.Data); ok && strings.HasPrefix(img.MimeType, "image/") {
			images = append(images, img)
		}
	}
	return images
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
