package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/enrich/llm"
	"github.com/aretw0/notetaker/pkg/notebook"
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <id>",
	Short: "Analyze a note now and merge the result",
	Long: `Run the enrichment of a note right away: summary, todos, people, tags
and placement are filled in by the configured provider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			if n, err = app.Enrich(ctx, n.ID); err != nil {
				return err
			}
			projects, err := app.Projects(ctx)
			if err != nil {
				return err
			}
			status, _ := app.EnrichmentStatus(n.ID)
			renderNote(cmd.OutOrStdout(), n, projects, "", status.String())
			return nil
		})
	},
}

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about your notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			answer, err := app.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Answer)
			if len(answer.SourceNoteIDs) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, labelStyle.Render("sources:"))
				for _, id := range answer.SourceNoteIDs {
					title := id
					if n, err := app.Get(id); err == nil {
						title = n.Title
					}
					fmt.Fprintf(out, "  %s  %s\n", faintStyle.Render(shortID(id)), title)
				}
			}
			return nil
		})
	},
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find notes related to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			notes, err := app.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			projects, err := app.Projects(ctx)
			if err != nil {
				return err
			}
			renderList(cmd.OutOrStdout(), notes, projects)
			return nil
		})
	},
}

var ingestProject string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Turn a document into an organized note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		mimeType := mimeOf(args[0], data)
		content := string(data)
		if !strings.HasPrefix(mimeType, "text/") {
			content = llm.Image{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}.DataURL()
		}
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := app.Ingest(ctx, notebook.Upload{
				Name:        filepath.Base(args[0]),
				MimeType:    mimeType,
				Content:     content,
				ProjectName: ingestProject,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		})
	},
}

var screenshots []string

// meetingCmd represents the meeting command
var meetingCmd = &cobra.Command{
	Use:   "meeting <transcript>",
	Short: "Turn a meeting transcript into minutes",
	Long: `Read a transcript file (- for stdin) and create a note with the minutes.
Screenshots given with --screenshot are attached to the note.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transcript, err := readContent(cmd, "", args[0])
		if err != nil {
			return err
		}
		shots := make([]string, 0, len(screenshots))
		for _, path := range screenshots {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			img := llm.Image{MimeType: mimeOf(path, data), Data: base64.StdEncoding.EncodeToString(data)}
			shots = append(shots, img.DataURL())
		}
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := app.Meeting(ctx, transcript, shots...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		})
	},
}

var (
	transformAction    string
	transformLanguage  string
	transformTone      string
	transformSelection string
)

// transformCmd represents the transform command
var transformCmd = &cobra.Command{
	Use:   "transform <id>",
	Short: "Continue, translate, re-tone or summarize a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			n, err = app.Transform(ctx, n.ID, notebook.Action{
				Kind:      notebook.ActionKind(transformAction),
				Language:  transformLanguage,
				Tone:      transformTone,
				Selection: transformSelection,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.Content)
			return nil
		})
	},
}

func mimeOf(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	t, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return t
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "Preferred project for the note")
	meetingCmd.Flags().StringSliceVar(&screenshots, "screenshot", nil, "Image files to attach (repeatable)")

	transformCmd.Flags().StringVarP(&transformAction, "action", "a", string(notebook.ActionContinue), "continue, translate, tone or summarize")
	transformCmd.Flags().StringVar(&transformLanguage, "language", "", "Target language for translate")
	transformCmd.Flags().StringVar(&transformTone, "tone", "", "Target tone for tone")
	transformCmd.Flags().StringVar(&transformSelection, "selection", "", "Text to summarize, the whole note by default")

	rootCmd.AddCommand(enrichCmd, askCmd, searchCmd, ingestCmd, meetingCmd, transformCmd)
}
