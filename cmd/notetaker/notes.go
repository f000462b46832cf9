package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
)

var (
	noteTitle      string
	noteContent    string
	noteFile       string
	noteProject    string
	noteSubject    string
	noteTags       []string
	noteTemplate   string
	noteIsTemplate bool
	noteOptOut     bool
	noteOptIn      bool
)

// newCmd represents the new command
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a note",
	Long: `Create a note from flags, a file or stdin (--file -), or copy a template
with --from-template. Without a project the note is filed under
Personal / General.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd, noteContent, noteFile)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			var n core.Note
			if noteTemplate != "" {
				tpl, err := resolveNote(app, noteTemplate)
				if err != nil {
					return err
				}
				if n, err = app.CreateFromTemplate(ctx, tpl.ID); err != nil {
					return err
				}
			} else {
				n, err = app.Create(ctx, notebook.Draft{
					Title:      noteTitle,
					Content:    content,
					Project:    noteProject,
					Subject:    noteSubject,
					Tags:       noteTags,
					IsTemplate: noteIsTemplate,
				})
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		})
	},
}

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note",
	Long: `Change the title, content, placement or tags of a note. Only the flags
given are applied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		content, err := readContent(cmd, noteContent, noteFile)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			projectID, subjectID := n.ProjectID, n.SubjectID
			if flags.Changed("project") || flags.Changed("subject") {
				project, subject := noteProject, noteSubject
				if !flags.Changed("project") {
					p, err := app.Taxonomy().Get(ctx, n.ProjectID)
					if err != nil {
						return err
					}
					project = p.Name
				}
				pl, err := app.Taxonomy().Resolve(ctx, project, subject, "")
				if err != nil {
					return err
				}
				projectID, subjectID = pl.ProjectID, pl.SubjectID
			}
			updated, err := app.Update(ctx, n.ID, func(note *core.Note) {
				if flags.Changed("title") {
					note.Title = noteTitle
				}
				if flags.Changed("content") || flags.Changed("file") {
					note.Content = content
				}
				if flags.Changed("tag") {
					note.Tags = noteTags
				}
				if noteOptOut {
					note.DisableAiSync = true
				}
				if noteOptIn {
					note.DisableAiSync = false
				}
				note.ProjectID, note.SubjectID = projectID, subjectID
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' updated.\n", updated.ID)
			return nil
		})
	},
}

var showJSON bool

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			if showJSON {
				return printJSON(cmd.OutOrStdout(), n)
			}
			projects, err := app.Projects(ctx)
			if err != nil {
				return err
			}
			save, _ := app.SaveStatus(n.ID)
			status, lastErr := app.EnrichmentStatus(n.ID)
			enrichment := status.String()
			if lastErr != nil {
				enrichment += " (" + lastErr.Error() + ")"
			}
			renderNote(cmd.OutOrStdout(), n, projects, save.String(), enrichment)
			return nil
		})
	},
}

var (
	listProject   string
	listTag       string
	listQuery     string
	listArchived  bool
	listTemplates bool
	listJSON      bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Long:  `List notes, most recently updated first. Archived notes and templates are listed only when asked for.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			f := notebook.Filter{Tag: listTag, Query: listQuery, Archived: listArchived, Templates: listTemplates}
			if listProject != "" {
				p, err := resolveProject(ctx, app, listProject)
				if err != nil {
					return err
				}
				f.ProjectID = p.ID
			}
			notes := app.List(f)
			if listJSON {
				return printJSON(cmd.OutOrStdout(), notes)
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

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List the saved versions of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			versions, err := app.Versions(ctx, n.ID)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), faintStyle.Render("no versions"))
				return nil
			}
			for _, v := range versions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", faintStyle.Render(v.ID), v.SavedAt.Local().Format("2006-01-02 15:04:05"), v.Title)
			}
			return nil
		})
	},
}

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <id> <version-id>",
	Short: "Bring back the title and content of a version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			if _, err := app.Restore(ctx, n.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' restored to version '%s'.\n", n.ID, args[1])
			return nil
		})
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			if err := app.Delete(ctx, n.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' deleted.\n", n.ID)
			return nil
		})
	},
}

var unarchive bool

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a note, or bring it back with --undo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			n, err := resolveNote(app, args[0])
			if err != nil {
				return err
			}
			if _, err := app.Archive(ctx, n.ID, !unarchive); err != nil {
				return err
			}
			state := "archived"
			if unarchive {
				state = "restored from the archive"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' %s.\n", n.ID, state)
			return nil
		})
	},
}

func noteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&noteTitle, "title", "t", "", "Title of the note")
	cmd.Flags().StringVarP(&noteContent, "content", "c", "", "Content of the note")
	cmd.Flags().StringVarP(&noteFile, "file", "f", "", "Read the content from a file, - for stdin")
	cmd.Flags().StringVarP(&noteProject, "project", "p", "", "Project name")
	cmd.Flags().StringVarP(&noteSubject, "subject", "s", "", "Subject name")
	cmd.Flags().StringSliceVar(&noteTags, "tag", nil, "Tags (repeatable)")
}

func init() {
	noteFlags(newCmd)
	newCmd.Flags().StringVar(&noteTemplate, "from-template", "", "Copy the template with this id")
	newCmd.Flags().BoolVar(&noteIsTemplate, "template", false, "Create the note as a template")

	noteFlags(editCmd)
	editCmd.Flags().BoolVar(&noteOptOut, "no-ai", false, "Stop automatic enrichment of this note")
	editCmd.Flags().BoolVar(&noteOptIn, "ai", false, "Resume automatic enrichment of this note")
	editCmd.MarkFlagsMutuallyExclusive("ai", "no-ai")
	editCmd.MarkFlagsMutuallyExclusive("content", "file")

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the note as JSON")

	listCmd.Flags().StringVarP(&listProject, "project", "p", "", "Only notes of this project (name or id)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only notes with this tag")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Only notes whose title, content or summary contains this text")
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "List archived notes")
	listCmd.Flags().BoolVar(&listTemplates, "templates", false, "List templates")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the notes as JSON")

	archiveCmd.Flags().BoolVar(&unarchive, "undo", false, "Bring the note back from the archive")

	rootCmd.AddCommand(newCmd, editCmd, showCmd, listCmd, historyCmd, restoreCmd, deleteCmd, archiveCmd)
}
