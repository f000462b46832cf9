package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
)

var projectDescription string

// projectsCmd represents the projects command
var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Manage projects and their subjects",
}

var projectsListJSON bool

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with their subjects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			projects, err := app.Projects(ctx)
			if err != nil {
				return err
			}
			if projectsListJSON {
				return printJSON(cmd.OutOrStdout(), projects)
			}
			out := cmd.OutOrStdout()
			for _, p := range projects {
				fmt.Fprintf(out, "%s  %s", faintStyle.Render(shortID(p.ID)), titleStyle.Render(p.Name))
				if p.Description != "" {
					fmt.Fprintf(out, "  %s", faintStyle.Render(p.Description))
				}
				fmt.Fprintln(out)
				for _, s := range p.Subjects {
					fmt.Fprintf(out, "    %s  %s\n", faintStyle.Render(shortID(s.ID)), s.Name)
				}
			}
			return nil
		})
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			p, err := app.CreateProject(ctx, args[0], projectDescription)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		})
	},
}

var projectsRenameCmd = &cobra.Command{
	Use:   "rename <project> <new-name>",
	Short: "Rename a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			p, err := resolveProject(ctx, app, args[0])
			if err != nil {
				return err
			}
			desc := p.Description
			if cmd.Flags().Changed("description") {
				desc = projectDescription
			}
			if _, err := app.UpdateProject(ctx, p.ID, args[1], desc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project '%s' renamed to '%s'.\n", p.Name, args[1])
			return nil
		})
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project that no note is filed under",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			p, err := resolveProject(ctx, app, args[0])
			if err != nil {
				return err
			}
			if err := app.DeleteProject(ctx, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project '%s' deleted.\n", p.Name)
			return nil
		})
	},
}

var projectsAddSubjectCmd = &cobra.Command{
	Use:   "add-subject <project> <name>",
	Short: "Add a subject to a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			p, err := resolveProject(ctx, app, args[0])
			if err != nil {
				return err
			}
			s, err := app.AddSubject(ctx, p.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		})
	},
}

var projectsRenameSubjectCmd = &cobra.Command{
	Use:   "rename-subject <project> <subject> <new-name>",
	Short: "Rename a subject",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			s, err := resolveSubject(ctx, app, args[0], args[1])
			if err != nil {
				return err
			}
			if _, err := app.RenameSubject(ctx, s.ID, args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subject '%s' renamed to '%s'.\n", s.Name, args[2])
			return nil
		})
	},
}

var projectsDeleteSubjectCmd = &cobra.Command{
	Use:   "delete-subject <project> <subject>",
	Short: "Delete a subject that no note is filed under",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			s, err := resolveSubject(ctx, app, args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.DeleteSubject(ctx, s.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subject '%s' deleted.\n", s.Name)
			return nil
		})
	},
}

// resolveSubject finds a subject by id or name inside a project.
func resolveSubject(ctx context.Context, app *platform.App, project, subject string) (core.Subject, error) {
	p, err := resolveProject(ctx, app, project)
	if err != nil {
		return core.Subject{}, err
	}
	if s, ok := p.Subject(subject); ok {
		return s, nil
	}
	for _, s := range p.Subjects {
		if strings.EqualFold(s.Name, strings.TrimSpace(subject)) {
			return s, nil
		}
	}
	return core.Subject{}, core.NotFound(core.CollectionProjects, p.ID+"/"+subject)
}

func init() {
	projectsListCmd.Flags().BoolVar(&projectsListJSON, "json", false, "Print the projects as JSON")
	projectsAddCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "Description of the project")
	projectsRenameCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "New description of the project")

	projectsCmd.AddCommand(
		projectsListCmd,
		projectsAddCmd,
		projectsRenameCmd,
		projectsDeleteCmd,
		projectsAddSubjectCmd,
		projectsRenameSubjectCmd,
		projectsDeleteSubjectCmd,
	)
	rootCmd.AddCommand(projectsCmd)
}
