package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/notebook"
)

var transferFormat string

// formatFor picks the --format flag, then the file extension, then JSON.
func formatFor(name string) string {
	if transferFormat != "" {
		return transferFormat
	}
	if f := notebook.FormatOf(name); f != "" {
		return f
	}
	return notebook.FormatJSON
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every note, project, version and the settings to a file",
	Long:  `Export the notebook as JSON or YAML. Without a file the snapshot is written to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			snap, err := app.Export(ctx)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			name := ""
			if len(args) == 1 {
				name = args[0]
				f, err := os.Create(name)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", name, err)
				}
				defer f.Close()
				w = f
			}
			if err := notebook.EncodeSnapshot(w, snap, formatFor(name)); err != nil {
				return err
			}
			if name != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d notes to %s.\n", len(snap.Notes), name)
			}
			return nil
		})
	},
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a snapshot into the notebook",
	Long: `Import a snapshot written by export. Projects and subjects are matched by
name, notes keep their ids and overwrite notes with the same id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			r = f
		}
		snap, err := notebook.DecodeSnapshot(r, formatFor(args[0]))
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			res, err := app.Import(ctx, snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d notes, %d versions and %d projects (%d notes refiled).\n",
				res.Notes, res.Versions, res.Projects, res.Relinked)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&transferFormat, "format", "", "json or yaml (default from the file extension)")
	importCmd.Flags().StringVar(&transferFormat, "format", "", "json or yaml (default from the file extension)")

	rootCmd.AddCommand(exportCmd, importCmd)
}
